package promport

// endpointAddr returns the bound address of the running endpoint, or the
// empty string while the endpoint is disabled.
func (e *Exporter) endpointAddr() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.endpoint == nil {
		return ""
	}
	return e.endpoint.addr.String()
}
