package trigger

// WaiterCount returns the number of registered waiters under lock (for testing).
func (t *Trigger) WaiterCount() int {
	t.state.mu.Lock()
	defer t.state.mu.Unlock()
	return len(t.state.waiters)
}
