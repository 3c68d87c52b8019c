package promport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/omarluq/promport/internal/trigger"
)

// DefaultDrainTimeout bounds how long a stopping endpoint waits for in-flight
// scrapes before abandoning them. Override with WithDrainTimeout.
const DefaultDrainTimeout = 10 * time.Second

// Exporter is the serving half of a pair created by New. It owns the scrape
// endpoint lifecycle: Reload rebinds or disables the endpoint, Close shuts
// the whole exporter down. The collection side lives on the paired Writer.
type Exporter struct {
	handle *handle

	mu       sync.Mutex
	endpoint *runningEndpoint
	closed   bool

	done     *trigger.Trigger
	doneRecv *trigger.Receiver

	logger       zerolog.Logger
	drainTimeout time.Duration
}

// runningEndpoint holds the bound address and control channels of the
// currently bound server: fire stop to begin its shutdown, wait on stopped to
// know it has fully wound down and released its listener.
type runningEndpoint struct {
	addr    net.Addr
	stop    *trigger.Trigger
	stopped *trigger.Receiver
}

// Reload replaces the endpoint configuration. A nil config disables the
// endpoint and pauses collection; the exporter stays usable and a later
// Reload can re-enable it. A non-nil config stops the previous endpoint,
// waits for it to release its port, and binds the new one before returning,
// so a bind failure surfaces here and not later. After a failed Reload the
// exporter is disabled, never half-configured.
//
// Reload calls are serialized; concurrent callers queue.
func (e *Exporter) Reload(cfg *Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExporterClosed
	}

	// Stop the running endpoint and wait until it has wound down completely.
	// Rebinding the same address only works once the old listener is gone.
	if ep := e.endpoint; ep != nil {
		ep.stop.Fire()
		<-ep.stopped.Done()
		e.endpoint = nil
	}

	if cfg == nil {
		e.logger.Info().Msg("metrics exporter disabled")
		e.handle.setInterval(0)
		return nil
	}

	resolved := *cfg
	resolved.Normalize()
	if err := resolved.Validate(); err != nil {
		return fmt.Errorf("invalid metrics exporter config: %w", err)
	}

	ln, err := net.Listen("tcp", resolved.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to bind metrics exporter server port: %w", err)
	}

	srv := newEndpointServer(&resolved, e.handle.buffers)

	stop, stopSignal := trigger.New()
	stoppedTrg, stopped := trigger.New()

	e.logger.Info().
		Str("address", ln.Addr().String()).
		Str("path", resolved.MetricsPath).
		Msg("metrics exporter started")

	go e.serve(srv, ln, e.doneRecv.Clone(), stopSignal, stoppedTrg)

	e.endpoint = &runningEndpoint{
		addr:    ln.Addr(),
		stop:    stop,
		stopped: stopped,
	}

	e.handle.setInterval(resolved.CollectionIntervalSec)
	return nil
}

// Close completes the exporter. The endpoint begins draining and the
// collection loop exits on its next wake; Close waits for neither. Further
// Reload or Close calls return ErrExporterClosed.
func (e *Exporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrExporterClosed
	}
	e.closed = true
	e.endpoint = nil

	e.done.Fire()
	return nil
}

// serve runs one endpoint incarnation to completion. It waits for the server
// to fail on its own or for a shutdown signal (exporter-wide via global,
// endpoint-local via stop), drains in-flight scrapes within the drain
// timeout, and always fires stopped last so Reload can rebind safely.
func (e *Exporter) serve(srv *http.Server, ln net.Listener, global, stop *trigger.Receiver, stopped *trigger.Trigger) {
	defer stopped.Fire()
	defer global.Close()
	defer stop.Close()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()

	select {
	case err := <-serveErr:
		// The server died without being asked to stop. Report it; the slot
		// is reclaimed by the next Reload.
		e.logger.Error().Err(err).Msg("metrics exporter stopped")
		return
	case <-global.Done():
	case <-stop.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.drainTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		e.logger.Error().Err(err).Msg("metrics exporter stopped")
		return
	}
	<-serveErr // Serve returns http.ErrServerClosed once Shutdown begins

	e.logger.Info().Msg("metrics exporter stopped")
}

// newEndpointServer builds the http.Server for one endpoint incarnation.
// Timeout rationale:
//   - ReadTimeout: 10s - scrape requests are tiny; cut off slow clients
//   - WriteTimeout: 30s - snapshots are small but slow scrapers get room
//   - IdleTimeout: 120s - keep-alive for scrapers that poll frequently
//
// If EnableHTTP2 is set, the handler is wrapped for HTTP/2 cleartext (h2c)
// so non-TLS scrapers can multiplex connections.
func newEndpointServer(cfg *Config, bufs *buffers) *http.Server {
	var handler http.Handler = newEndpointHandler(cfg.MetricsPath, bufs)
	if cfg.EnableHTTP2 {
		h2s := &http2.Server{}
		handler = h2c.NewHandler(handler, h2s)
	}

	return &http.Server{
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// newEndpointHandler serves the published snapshot at exactly one path.
// GET on that path returns 200 with the plain-text exposition; any other
// method or path receives a 404 with an empty body.
func newEndpointHandler(path string, bufs *buffers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != path {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		data := bufs.snapshot()
		w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
		_, _ = io.WriteString(w, data)
	}
}
