package promport

import (
	"bytes"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omarluq/promport/format"
)

// loopbackConfig binds an ephemeral port so parallel tests never collide.
func loopbackConfig() *Config {
	return &Config{
		ListenAddress:         "127.0.0.1:0",
		MetricsPath:           "/metrics",
		CollectionIntervalSec: 1,
	}
}

func newServingPair(t *testing.T) (*Exporter, *Writer, string) {
	t.Helper()

	e, w, err := New(loopbackConfig(), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	addr := e.endpointAddr()
	require.NotEmpty(t, addr)
	return e, w, addr
}

func tryScrape(addr, path string) (status int, contentType, body string, err error) {
	resp, err := http.Get("http://" + addr + path)
	if err != nil {
		return 0, "", "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", "", err
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), string(b), nil
}

func waitForBody(t *testing.T, addr, path, want string) {
	t.Helper()

	require.Eventually(t, func() bool {
		status, _, body, err := tryScrape(addr, path)
		return err == nil && status == http.StatusOK && body == want
	}, 2*time.Second, 10*time.Millisecond, "endpoint never served %q", want)
}

func TestExporterServesPublishedSnapshot(t *testing.T) {
	t.Parallel()

	_, w, addr := newServingPair(t)

	require.NoError(t, w.Spawn(func(mb *MetricsBuffer) {
		_ = format.Begin(mb, "some_diff").
			Label("label1", "a").
			Value(123)
	}))

	want := `some_diff{label1="a"} 123` + "\n"
	waitForBody(t, addr, "/metrics", want)

	_, contentType, _, err := tryScrape(addr, "/metrics")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=UTF-8", contentType)
}

func TestExporterServesEmptySnapshotBeforeFirstCollection(t *testing.T) {
	t.Parallel()

	// The endpoint is up as soon as New returns, even with nothing spawned.
	_, _, addr := newServingPair(t)

	status, _, body, err := tryScrape(addr, "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}

func TestExporterUnknownPathAndMethod(t *testing.T) {
	t.Parallel()

	_, _, addr := newServingPair(t)

	status, _, body, err := tryScrape(addr, "/other")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Empty(t, body, "404 responses carry no body")

	// Same path, wrong method.
	resp, err := http.Post("http://"+addr+"/metrics", "text/plain", strings.NewReader(""))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestExporterNilReloadDisablesEndpoint(t *testing.T) {
	t.Parallel()

	e, w, addr := newServingPair(t)

	require.NoError(t, w.Spawn(func(mb *MetricsBuffer) {
		mb.WriteString("up 1\n")
	}))
	waitForBody(t, addr, "/metrics", "up 1\n")

	require.NoError(t, e.Reload(nil))
	assert.Empty(t, e.endpointAddr())

	// The listener is released before Reload returns.
	_, _, _, err := tryScrape(addr, "/metrics")
	assert.Error(t, err)

	// A later reload brings the endpoint back, still serving the last
	// snapshot published before the pause.
	require.NoError(t, e.Reload(loopbackConfig()))
	waitForBody(t, e.endpointAddr(), "/metrics", "up 1\n")
}

func TestExporterReloadRebindsSameAddress(t *testing.T) {
	t.Parallel()

	e, w, addr := newServingPair(t)

	require.NoError(t, w.Spawn(func(mb *MetricsBuffer) {
		mb.WriteString("generation 1\n")
	}))
	waitForBody(t, addr, "/metrics", "generation 1\n")

	// Rebinding the exact address the old endpoint holds only works if
	// Reload fully winds the old server down first.
	cfg := loopbackConfig()
	cfg.ListenAddress = addr
	require.NoError(t, e.Reload(cfg))

	assert.Equal(t, addr, e.endpointAddr())
	waitForBody(t, addr, "/metrics", "generation 1\n")
}

func TestExporterReloadMovesPath(t *testing.T) {
	t.Parallel()

	e, w, _ := newServingPair(t)

	require.NoError(t, w.Spawn(func(mb *MetricsBuffer) {
		mb.WriteString("relocated 1\n")
	}))

	cfg := loopbackConfig()
	cfg.MetricsPath = "/observe"
	require.NoError(t, e.Reload(cfg))

	addr := e.endpointAddr()
	waitForBody(t, addr, "/observe", "relocated 1\n")

	status, _, _, err := tryScrape(addr, "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestExporterBindFailureLeavesExporterDisabled(t *testing.T) {
	t.Parallel()

	// Occupy a port so the reload target is unbindable.
	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	e, _, addr := newServingPair(t)

	cfg := loopbackConfig()
	cfg.ListenAddress = blocker.Addr().String()
	err = e.Reload(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to bind metrics exporter server port")

	// The previous endpoint was stopped before the bind attempt; a failed
	// reload leaves the exporter disabled, not half-configured.
	assert.Empty(t, e.endpointAddr())
	_, _, _, scrapeErr := tryScrape(addr, "/metrics")
	assert.Error(t, scrapeErr)

	// Still usable afterwards.
	require.NoError(t, e.Reload(loopbackConfig()))
	assert.NotEmpty(t, e.endpointAddr())
}

func TestExporterReloadRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	e, _, _ := newServingPair(t)

	err := e.Reload(&Config{ListenAddress: "not-an-address"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid metrics exporter config")
	assert.Empty(t, e.endpointAddr())
}

func TestExporterCloseLifecycle(t *testing.T) {
	t.Parallel()

	e, _, addr := newServingPair(t)

	require.NoError(t, e.Close())
	assert.ErrorIs(t, e.Close(), ErrExporterClosed)
	assert.ErrorIs(t, e.Reload(DefaultConfig()), ErrExporterClosed)

	// Close does not join the endpoint; it drains in the background.
	require.Eventually(t, func() bool {
		_, _, _, err := tryScrape(addr, "/metrics")
		return err != nil
	}, 2*time.Second, 20*time.Millisecond, "endpoint still serving after Close")
}

func TestExporterConcurrentReloads(t *testing.T) {
	t.Parallel()

	e, _, err := New(nil, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = e.Reload(loopbackConfig())
			} else {
				_ = e.Reload(nil)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, e.Reload(nil))
	assert.Empty(t, e.endpointAddr())
}

func TestExporterHTTP2ConfigServesHTTP1Clients(t *testing.T) {
	t.Parallel()

	cfg := loopbackConfig()
	cfg.EnableHTTP2 = true
	e, _, err := New(cfg, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	status, _, _, err := tryScrape(e.endpointAddr(), "/metrics")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
}

func TestNewStartsDisabledWithNilConfig(t *testing.T) {
	t.Parallel()

	e, w, err := New(nil, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	require.NotNil(t, w)
	assert.Empty(t, e.endpointAddr())
	assert.True(t, e.handle.interval().IsAbsent())
}

func TestNewSurfacesBindErrors(t *testing.T) {
	t.Parallel()

	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	cfg := loopbackConfig()
	cfg.ListenAddress = blocker.Addr().String()

	e, w, err := New(cfg, WithLogger(zerolog.Nop()))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create metrics exporter")
	assert.Nil(t, e)
	assert.Nil(t, w)
}

func TestNewAppliesDrainTimeout(t *testing.T) {
	t.Parallel()

	e, _, err := New(nil, WithLogger(zerolog.Nop()), WithDrainTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	assert.Equal(t, 5*time.Second, e.drainTimeout)

	e2, _, err := New(nil, WithLogger(zerolog.Nop()), WithDrainTimeout(-1))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e2.Close() })
	assert.Equal(t, DefaultDrainTimeout, e2.drainTimeout)
}

// syncSink is a concurrency-safe log target for asserting on logger output.
type syncSink struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestExporterLifecycleLogging(t *testing.T) {
	t.Parallel()

	sink := &syncSink{}
	e, _, err := New(loopbackConfig(), WithLogger(zerolog.New(sink)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	assert.Contains(t, sink.String(), "metrics exporter started")

	// Reload(nil) waits for the endpoint to wind down, so both the stop and
	// the disable are logged by the time it returns.
	require.NoError(t, e.Reload(nil))
	out := sink.String()
	assert.Contains(t, out, "metrics exporter stopped")
	assert.Contains(t, out, "metrics exporter disabled")
}
