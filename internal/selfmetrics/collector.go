// Package selfmetrics collects process-level metrics for the promport
// binary: Go runtime memory statistics, goroutine counts, uptime, and a
// paced demo counter that keeps scrapes moving between real workloads.
package selfmetrics

import (
	"context"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/omarluq/promport"
	"github.com/omarluq/promport/format"
)

// Collector gathers runtime and process metrics and renders them in the
// exposition format. Every series carries an instance_id label so multiple
// processes scraped into one Prometheus stay distinguishable.
type Collector struct {
	instanceID string
	started    time.Time
	events     atomic.Uint64
}

// New creates a collector with a fresh instance id.
func New() *Collector {
	return &Collector{
		instanceID: uuid.New().String(),
		started:    time.Now(),
	}
}

// InstanceID returns the uuid labeled on every series.
func (c *Collector) InstanceID() string {
	return c.instanceID
}

type gauge struct {
	name  string
	value any
}

// Collect writes the current snapshot into the buffer. It matches the
// signature of promport.WriteFunc and is intended to be passed straight to
// Writer.Spawn.
func (c *Collector) Collect(buf *promport.MetricsBuffer) {
	c.render(buf)
}

func (c *Collector) render(w io.Writer) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	gauges := []gauge{
		{"promport_uptime_seconds", time.Since(c.started).Seconds()},
		{"promport_goroutines", runtime.NumGoroutine()},
		{"promport_demo_events_total", c.events.Load()},
		{"go_memstats_alloc_bytes", mem.Alloc},
		{"go_memstats_heap_inuse_bytes", mem.HeapInuse},
		{"go_memstats_sys_bytes", mem.Sys},
		{"go_gc_runs_total", mem.NumGC},
	}

	lo.ForEach(gauges, func(g gauge, _ int) {
		_ = format.Begin(w, g.name).
			Label("instance_id", c.instanceID).
			Value(g.value)
	})
}

// RunDemoWorkload increments the demo events counter at the given per-second
// rate until the context is canceled. Rates at or below zero disable the
// workload.
func (c *Collector) RunDemoWorkload(ctx context.Context, perSecond float64) {
	if perSecond <= 0 {
		return
	}

	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		c.events.Add(1)
	}
}
