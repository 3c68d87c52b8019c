// Package promport implements an embeddable Prometheus text-format metrics
// exporter with hot reload.
//
// New splits the exporter into two halves sharing one snapshot store: an
// Exporter that owns the scrape endpoint and a Writer that owns collection.
// Collected metrics are double buffered, so a scrape always sees the latest
// fully published snapshot and never blocks a collection in progress.
//
//	// Create an inactive exporter and start the collection loop.
//	exporter, writer, err := promport.New(nil)
//	if err != nil {
//		return err
//	}
//	defer exporter.Close()
//
//	err = writer.Spawn(func(buf *promport.MetricsBuffer) {
//		format.Begin(buf, "some_diff").
//			Label("label1", "asd").
//			Label("label2", "some value").
//			Value(123)
//
//		format.Begin(buf, "some_time").
//			Label("label1", "asd").
//			Value(456)
//	})
//	if err != nil {
//		return err
//	}
//
//	// Later: bring the endpoint up, or move it, without restarting anything.
//	err = exporter.Reload(promport.DefaultConfig())
//
// Reload swaps the endpoint at runtime: a new address or path rebinds, a nil
// config disables serving until a later reload. Collection pacing follows the
// configured interval and reacts to reloads immediately.
package promport

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omarluq/promport/internal/trigger"
)

// Option configures an exporter pair created by New.
type Option func(*Exporter)

// WithLogger routes exporter lifecycle logging through the given logger
// instead of the global one.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Exporter) {
		e.logger = logger
	}
}

// WithDrainTimeout bounds how long a stopping endpoint waits for in-flight
// scrapes before abandoning them. Non-positive values are ignored.
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Exporter) {
		if d > 0 {
			e.drainTimeout = d
		}
	}
}

// New creates a connected Exporter/Writer pair and applies the initial
// config through Reload. A nil config starts the exporter disabled: the
// collection loop can spawn and publish, and a later Reload brings the
// endpoint up.
func New(cfg *Config, opts ...Option) (*Exporter, *Writer, error) {
	done, doneRecv := trigger.New()

	e := &Exporter{
		done:         done,
		doneRecv:     doneRecv,
		logger:       log.Logger,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.handle = newHandle(doneRecv, e.logger)

	if err := e.Reload(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	return e, newWriter(e.handle), nil
}
