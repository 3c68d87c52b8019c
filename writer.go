package promport

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"

	"github.com/omarluq/promport/internal/trigger"
)

// WriteFunc fills one collection cycle. It receives a scoped buffer handle
// whose contents are published atomically when the cycle ends, so a scrape
// either sees everything the callback wrote or nothing of it.
type WriteFunc func(*MetricsBuffer)

// handle is the state shared between the Writer and Exporter halves: the
// double buffer, the current collection interval, the interval-change
// notifier, and the exporter's completion signal.
type handle struct {
	buffers     *buffers
	intervalSec atomic.Uint64
	changes     *changeNotifier
	done        *trigger.Receiver
	logger      zerolog.Logger
}

func newHandle(done *trigger.Receiver, logger zerolog.Logger) *handle {
	return &handle{
		buffers: newBuffers(),
		changes: newChangeNotifier(),
		done:    done,
		logger:  logger,
	}
}

// interval returns the current collection interval, None while collection is
// paused.
func (h *handle) interval() mo.Option[time.Duration] {
	sec := h.intervalSec.Load()
	if sec == 0 {
		return mo.None[time.Duration]()
	}
	return mo.Some(time.Duration(sec) * time.Second)
}

// setInterval stores a new interval and wakes the scheduler so it takes
// effect without waiting out the previous one.
func (h *handle) setInterval(sec uint64) {
	h.intervalSec.Store(sec)
	h.changes.notify()
}

// run drives the collection loop: collect, publish, wait, repeat. The first
// collection happens immediately, even while collection is paused, so the
// endpoint has a snapshot to serve as soon as possible. The loop exits when
// the exporter completes.
func (h *handle) run(write WriteFunc) {
	id, changes := h.changes.subscribe()
	defer h.changes.unsubscribe(id)

	done := h.done.Clone()
	defer done.Close()

	for {
		if done.Fired() {
			return
		}

		if !h.collect(write) {
			return
		}

		if !h.wait(changes, done) {
			return
		}
	}
}

// collect runs one collection cycle. The publish is tied to scope exit, so a
// callback that panics partway through still flips the buffer with whatever
// it managed to write. The panic stops the loop; the endpoint keeps serving
// the last snapshot.
func (h *handle) collect(write WriteFunc) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Msg("metrics collection stopped")
			ok = false
		}
	}()

	mb := h.buffers.acquire()
	defer mb.Close()
	write(mb)
	return true
}

// wait blocks until the next collection is due. It returns false when the
// exporter has completed, true when a collection should run.
//
// A zero interval pauses the loop until an interval change arrives; resuming
// waits out the new interval before collecting. An interval change during a
// nonzero sleep collects immediately, which is what makes shrinking a long
// interval take effect right away instead of after the old sleep.
func (h *handle) wait(changes <-chan struct{}, done *trigger.Receiver) bool {
	// Discard a change token delivered during the collection that just
	// finished. The interval it announced is re-read below regardless.
	select {
	case <-changes:
	default:
	}

	for {
		d, ok := h.interval().Get()
		if !ok {
			select {
			case <-changes:
				continue
			case <-done.Done():
				return false
			}
		}

		timer := time.NewTimer(d)
		select {
		case <-timer.C:
			return true
		case <-changes:
			timer.Stop()
			if h.interval().IsPresent() {
				return true
			}
			continue
		case <-done.Done():
			timer.Stop()
			return false
		}
	}
}

// Writer is the collection half of an exporter pair created by New. Spawn
// consumes it; the exporter half keeps serving whatever the spawned loop
// publishes.
type Writer struct {
	handle atomic.Pointer[handle]
}

func newWriter(h *handle) *Writer {
	w := &Writer{}
	w.handle.Store(h)
	return w
}

// Spawn starts the collection loop in its own goroutine and returns
// immediately. The callback runs once per cycle and must not retain the
// buffer handle past its return. Spawn is single use: a second call returns
// ErrWriterSpawned.
func (w *Writer) Spawn(write WriteFunc) error {
	h := w.handle.Swap(nil)
	if h == nil {
		return ErrWriterSpawned
	}
	go h.run(write)
	return nil
}
