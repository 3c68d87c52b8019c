package promport

import (
	"bytes"
	"fmt"
	"sync"
	"sync/atomic"
)

// buffers is the double-buffered snapshot store shared by the refresh
// scheduler and the scrape endpoint. One slot is published for reading while
// the other is rewritten; publishing flips an atomic index. Readers lock only
// the published slot, so a scrape never waits on an in-progress collection.
type buffers struct {
	writeMu sync.Mutex
	current atomic.Uint32
	slots   [2]bufferSlot
}

type bufferSlot struct {
	mu  sync.RWMutex
	buf bytes.Buffer
}

func newBuffers() *buffers {
	return &buffers{}
}

// acquire takes the write side of the store: it locks the unpublished slot,
// clears it, and returns a handle scoped to that slot. Writers are serialized;
// a second acquire blocks until the previous handle is closed, which keeps the
// published slot readable at all times.
func (b *buffers) acquire() *MetricsBuffer {
	b.writeMu.Lock()

	next := b.current.Load() ^ 1
	slot := &b.slots[next]
	slot.mu.Lock()
	slot.buf.Reset()

	return &MetricsBuffer{
		owner: b,
		slot:  slot,
		index: next,
	}
}

// snapshot returns a copy of the most recently published contents. Before the
// first publish it returns the empty string.
func (b *buffers) snapshot() string {
	slot := &b.slots[b.current.Load()]
	slot.mu.RLock()
	defer slot.mu.RUnlock()
	return slot.buf.String()
}

// MetricsBuffer is a scoped write handle on the unpublished buffer slot.
// Writes accumulate in place; nothing is visible to scrapes until Close
// publishes the slot. It implements io.Writer and its writes cannot fail.
type MetricsBuffer struct {
	owner  *buffers
	slot   *bufferSlot
	index  uint32
	closed bool
}

// Write implements io.Writer.
func (m *MetricsBuffer) Write(p []byte) (int, error) {
	return m.slot.buf.Write(p)
}

// WriteString appends s and returns the handle for chaining.
func (m *MetricsBuffer) WriteString(s string) *MetricsBuffer {
	m.slot.buf.WriteString(s)
	return m
}

// WriteMetric appends the rendered value and returns the handle for chaining.
func (m *MetricsBuffer) WriteMetric(v fmt.Stringer) *MetricsBuffer {
	m.slot.buf.WriteString(v.String())
	return m
}

// Close publishes the accumulated contents and releases the write side.
// The publish happens exactly once; repeated calls are no-ops.
func (m *MetricsBuffer) Close() {
	if m.closed {
		return
	}
	m.closed = true

	// Publish before releasing the slot so a reader that observes the new
	// index can never see a half-written buffer.
	m.owner.current.Store(m.index)
	m.slot.mu.Unlock()
	m.owner.writeMu.Unlock()
}
