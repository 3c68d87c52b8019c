// Package trigger provides a one-shot broadcast signal split into a firing
// half and a receiving half.
//
// A Trigger completes at most once. Receivers observe completion through a
// channel that is closed on fire, so any number of goroutines can select on
// it alongside timers and other channels. Receivers are cheap to clone, and
// a receiver that stops waiting early can deregister without waking anyone.
package trigger

import (
	"context"
	"sync"
	"sync/atomic"
)

// state is shared by a Trigger and all Receivers minted from it.
type state struct {
	fired   atomic.Bool
	nextID  atomic.Uint64
	mu      sync.Mutex
	waiters map[uint64]chan struct{}
}

// Trigger is the firing half. It may be shared and fired from any goroutine.
type Trigger struct {
	state *state
}

// Receiver is the receiving half. Each receiver has its own identity in the
// waiter registry; use Clone to hand completion observation to another
// goroutine without sharing a registration.
type Receiver struct {
	id    uint64
	state *state
}

// New returns a connected trigger/receiver pair.
func New() (*Trigger, *Receiver) {
	s := &state{
		waiters: make(map[uint64]chan struct{}),
	}
	return &Trigger{state: s}, &Receiver{id: 0, state: s}
}

// Fire completes the trigger. The first call closes every registered waiter
// channel before returning; later calls are no-ops.
func (t *Trigger) Fire() {
	s := t.state
	if !s.fired.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, ch := range waiters {
		close(ch)
	}
}

// Fired reports whether the trigger has completed.
func (t *Trigger) Fired() bool {
	return t.state.fired.Load()
}

// Done returns a channel that is closed once the trigger fires. Repeated
// calls on the same receiver return the same channel while the trigger is
// pending; after firing, an already-closed channel is returned.
func (r *Receiver) Done() <-chan struct{} {
	s := r.state
	if s.fired.Load() {
		return closedChan
	}

	s.mu.Lock()
	// Re-check under the lock: Fire marks completion before draining the
	// registry, so a waiter registered here is either woken by that drain
	// or never needed.
	if s.fired.Load() {
		s.mu.Unlock()
		return closedChan
	}
	ch, ok := s.waiters[r.id]
	if !ok {
		ch = make(chan struct{})
		s.waiters[r.id] = ch
	}
	s.mu.Unlock()

	return ch
}

// Fired reports whether the trigger has completed.
func (r *Receiver) Fired() bool {
	return r.state.fired.Load()
}

// Wait blocks until the trigger fires or the context is done. It returns nil
// on completion and the context error otherwise.
func (r *Receiver) Wait(ctx context.Context) error {
	select {
	case <-r.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clone returns a receiver with a fresh identity against the same trigger,
// suitable for handing to another goroutine.
func (r *Receiver) Clone() *Receiver {
	return &Receiver{
		id:    r.state.nextID.Add(1),
		state: r.state,
	}
}

// Close deregisters the receiver's pending waiter, if any, without waking it.
// Safe to call multiple times and after the trigger has fired.
func (r *Receiver) Close() {
	s := r.state
	if s.fired.Load() {
		return
	}
	s.mu.Lock()
	delete(s.waiters, r.id)
	s.mu.Unlock()
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()
