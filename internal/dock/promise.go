package dock

import (
	"context"
	"fmt"
	"sync/atomic"
)

// oneshot is the shared state behind a Promise/Future pair.
type oneshot struct {
	done   chan struct{}
	result Result // written once before done is closed
	sent   atomic.Bool
	gone   atomic.Bool
}

// Promise is the sending half of a one-shot result channel. It is held by the
// command registry and then by the worker that takes the envelope.
type Promise struct {
	s *oneshot
}

// Future is the receiving half handed back to the submitter.
type Future struct {
	id uint32
	s  *oneshot
}

func newPromise(id uint32) (*Promise, *Future) {
	s := &oneshot{done: make(chan struct{})}
	return &Promise{s: s}, &Future{id: id, s: s}
}

// Resolve delivers r. It never blocks. A second call returns
// ErrAlreadyResolved and changes nothing; a call after the future was
// discarded returns ErrReceiverGone.
func (p *Promise) Resolve(r Result) error {
	if !p.s.sent.CompareAndSwap(false, true) {
		return ErrAlreadyResolved
	}
	p.s.result = r
	close(p.s.done)
	if p.s.gone.Load() {
		return ErrReceiverGone
	}
	return nil
}

// Resolved reports whether Resolve has been called.
func (p *Promise) Resolved() bool {
	return p.s.sent.Load()
}

// ID is the command id this future belongs to.
func (f *Future) ID() uint32 { return f.id }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.s.done }

// TryResult returns the result without blocking.
func (f *Future) TryResult() (Result, bool) {
	select {
	case <-f.s.done:
		return f.s.result, true
	default:
		return Result{}, false
	}
}

// Await blocks until the result arrives or ctx ends. When ctx ends first the
// returned error wraps both ErrClosed and the context error.
func (f *Future) Await(ctx context.Context) (Result, error) {
	select {
	case <-f.s.done:
		return f.s.result, nil
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: command %d: %w", ErrClosed, f.id, ctx.Err())
	}
}

// Discard tells the worker side nobody will read the result. The command still
// runs to completion.
func (f *Future) Discard() {
	f.s.gone.Store(true)
}
