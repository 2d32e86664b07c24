package httputil

import (
	"context"
)

// Semaphore limits concurrent network probes. Every URL in a message is
// analyzed in its own goroutine; the semaphore keeps a hostile message with
// many URLs from opening unbounded sockets.
type Semaphore struct {
	sem chan struct{}
}

// NewSemaphore creates a semaphore with the given capacity.
// Capacity should match the per-message URL cap (default 10).
func NewSemaphore(capacity int) *Semaphore {
	if capacity <= 0 {
		capacity = 10
	}
	return &Semaphore{
		sem: make(chan struct{}, capacity),
	}
}

// Acquire blocks until a slot is available or context is cancelled.
// Use this when the probe must eventually run (or the phase deadline expires).
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot to the semaphore.
// Must be called after a successful Acquire().
func (s *Semaphore) Release() {
	select {
	case <-s.sem:
	default:
		// Shouldn't happen - releasing without acquiring
	}
}
