package concurrency

import (
	"context"
	"time"
)

// Semaphore is a one-shot handoff primitive owned by exactly one
// waiter. Release unblocks exactly one pending Acquire and is idempotent
// against being called before any Acquire has started (the handoff is
// simply waiting in the channel buffer).
type Semaphore struct {
	release chan struct{}
}

// NewSemaphore creates an unreleased Semaphore.
func NewSemaphore() *Semaphore {
	return &Semaphore{release: make(chan struct{}, 1)}
}

// Release unblocks exactly one pending (or future) Acquire. Calling it
// more than once is harmless: only the first send is kept, the rest are
// dropped since the channel buffer is already full.
func (s *Semaphore) Release() {
	select {
	case s.release <- struct{}{}:
	default:
	}
}

// Acquire blocks until Release is called, until timeout elapses (when
// timeout > 0), or until ctx is done. It returns (true, nil) on release,
// (false, nil) on timeout, and (false, ctx.Err()) on cancellation.
//
// A timeout <= 0 waits indefinitely, modeling the "effectively infinite
// timeout" the untimed acquire path spins around.
func (s *Semaphore) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}
	select {
	case <-s.release:
		return true, nil
	case <-ctx.Done():
		// A release that landed in the buffer at the same instant as the
		// cancellation must still win: the handoff side already
		// transferred ownership before signaling, so dropping it here
		// would strand that ownership on a thread that never learns it
		// holds the lock.
		select {
		case <-s.release:
			return true, nil
		default:
			return false, ctx.Err()
		}
	case <-timeoutCh:
		select {
		case <-s.release:
			return true, nil
		default:
			return false, nil
		}
	}
}
