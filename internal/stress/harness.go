package stress

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Thread is one participant in a RunInterleaving fan-out: an identity and
// the work it performs once admitted.
type Thread[T any] struct {
	ID   T
	Work func(ctx context.Context) error
}

// RunInterleaving admits threads according to order, a permutation of
// indices into threads (as produced by proptest.GenPermutation), staggering
// their start by a small fixed delay so that arrival order at the first
// contended resource is deterministic-ish without serializing the whole
// run. It returns the first non-nil error from any thread's Work, or nil
// once every admitted thread has finished.
//
// AllComplete below uses the same errgroup fan-out without the stagger;
// neither bounds how many threads run at once.
func RunInterleaving[T any](ctx context.Context, threads []Thread[T], order []int, stagger time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	for rank, idx := range order {
		if idx < 0 || idx >= len(threads) {
			continue
		}
		th := threads[idx]
		delay := time.Duration(rank) * stagger

		g.Go(func() error {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return th.Work(gctx)
		})
	}

	return g.Wait()
}

// AllComplete runs every thread concurrently with no stagger and waits for
// all of them, used by scenario tests that only care whether a set of
// concurrent acquisitions eventually all finish (deadlock resolution must
// guarantee forward progress, not a specific order).
func AllComplete[T any](ctx context.Context, threads []Thread[T]) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, th := range threads {
		th := th
		g.Go(func() error { return th.Work(gctx) })
	}
	return g.Wait()
}
