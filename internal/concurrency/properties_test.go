package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/orizon-lang/lockgraph/internal/proptest"
	"github.com/orizon-lang/lockgraph/internal/stress"
)

// TestProperty_NWayRingAlwaysResolves generalizes the three-cycle scenario
// to randomized arrival orders over a fixed ring of locks: whatever order
// threads start in, the manager must resolve the resulting wait-for cycle
// (or avoid one entirely) and end with every lock released.
func TestProperty_NWayRingAlwaysResolves(t *testing.T) {
	const ringSize = 4

	gen := proptest.GenPermutation(ringSize)
	shrink := proptest.ShrinkPermutation()

	prop := func(order []int) bool {
		m := NewLockManager[int](ManagerOptions[int]{})
		locks := make([]*OrderedLock[int], ringSize)
		for i := range locks {
			locks[i] = m.NewLock()
		}

		threads := make([]stress.Thread[int], ringSize)
		for i := 0; i < ringSize; i++ {
			i := i
			first := locks[i]
			second := locks[(i+1)%ringSize]
			threads[i] = stress.Thread[int]{
				ID: i,
				Work: func(ctx context.Context) error {
					first.Acquire(i)
					defer first.Release(i)
					second.Acquire(i)
					defer second.Release(i)
					return nil
				},
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := stress.RunInterleaving(ctx, threads, order, time.Microsecond); err != nil {
			return false
		}
		return m.IsEmpty()
	}

	res := proptest.ForAll1(gen, shrink, prop, proptest.Options{Trials: 40, MaxShrinkTime: 2 * time.Second})
	if res.Failed {
		t.Fatalf("ring deadlock resolution failed: seed=%d order=%v shrunk=%v",
			res.Seed, res.FailingInput, res.ShrunkInput)
	}
}

// TestProperty_ReentranceDepthAlwaysRestoredAfterSuspension checks that
// whatever depth a victim held before suspension, setDepth restores it
// exactly, for every depth from 1 through 5.
func TestProperty_ReentranceDepthAlwaysRestoredAfterSuspension(t *testing.T) {
	for depth := 1; depth <= 5; depth++ {
		depth := depth
		m := NewLockManager[int](ManagerOptions[int]{})
		a := m.NewLock()
		b := m.NewLock()

		threads := []stress.Thread[int]{
			{ID: 1, Work: func(ctx context.Context) error {
				for i := 0; i < depth; i++ {
					a.Acquire(1)
				}
				b.Acquire(1)
				b.Release(1)
				for i := 0; i < depth; i++ {
					a.Release(1)
				}
				return nil
			}},
			{ID: 2, Work: func(ctx context.Context) error {
				b.Acquire(2)
				a.Acquire(2)
				a.Release(2)
				b.Release(2)
				return nil
			}},
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := stress.AllComplete(ctx, threads)
		cancel()
		if err != nil {
			t.Fatalf("depth %d: concurrent run failed: %v", depth, err)
		}
		if a.Depth() != 0 || b.Depth() != 0 {
			t.Fatalf("depth %d: expected both locks fully released, got a=%d b=%d", depth, a.Depth(), b.Depth())
		}
	}
}
