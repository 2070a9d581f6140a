package concurrency

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeLock is a minimal suspendable resource for detector-only tests
// that don't need a real OrderedLock's concurrency machinery.
type fakeLock struct{ id int64 }

func (f *fakeLock) ConflictsWith(other SchedulingRule) bool {
	o, ok := other.(*fakeLock)
	return ok && o == f
}
func (f *fakeLock) Contains(other SchedulingRule) bool { return f.ConflictsWith(other) }
func (f *fakeLock) forceRelease() int                  { return 1 }
func (f *fakeLock) setDepth(int)                       {}
func (f *fakeLock) lockID() int64                      { return f.id }

type fakeRule struct{ id int64 }

func (f *fakeRule) ConflictsWith(other SchedulingRule) bool {
	o, ok := other.(*fakeRule)
	return ok && o == f
}
func (f *fakeRule) Contains(other SchedulingRule) bool { return f.ConflictsWith(other) }

func TestDetector_NoCycleWhenIndependent(t *testing.T) {
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	d.Acquired(1, a)
	dl, unresolvable := d.WaitStart(2, a)
	require.Nil(t, dl)
	require.False(t, unresolvable)
}

func TestDetector_ABBADeadlock(t *testing.T) {
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	b := &fakeLock{id: 2}

	d.Acquired(1, a) // T1 holds A
	d.Acquired(2, b) // T2 holds B

	dl, unresolvable := d.WaitStart(1, b) // T1 waits B
	require.Nil(t, dl)
	require.False(t, unresolvable)

	dl, unresolvable = d.WaitStart(2, a) // T2 waits A -> cycle
	require.False(t, unresolvable)
	require.NotNil(t, dl)
	require.Contains(t, []int{1, 2}, dl.Candidate)
	require.Len(t, dl.Locks, 1)
}

func TestDetector_ThreeCycleDeadlock(t *testing.T) {
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	b := &fakeLock{id: 2}
	c := &fakeLock{id: 3}

	d.Acquired(1, a) // T1 holds A, waits B
	d.Acquired(2, b) // T2 holds B, waits C
	d.Acquired(3, c) // T3 holds C, waits A

	_, unresolvable := d.WaitStart(1, b)
	require.False(t, unresolvable)
	_, unresolvable = d.WaitStart(2, c)
	require.False(t, unresolvable)
	dl, unresolvable := d.WaitStart(3, a)
	require.False(t, unresolvable)
	require.NotNil(t, dl)
	require.Contains(t, []int{1, 2, 3}, dl.Candidate)
	require.Len(t, dl.Locks, 1)
}

func TestDetector_VictimSelection_Deterministic(t *testing.T) {
	// T1 holds two locks in total (one of them off the cycle), T2 holds
	// one: T2 must be picked since it holds fewer locks overall.
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	b := &fakeLock{id: 2}
	extra := &fakeLock{id: 99}

	d.Acquired(1, a)
	d.Acquired(1, extra) // T1 holds an extra, off-cycle lock
	d.Acquired(2, b)

	d.WaitStart(1, b)
	dl, unresolvable := d.WaitStart(2, a)
	require.False(t, unresolvable)
	require.NotNil(t, dl)
	// Both candidates hold exactly 1 lock on the cycle; tie-break falls
	// to total locks held: T1 holds 2 (a, extra), T2 holds 1 (b).
	require.Equal(t, 2, dl.Candidate)
}

func TestDetector_UnresolvableWhenOnlyRulesHeld(t *testing.T) {
	d := NewDeadlockDetector[int]()
	r1 := &fakeRule{id: 1}
	r2 := &fakeRule{id: 2}

	d.Acquired(1, r1)
	d.Acquired(2, r2)

	d.WaitStart(1, r2)
	dl, unresolvable := d.WaitStart(2, r1)
	require.Nil(t, dl)
	require.True(t, unresolvable)
}

func TestDetector_ReentranceDoesNotDuplicateHoldEdge(t *testing.T) {
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	d.Acquired(1, a)
	d.Acquired(1, a) // reentrant
	d.Released(1, a)
	require.False(t, d.IsEmpty())
	d.Released(1, a)
	require.True(t, d.IsEmpty())
}

func TestDetector_WaitStopRemovesEdge(t *testing.T) {
	d := NewDeadlockDetector[int]()
	a := &fakeLock{id: 1}
	d.Acquired(1, a)
	d.WaitStart(2, a)
	d.WaitStop(2, a)
	require.False(t, d.IsEmpty()) // T1's hold remains
	d.Released(1, a)
	require.True(t, d.IsEmpty())
}
