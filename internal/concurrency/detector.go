package concurrency

import "sort"

// suspendable is implemented by resources whose ownership can be
// forcibly revoked to break a deadlock. OrderedLock is the only
// implementer; a SchedulingRule written by user code never satisfies it,
// scheduling rules can never be forcibly revoked, only locks can.
type suspendable interface {
	SchedulingRule
	forceRelease() int
	setDepth(d int)
	lockID() int64
}

// Deadlock is the result of a positive cycle detection: the chosen
// victim and the resources, currently held by it, that participate in
// the cycle and must be suspended to break it.
type Deadlock[T comparable] struct {
	Candidate T
	Locks     []suspendable
}

// edgeKey identifies a (thread, resource) pair for the reentrance-depth
// table.
type edgeKey[T comparable] struct {
	thread T
	res    SchedulingRule
}

// DeadlockDetector maintains the wait-for multigraph:
// which threads hold which resources, which thread each is waiting for
// (at most one outstanding wait per thread, since a thread blocks inside
// a single Acquire call at a time), and reentrance depth per
// (thread, resource) pair. All mutating methods are called while the
// owning LockManager holds its single mutex; DeadlockDetector performs
// no locking of its own.
type DeadlockDetector[T comparable] struct {
	ownerOf      map[SchedulingRule]T
	heldByThread map[T]map[SchedulingRule]struct{}
	depthOf      map[edgeKey[T]]int
	waitFor      map[T]SchedulingRule
}

// NewDeadlockDetector creates an empty detector.
func NewDeadlockDetector[T comparable]() *DeadlockDetector[T] {
	return &DeadlockDetector[T]{
		ownerOf:      make(map[SchedulingRule]T),
		heldByThread: make(map[T]map[SchedulingRule]struct{}),
		depthOf:      make(map[edgeKey[T]]int),
		waitFor:      make(map[T]SchedulingRule),
	}
}

// Acquired records that thread t now holds resource r, incrementing its
// reentrance depth and clearing any wait edge for (t, r).
func (d *DeadlockDetector[T]) Acquired(t T, r SchedulingRule) {
	key := edgeKey[T]{t, r}
	d.depthOf[key]++
	d.ownerOf[r] = t

	set := d.heldByThread[t]
	if set == nil {
		set = make(map[SchedulingRule]struct{})
		d.heldByThread[t] = set
	}
	set[r] = struct{}{}

	if d.waitFor[t] == r {
		delete(d.waitFor, t)
	}
}

// WaitStart records that thread t now waits on resource r, then searches
// for a wait-for cycle reachable from t. It returns a non-nil Deadlock
// when one is found and resolvable, and reports unresolvable via the
// returned bool when a cycle exists but every candidate victim holds a
// non-suspendable rule.
func (d *DeadlockDetector[T]) WaitStart(t T, r SchedulingRule) (dl *Deadlock[T], unresolvable bool) {
	d.waitFor[t] = r

	path, cycle := d.findCycle(t)
	if !cycle {
		return nil, false
	}
	return d.selectVictim(path)
}

// WaitStop removes the wait edge for thread t on resource r, if it
// matches the thread's current wait target.
func (d *DeadlockDetector[T]) WaitStop(t T, r SchedulingRule) {
	if d.waitFor[t] == r {
		delete(d.waitFor, t)
	}
}

// Released decrements the reentrance depth for (t, r); once it reaches
// zero the hold edge is removed.
func (d *DeadlockDetector[T]) Released(t T, r SchedulingRule) {
	key := edgeKey[T]{t, r}
	if d.depthOf[key] <= 0 {
		return
	}
	d.depthOf[key]--
	if d.depthOf[key] == 0 {
		d.removeHold(t, r)
	}
}

// ReleasedCompletely removes the hold edge for (t, r) regardless of
// reentrance depth, used by force-release.
func (d *DeadlockDetector[T]) ReleasedCompletely(t T, r SchedulingRule) {
	d.removeHold(t, r)
}

func (d *DeadlockDetector[T]) removeHold(t T, r SchedulingRule) {
	key := edgeKey[T]{t, r}
	delete(d.depthOf, key)
	if set := d.heldByThread[t]; set != nil {
		delete(set, r)
		if len(set) == 0 {
			delete(d.heldByThread, t)
		}
	}
	if d.ownerOf[r] == t {
		delete(d.ownerOf, r)
	}
}

// IsEmpty reports whether the detector currently tracks no holds or
// waits, for use in tests.
func (d *DeadlockDetector[T]) IsEmpty() bool {
	return len(d.ownerOf) == 0 && len(d.heldByThread) == 0 && len(d.waitFor) == 0
}

// findCycle walks the chain t -> owner(waitFor[t]) -> owner(waitFor[...])
// until it either runs out of edges (no cycle) or revisits t (cycle
// found). Because each thread waits for at most one resource at a time,
// the "multigraph" reduces to a simple path; a cycle exists iff that
// path loops back on its start.
func (d *DeadlockDetector[T]) findCycle(start T) (path []T, found bool) {
	path = []T{start}
	cur := start
	seen := map[T]struct{}{start: {}}
	for {
		res, waiting := d.waitFor[cur]
		if !waiting {
			return nil, false
		}
		owner, held := d.ownerOf[res]
		if !held {
			return nil, false
		}
		if owner == start {
			return path, true
		}
		if _, revisited := seen[owner]; revisited {
			// A cycle exists further down the chain but does not
			// include start; start's own wait is not yet deadlocked.
			return nil, false
		}
		seen[owner] = struct{}{}
		path = append(path, owner)
		cur = owner
	}
}

// candidate captures one cycle participant's suspension profile.
type candidate[T comparable] struct {
	thread      T
	cycleLocks  []suspendable
	totalLocks  int
	minLockID   int64
	hasRule     bool
	pathIndex   int
}

// selectVictim applies a deterministic tie-break over the threads
// on path: minimize locks held on the cycle, then total locks held, then
// lowest OrderedLock id among the contributing locks, then cycle
// discovery order as a final tiebreak.
func (d *DeadlockDetector[T]) selectVictim(path []T) (*Deadlock[T], bool) {
	onCycle := make(map[SchedulingRule]struct{}, len(path))
	for _, t := range path {
		if r, ok := d.waitFor[t]; ok {
			onCycle[r] = struct{}{}
		}
	}

	candidates := make([]candidate[T], 0, len(path))
	for i, t := range path {
		held := d.heldByThread[t]
		c := candidate[T]{thread: t, totalLocks: len(held), minLockID: -1, pathIndex: i}
		for r := range held {
			if _, onPath := onCycle[r]; !onPath {
				continue
			}
			if s, ok := r.(suspendable); ok {
				c.cycleLocks = append(c.cycleLocks, s)
				if c.minLockID == -1 || s.lockID() < c.minLockID {
					c.minLockID = s.lockID()
				}
			} else {
				c.hasRule = true
			}
		}
		candidates = append(candidates, c)
	}

	viable := make([]candidate[T], 0, len(candidates))
	for _, c := range candidates {
		if !c.hasRule {
			viable = append(viable, c)
		}
	}
	if len(viable) == 0 {
		return nil, true
	}

	sort.Slice(viable, func(i, j int) bool {
		a, b := viable[i], viable[j]
		if len(a.cycleLocks) != len(b.cycleLocks) {
			return len(a.cycleLocks) < len(b.cycleLocks)
		}
		if a.totalLocks != b.totalLocks {
			return a.totalLocks < b.totalLocks
		}
		if a.minLockID != b.minLockID {
			return a.minLockID < b.minLockID
		}
		return a.pathIndex < b.pathIndex
	})

	victim := viable[0]
	return &Deadlock[T]{Candidate: victim.thread, Locks: victim.cycleLocks}, false
}
