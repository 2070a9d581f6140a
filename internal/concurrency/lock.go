package concurrency

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

var lockIDSeq int64

// OrderedLock is a reentrant, FIFO-fair lock with timed acquisition and
// forced release-and-resume semantics. The zero value is
// not usable; construct one via LockManager.NewLock so every lock is
// registered with the manager that arbitrates its waits.
type OrderedLock[T comparable] struct {
	id      int64
	manager *LockManager[T]

	mu              sync.Mutex
	owner           *T
	depth           int
	queue           WaitQueue
	waitingByThread map[T]*Semaphore
}

func newOrderedLock[T comparable](manager *LockManager[T]) *OrderedLock[T] {
	return &OrderedLock[T]{
		id:              atomic.AddInt64(&lockIDSeq, 1),
		manager:         manager,
		waitingByThread: make(map[T]*Semaphore),
	}
}

// ID returns the lock's monotonically assigned identifier. It exists for
// debugging and deterministic victim tie-breaking only; locks are never
// compared by id for ownership or conflict purposes.
func (l *OrderedLock[T]) ID() int64 { return l.id }

func (l *OrderedLock[T]) lockID() int64 { return l.id }

// Contains reports whether other is this same lock. Locks, unlike
// scheduling rules, never contain a distinct resource.
func (l *OrderedLock[T]) Contains(other SchedulingRule) bool {
	return l.ConflictsWith(other)
}

// ConflictsWith reports whether other is this same lock: locks conflict
// only with themselves.
func (l *OrderedLock[T]) ConflictsWith(other SchedulingRule) bool {
	o, ok := other.(*OrderedLock[T])
	return ok && o == l
}

// Depth returns the lock's current reentrance count.
func (l *OrderedLock[T]) Depth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth
}

// Acquire blocks until the lock is granted. It never returns
// false and never surfaces cancellation: it spins around AcquireTimeout,
// called with a background context and an infinite timeout, absorbing
// any cancellation and retrying. Callers that want cancellation to
// actually stop the attempt must use AcquireTimeout instead.
func (l *OrderedLock[T]) Acquire(thread T) {
	for {
		ok, err := l.AcquireTimeout(context.Background(), thread, 0)
		if err != nil {
			continue
		}
		if ok {
			return
		}
	}
}

// AcquireTimeout attempts to acquire the lock, waiting at most timeout
// (or indefinitely when timeout <= 0). It returns (true, nil) on
// success, (false, nil) on timeout, and (false, err) when ctx is done
// before either.
func (l *OrderedLock[T]) AcquireTimeout(ctx context.Context, thread T, timeout time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	if granted := l.tryGrantImmediate(thread); granted {
		l.manager.resumeSuspended(thread)
		return true, nil
	}

	s := l.enqueueWaiter(thread)

	// Give an installed hook a chance to service pending work and grant
	// this waiter early, outside both the lock's mutex and the
	// manager's mutex.
	ownerSnapshot, haveOwner := l.currentOwner()
	if haveOwner && l.manager.aboutToWait(ownerSnapshot) {
		l.mu.Lock()
		if l.queue.Get(s) != nil {
			l.queue.Remove(s)
		}
		delete(l.waitingByThread, thread)
		self := thread
		l.owner = &self
		l.depth = 1
		l.mu.Unlock()
		l.manager.acquired(thread, l)
		l.manager.resumeSuspended(thread)
		return true, nil
	}

	// The hook may have dequeued s as a side effect of granting someone
	// else early; re-enqueue at the tail if so, rather than trying to
	// restore its original position. A semaphore whose waitingByThread
	// entry is gone was dequeued by a hand-off that already granted this
	// thread the lock, and is not re-enqueued.
	l.mu.Lock()
	if l.queue.Get(s) == nil && l.waitingByThread[thread] == s {
		l.queue.Enqueue(s)
	}
	l.mu.Unlock()

	l.manager.waitStarted(thread, l)

	ok, err := s.Acquire(ctx, timeout)

	if !ok {
		l.mu.Lock()
		delete(l.waitingByThread, thread)
		l.queue.Remove(s)
		l.mu.Unlock()
		l.manager.waitStopped(thread, l)
		l.manager.resumeSuspended(thread)
		return false, err
	}

	// Release/forceRelease already transferred ownership (owner, depth,
	// the waitingByThread entry, and the manager's acquired bookkeeping)
	// to this thread atomically with the dequeue, under l.mu, before
	// ever signaling s. Re-check rather than re-derive it here: doing
	// so again would re-open the very window a third thread could slip
	// through between the handoff and this continuation.
	l.mu.Lock()
	owner := l.owner
	l.mu.Unlock()
	if owner == nil || *owner != thread {
		panic(errInternal(nil, map[string]interface{}{"lock": l.id, "thread": thread}))
	}

	l.manager.waitStopped(thread, l)
	l.manager.resumeSuspended(thread)
	return true, nil
}

// dequeueLocked pops the head waiter, if any, and returns its semaphore
// together with the thread identity recorded for it in waitingByThread,
// removing that entry too. A semaphore is first enqueued by
// enqueueWaiter, which populates waitingByThread in the same critical
// section, and AcquireTimeout re-enqueues one only while that entry still
// names it, so a queued semaphore always has a matching thread entry.
// Must be called with l.mu held.
func (l *OrderedLock[T]) dequeueLocked() (*Semaphore, T, bool) {
	s := l.queue.Dequeue()
	if s == nil {
		var zero T
		return nil, zero, false
	}
	for t, waiting := range l.waitingByThread {
		if waiting == s {
			delete(l.waitingByThread, t)
			return s, t, true
		}
	}
	var zero T
	return s, zero, false
}

// tryGrantImmediate performs the immediate-grant check under
// the lock's mutex.
func (l *OrderedLock[T]) tryGrantImmediate(thread T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.owner != nil && *l.owner == thread {
		l.depth++
		l.recordAcquiredLocked(thread)
		return true
	}
	if l.owner == nil && l.queue.IsEmpty() {
		self := thread
		l.owner = &self
		l.depth = 1
		l.recordAcquiredLocked(thread)
		return true
	}
	return false
}

// recordAcquiredLocked tells the manager about a hold picked up while
// l.mu is held; the manager call itself only takes its own mutex, never
// l.mu, so lock-mutex-then-manager-mutex ordering is preserved.
func (l *OrderedLock[T]) recordAcquiredLocked(thread T) {
	l.manager.acquired(thread, l)
}

// enqueueWaiter reuses the calling thread's existing queued semaphore,
// if any, or creates and enqueues a new one.
func (l *OrderedLock[T]) enqueueWaiter(thread T) *Semaphore {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.waitingByThread[thread]; ok {
		return s
	}
	s := NewSemaphore()
	l.waitingByThread[thread] = s
	l.queue.Enqueue(s)
	return s
}

func (l *OrderedLock[T]) currentOwner() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.owner == nil {
		var zero T
		return zero, false
	}
	return *l.owner, true
}

// Release decrements the reentrance depth; at depth zero it hands the
// lock to the next queued waiter (if any) and notifies the hook.
// Releasing from a thread that is not the current owner — including a
// thread that calls Release one time too many, since owner is cleared
// the instant depth reaches zero — is a programmer error: it panics
// with a *CoordinatorError after logging rather than silently
// returning.
func (l *OrderedLock[T]) Release(thread T) {
	l.mu.Lock()
	if l.owner == nil || *l.owner != thread {
		l.mu.Unlock()
		l.manager.reportMisuse(errMisuse("release", map[string]interface{}{"lock": l.id}))
		return
	}

	l.depth--
	if l.depth > 0 {
		l.mu.Unlock()
		l.manager.released(thread, l)
		return
	}

	l.owner = nil
	next, nextThread, found := l.dequeueLocked()
	if found {
		self := nextThread
		l.owner = &self
		l.depth = 1
		l.manager.acquired(nextThread, l)
		// Hand off to the waiter while l.mu is still held: Semaphore.Release
		// is a non-blocking buffered send, so this never stalls the
		// critical section, and it closes the window where a third
		// thread's tryGrantImmediate could see owner == nil and queue
		// empty before the intended recipient's continuation runs.
		next.Release()
	}
	l.mu.Unlock()

	l.manager.aboutToRelease()
	l.manager.releasedCompletely(thread, l)
}

// forceRelease releases the lock on behalf of its owner as if its depth
// were one, returning the depth that was in effect so the caller can
// restore it later via setDepth. Used only by deadlock resolution.
func (l *OrderedLock[T]) forceRelease() int {
	l.mu.Lock()
	savedDepth := l.depth
	owner := l.owner
	l.depth = 0
	l.owner = nil
	next, nextThread, found := l.dequeueLocked()
	if found {
		self := nextThread
		l.owner = &self
		l.depth = 1
		l.manager.acquired(nextThread, l)
		next.Release()
	}
	l.mu.Unlock()

	l.manager.aboutToRelease()
	if owner != nil {
		l.manager.releasedCompletely(*owner, l)
	}
	return savedDepth
}

// setDepth restores reentrance accounting after a victim reacquires a
// suspended lock. The caller must have just reacquired l (depth is 1
// immediately after that Acquire); this bumps the manager's holds count
// d-1 more times so the wait-graph multiplicity matches.
func (l *OrderedLock[T]) setDepth(d int) {
	l.mu.Lock()
	thread := *l.owner
	l.depth = d
	l.mu.Unlock()

	for i := 1; i < d; i++ {
		l.manager.acquired(thread, l)
	}
}
