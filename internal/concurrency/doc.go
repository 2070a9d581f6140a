// Package concurrency implements an ordered, reentrant, suspendable lock
// together with the deadlock detector and coordinating manager that keep
// a population of such locks (and user-defined scheduling rules) free of
// permanent wait cycles.
//
// The three collaborators are:
//
//   - OrderedLock: a FIFO-fair reentrant lock with timed acquisition and
//     forced release.
//   - DeadlockDetector: the wait-for multigraph, consulted on every wait.
//   - LockManager: the single coordinator gluing the two together and
//     driving suspension/resume of a victim's locks when a cycle forms.
//
// Thread identity is represented by a caller-supplied comparable type
// parameter (T) rather than any notion of goroutine ID, since Go exposes
// none; callers typically use a small integer or a *Goroutine-ish token
// they already carry.
package concurrency
