package concurrency

// ManagerOptions configures a LockManager at construction. Zero values
// are valid defaults: no hook, a stderr logger, and no worker-pool
// membership check.
type ManagerOptions[T comparable] struct {
	// Logger receives hook-exception and internal-error diagnostics.
	// Defaults to a stderr logger when nil.
	Logger Logger

	// Hook, if set, is notified before waits and releases. Equivalent
	// to calling SetHook after construction.
	Hook LockHook[T]

	// WorkerPoolMembership, if set, lets IsLockOwner treat threads
	// belonging to the host's worker pool as always owning a lock, so
	// an external joiner observes the correct answer even when the
	// worker isn't currently holding or waiting on anything the
	// manager can see. Defaults to "never."
	WorkerPoolMembership func(T) bool
}
