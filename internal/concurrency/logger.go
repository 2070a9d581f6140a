package concurrency

import (
	"log"
	"os"
)

// Logger is the diagnostic sink used for hook-exception reports and
// detector-disablement notices.
type Logger interface {
	Printf(format string, args ...interface{})
}

// defaultLogger wraps the standard library logger so LockManager always
// has a non-nil sink even when ManagerOptions.Logger is unset.
func defaultLogger() Logger {
	return log.New(os.Stderr, "lockgraph: ", log.LstdFlags)
}
