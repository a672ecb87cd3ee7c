// Package lifecycle holds process-wide readiness and drain flags read by the health check.
package lifecycle

import "sync/atomic"

var (
	ready        atomic.Bool
	shuttingDown atomic.Bool
)

// MarkReady records that startup work (config, cache warm-up) is finished.
func MarkReady() {
	ready.Store(true)
}

// IsReady reports whether MarkReady has been called and shutdown has not begun.
func IsReady() bool {
	return ready.Load() && !shuttingDown.Load()
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Reset clears both flags. For tests.
func Reset() {
	ready.Store(false)
	shuttingDown.Store(false)
}
