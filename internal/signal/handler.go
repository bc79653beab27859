// Package signal provides signal handling for clean shutdown of the runguard
// CLI.
//
// The SetupSignalHandler function registers handlers for SIGINT and SIGTERM
// so an external interruption releases the exclusive lock (via context
// cancellation propagating to the running attempt) before the process exits.
package signal

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler registers SIGINT and SIGTERM handlers. When a signal is
// received, it calls the onInterrupt callback (if non-nil), then cancels the
// context. Cancellation kills the child job and aborts any retry sleep; the
// runner's deferred lock release then runs as on any other exit path.
//
// The listening goroutine terminates when either a signal is received or the
// context is cancelled.
func SetupSignalHandler(ctx context.Context, cancel context.CancelFunc, onInterrupt func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			if onInterrupt != nil {
				onInterrupt()
			}
			cancel()
		case <-ctx.Done():
			return
		}
	}()
}
