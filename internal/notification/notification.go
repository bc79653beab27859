// Package notification sends fire-and-forget session notifications through
// an operator-configured command.
package notification

import (
	"context"
	"fmt"
	"os/exec"
	"time"
)

// Event names for terminal session outcomes. They match the runner's state
// names so callers can pass Session.State.String() directly.
const (
	EventSucceeded   = "succeeded"
	EventSkipped     = "skipped"
	EventExhausted   = "exhausted"
	EventInterrupted = "interrupted"
)

// FormatEvent creates a notification message for the given event.
func FormatEvent(event, jobCmd string, attempts, exitCode int) string {
	switch event {
	case EventSucceeded:
		return fmt.Sprintf("✅ %s succeeded after %d attempt(s) (exit %d)", jobCmd, attempts, exitCode)
	case EventSkipped:
		return fmt.Sprintf("⏭️ %s skipped — another session holds the lock (exit %d)", jobCmd, exitCode)
	case EventExhausted:
		return fmt.Sprintf("❌ %s failed after %d attempt(s) (exit %d)", jobCmd, attempts, exitCode)
	case EventInterrupted:
		return fmt.Sprintf("⏸️ %s interrupted at attempt %d (exit %d)", jobCmd, attempts, exitCode)
	default:
		return fmt.Sprintf("ℹ️ %s event: %s (exit %d)", jobCmd, event, exitCode)
	}
}

// Send runs notifyCmd with the message as its single argument.
// Fire-and-forget: never blocks the session, silent on failure.
// No-op when notifyCmd is empty.
func Send(notifyCmd, message string) {
	if notifyCmd == "" {
		return
	}

	// 10-second timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Fire and forget - ignore errors
	_ = exec.CommandContext(ctx, notifyCmd, message).Run()
}
