// Package cli provides flag binding and validation for the runguard CLI.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/akvafakta/runguard/internal/config"
	"github.com/akvafakta/runguard/internal/runner"
)

// BindFlags registers all CLI flags on the given cobra command.
// The flags directly modify fields in the provided config pointer.
// Call ValidateFlags after parsing to check flag values.
func BindFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	// Job invocation.
	flags.StringVar(&cfg.JobCmd, "job", "", "Command to run (required unless set via JOB_CMD)")
	flags.StringVar(&cfg.JobArgs, "job-args", "", "Space-separated arguments passed to the job")
	flags.StringVar(&cfg.WorkDir, "workdir", ".", "Working directory for the job")

	// Output and exclusion artifacts.
	flags.StringVar(&cfg.LogDir, "log-dir", "logs", "Directory for per-day log files")
	flags.StringVar(&cfg.LockFile, "lock-file", "/tmp/runguard.lock", "Path of the exclusive lock file")

	// Retry policy.
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", runner.DefaultMaxAttempts, "Maximum job attempts per session")
	flags.IntVar(&cfg.RetryDelaySec, "retry-delay", int(runner.DefaultRetryDelay/time.Second), "Seconds to wait between failed attempts (0 retries immediately)")

	// Notifications.
	flags.StringVar(&cfg.NotifyCmd, "notify-cmd", "", "Command invoked with a message on terminal outcomes")

	// Runtime flags.
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug output")
	flags.StringVar(&cfg.ConfigFile, "config", "", "Path to additional config file")
}

// ValidateFlags checks flag values after parsing.
// Must be called after cmd.Execute() or cmd.ParseFlags().
func ValidateFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("--max-attempts must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelaySec < 0 {
		return fmt.Errorf("--retry-delay must not be negative, got %d", cfg.RetryDelaySec)
	}
	return nil
}
