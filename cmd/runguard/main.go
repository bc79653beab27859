package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/spf13/cobra"

	"github.com/akvafakta/runguard/internal/banner"
	"github.com/akvafakta/runguard/internal/cli"
	"github.com/akvafakta/runguard/internal/config"
	"github.com/akvafakta/runguard/internal/exitcode"
	"github.com/akvafakta/runguard/internal/job"
	"github.com/akvafakta/runguard/internal/lockfile"
	"github.com/akvafakta/runguard/internal/logging"
	"github.com/akvafakta/runguard/internal/notification"
	"github.com/akvafakta/runguard/internal/runlog"
	"github.com/akvafakta/runguard/internal/runner"
	sighandler "github.com/akvafakta/runguard/internal/signal"
)

// version vars injected via ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cfg := config.NewDefaultConfig()

	rootCmd := &cobra.Command{
		Use:     "runguard",
		Short:   "Single-instance job runner with bounded retries",
		Long:    "Runguard runs a scheduled job at most once concurrently per host, retries failures a bounded number of times with a fixed delay, and tees all output to a per-day log file.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Validate flags after parsing
			if err := cli.ValidateFlags(cmd, cfg); err != nil {
				return err
			}
			return runSession(cmd, cfg)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Bind all CLI flags to the config
	cli.BindFlags(rootCmd, cfg)

	// Set custom help template
	cli.SetCustomHelp(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitcode.Error)
	}
}

// buildCLIOverrides creates a map of CLI flag overrides from the config.
// Uses cmd.Flags().Changed() to only include flags explicitly set by the
// user, ensuring config file values are not accidentally overridden by
// default values.
func buildCLIOverrides(cmd *cobra.Command, cfg *config.Config) map[string]string {
	overrides := make(map[string]string)

	// String flags: only include if explicitly set via CLI
	stringFlags := map[string]struct {
		key string
		val string
	}{
		"job":        {"JOB_CMD", cfg.JobCmd},
		"job-args":   {"JOB_ARGS", cfg.JobArgs},
		"workdir":    {"WORK_DIR", cfg.WorkDir},
		"log-dir":    {"LOG_DIR", cfg.LogDir},
		"lock-file":  {"LOCK_FILE", cfg.LockFile},
		"notify-cmd": {"NOTIFY_CMD", cfg.NotifyCmd},
	}
	for flag, mapping := range stringFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = mapping.val
		}
	}

	// Int flags
	intFlags := map[string]struct {
		key string
		val int
	}{
		"max-attempts": {"MAX_ATTEMPTS", cfg.MaxAttempts},
		"retry-delay":  {"RETRY_DELAY", cfg.RetryDelaySec},
	}
	for flag, mapping := range intFlags {
		if cmd.Flags().Changed(flag) {
			overrides[mapping.key] = fmt.Sprintf("%d", mapping.val)
		}
	}

	// Bool flags
	if cmd.Flags().Changed("verbose") {
		if cfg.Verbose {
			overrides["VERBOSE"] = "true"
		} else {
			overrides["VERBOSE"] = "false"
		}
	}

	return overrides
}

func runSession(cmd *cobra.Command, cfg *config.Config) error {
	// Load config with full precedence chain. CLI flags are already bound to
	// cfg, now load file-based configs.
	globalConfigPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		globalConfigPath = filepath.Join(home, ".config", "runguard", "config")
	}
	projectConfigPath := ".runguard.conf"
	explicitConfigPath := cfg.ConfigFile

	// Build CLI overrides map using Changed() for accurate detection
	cliOverrides := buildCLIOverrides(cmd, cfg)

	// Load config with precedence
	finalCfg, err := config.LoadWithPrecedence(globalConfigPath, projectConfigPath, explicitConfigPath, cliOverrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Merge CLI-only flags (not in config files)
	finalCfg.ConfigFile = cfg.ConfigFile

	// Replace cfg reference for subsequent use
	cfg = finalCfg

	// Set verbose mode
	logging.SetVerbose(cfg.Verbose)

	if cfg.JobCmd == "" {
		return errors.New("no job configured: set --job or JOB_CMD")
	}

	clock := quartz.NewReal()

	// Attach the output sink before anything else runs
	sink, err := runlog.Open(cfg.LogDir, os.Stdout, clock)
	if err != nil {
		return fmt.Errorf("open log sink: %w", err)
	}
	defer sink.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handler so an interrupt releases the lock before exit
	sighandler.SetupSignalHandler(ctx, cancel, func() {
		logging.Warn("Interrupted — releasing the lock...")
	})

	lock := lockfile.New(cfg.LockFile)
	jb := &job.Command{
		Path:   cfg.JobCmd,
		Args:   strings.Fields(cfg.JobArgs),
		Dir:    cfg.WorkDir,
		Output: sink.Writer(),
	}
	run := &runner.Runner{
		Lock:        lock,
		Job:         jb,
		Log:         sink,
		MaxAttempts: cfg.MaxAttempts,
		RetryDelay:  time.Duration(cfg.RetryDelaySec) * time.Second,
		Clock:       clock,
	}

	banner.PrintStartupBanner(cfg.JobCmd, cfg.LockFile, sink.Path(), cfg.MaxAttempts, cfg.RetryDelaySec)

	start := clock.Now()
	sess, err := run.Run(ctx)
	if err != nil {
		logging.Error(err.Error())
		_ = sink.Close()
		os.Exit(exitcode.Error)
	}

	switch sess.State {
	case runner.Succeeded:
		banner.PrintSuccessBanner(len(sess.Attempts), int(clock.Since(start)/time.Second))
	case runner.Skipped:
		banner.PrintSkippedBanner()
	case runner.Exhausted:
		banner.PrintExhaustedBanner(len(sess.Attempts))
	case runner.Interrupted:
		banner.PrintInterruptedBanner()
	}

	notification.Send(cfg.NotifyCmd, notification.FormatEvent(sess.State.String(), cfg.JobCmd, len(sess.Attempts), sess.Code))
	if cfg.NotifyCmd != "" {
		logging.Info("Notified via " + cfg.NotifyCmd)
	}

	logging.Debug("exit " + exitcode.Name(sess.Code))

	// os.Exit skips deferred calls, so flush the sink explicitly.
	if err := sink.Close(); err != nil {
		logging.Error(err.Error())
		os.Exit(exitcode.Error)
	}
	os.Exit(sess.Code)
	return nil // unreachable
}
