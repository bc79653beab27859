// Package config defines the runguard configuration model and default
// values.
//
// Configuration is assembled from multiple sources with a strict precedence
// chain: built-in defaults < global config file < project config file <
// explicit config file < CLI flag overrides.
package config

import (
	"time"

	"github.com/akvafakta/runguard/internal/runner"
)

// WhitelistedVars lists every configuration variable name that may appear in
// config files. Variables not in this list are silently ignored during
// loading.
var WhitelistedVars = [9]string{
	"JOB_CMD",
	"JOB_ARGS",
	"WORK_DIR",
	"LOG_DIR",
	"LOCK_FILE",
	"MAX_ATTEMPTS",
	"RETRY_DELAY",
	"NOTIFY_CMD",
	"VERBOSE",
}

// Config holds every configuration field for the runguard CLI.
type Config struct {
	// Job invocation.
	JobCmd  string
	JobArgs string // space-separated extra arguments
	WorkDir string

	// Output and exclusion artifacts.
	LogDir   string
	LockFile string

	// Retry policy.
	MaxAttempts   int
	RetryDelaySec int

	// Notification hook, run once with a message on terminal outcomes.
	NotifyCmd string

	// Runtime flags.
	Verbose bool

	// CLI-only flags (not loaded from config files).
	ConfigFile string
}

// NewDefaultConfig returns a Config populated with all built-in default
// values.
func NewDefaultConfig() *Config {
	return &Config{
		WorkDir:       ".",
		LogDir:        "logs",
		LockFile:      "/tmp/runguard.lock",
		MaxAttempts:   runner.DefaultMaxAttempts,
		RetryDelaySec: int(runner.DefaultRetryDelay / time.Second),
	}
}
