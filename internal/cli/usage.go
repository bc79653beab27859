// Package cli provides help text and usage formatting for the runguard CLI.
package cli

import (
	"github.com/spf13/cobra"
)

const helpTemplate = `runguard - single-instance job runner with bounded retries

USAGE
  runguard [flags]

FLAGS
  Job:
    --job <command>            Command to run (required unless set via JOB_CMD)
    --job-args <args>          Space-separated arguments passed to the job
    --workdir <path>           Working directory for the job (default: .)

  Output & Exclusion:
    --log-dir <path>           Directory for per-day log files (default: logs)
    --lock-file <path>         Path of the exclusive lock file (default: /tmp/runguard.lock)

  Retry Policy:
    --max-attempts <int>       Maximum job attempts per session (default: 3)
    --retry-delay <int>        Seconds to wait between failed attempts (default: 300)

  Notifications:
    --notify-cmd <command>     Command invoked with a message on terminal outcomes

  Misc:
    -v, --verbose              Enable debug output
    --config <path>            Path to additional config file
    --version                  Print version and exit
    -h, --help                 Show this help

EXIT CODES
  0    Job succeeded, or run skipped because another session holds the lock
  1    Every attempt failed
  2    Misconfiguration or unusable log sink
  130  Interrupted by SIGINT/SIGTERM

CONFIG FILES
  Values merge with increasing priority:
    built-in defaults
    ~/.config/runguard/config
    ./.runguard.conf
    --config <path>
    CLI flags

  File format is KEY=VALUE, one per line. Recognized keys: JOB_CMD, JOB_ARGS,
  WORK_DIR, LOG_DIR, LOCK_FILE, MAX_ATTEMPTS, RETRY_DELAY, NOTIFY_CMD, VERBOSE.
`

// SetCustomHelp installs the hand-written help template on the root command.
func SetCustomHelp(cmd *cobra.Command) {
	cmd.SetHelpTemplate(helpTemplate)
}
