// Package exitcode defines named exit codes for the runguard CLI.
//
// Each code maps a terminal session condition to a numeric value recognized
// by the scheduler wrapping this tool.
package exitcode

const (
	Success     = 0   // job succeeded, or run skipped because another session holds the lock
	Exhausted   = 1   // every attempt failed
	Error       = 2   // misconfiguration or unusable log sink
	Interrupted = 130 // SIGINT/SIGTERM received
)

// Name returns the human-readable name for the given exit code.
// Unknown codes return "unknown".
func Name(code int) string {
	switch code {
	case Success:
		return "Success"
	case Exhausted:
		return "Exhausted"
	case Error:
		return "Error"
	case Interrupted:
		return "Interrupted"
	default:
		return "unknown"
	}
}
