// Package banner provides colored banner display functions for the runguard
// CLI.
//
// All banner functions write formatted output to stdout with color-coded
// headers and separators. These are console-side only; the persistent log is
// fed through the runlog sink.
package banner

import (
	"fmt"

	"github.com/fatih/color"

	"github.com/akvafakta/runguard/internal/logging"
)

var (
	headerColor  = color.New(color.FgCyan, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	warnColor    = color.New(color.FgYellow, color.Bold).SprintFunc()
)

// PrintStartupBanner displays the session parameters before the first
// attempt.
//
// Example output:
//
//	═══════════════════════════════════════════════════
//	  runguard - single-instance job runner
//	═══════════════════════════════════════════════════
//	  Job:       ./update_daily.sh
//	  Lock:      /tmp/runguard.lock
//	  Log:       logs/runguard-2026-08-25.log
//	  Attempts:  up to 3, 5m 0s apart
//	═══════════════════════════════════════════════════
func PrintStartupBanner(jobCmd, lockFile, logPath string, maxAttempts, retryDelaySecs int) {
	sep := headerColor("═══════════════════════════════════════════════════")
	fmt.Println(sep)
	fmt.Println(headerColor("  runguard - single-instance job runner"))
	fmt.Println(sep)
	fmt.Printf("  Job:       %s\n", jobCmd)
	fmt.Printf("  Lock:      %s\n", lockFile)
	fmt.Printf("  Log:       %s\n", logPath)
	fmt.Printf("  Attempts:  up to %d, %s apart\n", maxAttempts, logging.FormatDuration(retryDelaySecs))
	fmt.Println(sep)
}

// PrintSuccessBanner displays the success banner with session stats.
func PrintSuccessBanner(attempts, durationSecs int) {
	sep := successColor("═══════════════════════════════════════════════════")
	fmt.Println(sep)
	fmt.Println(successColor("  ✓ Job completed successfully"))
	fmt.Printf("  Attempts:  %d\n", attempts)
	fmt.Printf("  Duration:  %s (%ds)\n", logging.FormatDuration(durationSecs), durationSecs)
	fmt.Println(sep)
}

// PrintSkippedBanner displays the contention banner. A skipped run is benign
// and exits with success status.
func PrintSkippedBanner() {
	sep := warnColor("═══════════════════════════════════════════════════")
	fmt.Println(sep)
	fmt.Println(warnColor("  ⚠ Another session is running — skipped"))
	fmt.Println(sep)
}

// PrintExhaustedBanner displays the terminal failure banner.
func PrintExhaustedBanner(attempts int) {
	sep := errorColor("═══════════════════════════════════════════════════")
	fmt.Println(sep)
	fmt.Printf(errorColor("  ✗ Job failed after %d attempts\n"), attempts)
	fmt.Println(sep)
}

// PrintInterruptedBanner displays the interrupt banner.
func PrintInterruptedBanner() {
	sep := warnColor("═══════════════════════════════════════════════════")
	fmt.Println(sep)
	fmt.Println(warnColor("  ⚠ Interrupted — lock released"))
	fmt.Println(sep)
}
