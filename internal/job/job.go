// Package job invokes the external job and maps its termination to an
// outcome. It is a pure boundary adapter: no retries, no interpretation of
// the job's output.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
)

// startFailureCode mirrors the shell convention for a command that could not
// be executed at all. An unstartable job is an ordinary failure, never a
// distinct error class.
const startFailureCode = 127

// Outcome is the result of one job invocation.
type Outcome struct {
	Success bool
	Code    int // exit status when Success is false
}

func (o Outcome) String() string {
	if o.Success {
		return "success"
	}
	return fmt.Sprintf("failure (exit %d)", o.Code)
}

// Job is the capability the retry runner drives. Implementations report
// success or failure and never retry on their own.
type Job interface {
	Run(ctx context.Context) Outcome
}

// Command runs a configured executable as a child process, with stdout and
// stderr interleaved into Output.
type Command struct {
	Path   string
	Args   []string
	Dir    string
	Output io.Writer
}

// Run executes the command and maps its termination: exit zero is Success,
// any non-zero exit is Failure with that code, and a command that cannot be
// started is Failure with code 127. Cancelling ctx kills the child.
func (c *Command) Run(ctx context.Context) Outcome {
	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Output
	cmd.Stderr = c.Output

	err := cmd.Run()
	if err == nil {
		return Outcome{Success: true}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code < 0 {
			// Killed by a signal; no exit status to report.
			code = startFailureCode
		}
		return Outcome{Code: code}
	}
	return Outcome{Code: startFailureCode}
}
