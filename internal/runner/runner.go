// Package runner drives a runguard session: it acquires the exclusive lock
// around every attempt, invokes the job, retries failures with a fixed delay,
// and records the whole session for the caller to report.
package runner

import (
	"context"
	"time"

	"github.com/coder/quartz"

	"github.com/akvafakta/runguard/internal/exitcode"
	"github.com/akvafakta/runguard/internal/job"
	"github.com/akvafakta/runguard/internal/lockfile"
	"github.com/akvafakta/runguard/internal/logging"
	"github.com/akvafakta/runguard/internal/runlog"
)

// Default retry policy, matching the scheduler cadence this runner was
// written for: three tries, five minutes apart.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 300 * time.Second
)

// State is the terminal disposition of a session.
type State int

const (
	Succeeded State = iota
	Skipped
	Exhausted
	Interrupted
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Exhausted:
		return "exhausted"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Attempt records one job invocation within a session. Attempts are numbered
// from 1 and immutable once recorded.
type Attempt struct {
	Ordinal int
	Outcome job.Outcome
	At      time.Time
}

// Session is the ordered record of one runner invocation: its attempts, the
// terminal state, and the process exit code that state maps to.
type Session struct {
	Attempts []Attempt
	State    State
	Code     int
}

// Runner owns the retry policy and failure semantics. Lock, Job, and Log are
// required; MaxAttempts and Clock fall back to defaults. RetryDelay is used
// as given: zero (or less) is a real policy and runs attempts back to back.
type Runner struct {
	Lock        lockfile.Locker
	Job         job.Job
	Log         *runlog.Sink
	MaxAttempts int
	RetryDelay  time.Duration
	Clock       quartz.Clock
}

// Run executes up to MaxAttempts strictly sequential attempts and returns the
// session record. The first success ends the session immediately.
//
// Contention is a benign skip, not a failure: if the lock is already held
// when any attempt starts — including a retry — the whole session finishes
// with exit code 0 and no further attempts.
//
// A non-nil error means the session itself was unusable (lock I/O, sink I/O)
// and the caller should treat it as fatal.
func (r *Runner) Run(ctx context.Context) (Session, error) {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.Clock == nil {
		r.Clock = quartz.NewReal()
	}

	var sess Session

	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		acquired, err := r.Lock.TryAcquire()
		if err != nil {
			return sess, err
		}
		if !acquired {
			if err := r.Log.Problem("lock already held by another session, skipping this run"); err != nil {
				return sess, err
			}
			sess.State = Skipped
			sess.Code = exitcode.Success
			return sess, nil
		}

		outcome, err := r.attempt(ctx, attempt)
		if err != nil {
			return sess, err
		}

		// exec.Cmd folds tee-writer failures into the job's result; a lost
		// log destination is a fatal sink error, not an attempt failure.
		if err := r.Log.Err(); err != nil {
			return sess, err
		}
		sess.Attempts = append(sess.Attempts, Attempt{Ordinal: attempt, Outcome: outcome, At: r.Clock.Now()})

		if outcome.Success {
			if err := r.Log.Event("attempt %d/%d succeeded", attempt, r.MaxAttempts); err != nil {
				return sess, err
			}
			sess.State = Succeeded
			sess.Code = exitcode.Success
			return sess, nil
		}

		// A cancelled context means the failure came from the interrupt, not
		// the job. The deferred release has already run.
		if ctx.Err() != nil {
			if err := r.Log.Problem("interrupted during attempt %d", attempt); err != nil {
				return sess, err
			}
			sess.State = Interrupted
			sess.Code = exitcode.Interrupted
			return sess, nil
		}

		if err := r.Log.Problem("attempt %d/%d failed (exit %d)", attempt, r.MaxAttempts, outcome.Code); err != nil {
			return sess, err
		}

		if attempt < r.MaxAttempts {
			logging.Debug("waiting " + logging.FormatDuration(int(r.RetryDelay/time.Second)) + " before next attempt")
			if err := r.sleep(ctx); err != nil {
				if err := r.Log.Problem("interrupted while waiting to retry"); err != nil {
					return sess, err
				}
				sess.State = Interrupted
				sess.Code = exitcode.Interrupted
				return sess, nil
			}
		}
	}

	if err := r.Log.Problem("giving up after %d attempts", r.MaxAttempts); err != nil {
		return sess, err
	}
	sess.State = Exhausted
	sess.Code = exitcode.Exhausted
	return sess, nil
}

// attempt runs the job while the lock is held. The deferred release covers
// every exit path of the attempt, including a job killed by the interrupt
// signal, and frees the slot before any retry sleep so other scheduled
// invocations can run during the backoff window.
func (r *Runner) attempt(ctx context.Context, n int) (job.Outcome, error) {
	defer func() {
		if err := r.Lock.Release(); err != nil {
			logging.Warn("release lock: " + err.Error())
		}
	}()

	if err := r.Log.Event("attempt %d/%d starting", n, r.MaxAttempts); err != nil {
		return job.Outcome{}, err
	}
	return r.Job.Run(ctx), nil
}

// sleep blocks for RetryDelay or until ctx is cancelled.
func (r *Runner) sleep(ctx context.Context) error {
	if r.RetryDelay <= 0 {
		return ctx.Err()
	}
	timer := r.Clock.NewTimer(r.RetryDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
