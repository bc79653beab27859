package runner_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akvafakta/runguard/internal/exitcode"
	"github.com/akvafakta/runguard/internal/job"
	"github.com/akvafakta/runguard/internal/lockfile"
	"github.com/akvafakta/runguard/internal/runlog"
	"github.com/akvafakta/runguard/internal/runner"
)

// fakeLock is an in-memory Locker that records every operation in order.
// maxAcquires > 0 caps how many acquires succeed, simulating another
// scheduler grabbing the lock between attempts.
type fakeLock struct {
	held        bool
	denyAll     bool
	acquires    int
	maxAcquires int
	ops         []string
}

func (f *fakeLock) TryAcquire() (bool, error) {
	if f.denyAll || f.held || (f.maxAcquires > 0 && f.acquires >= f.maxAcquires) {
		f.ops = append(f.ops, "denied")
		return false, nil
	}
	f.held = true
	f.acquires++
	f.ops = append(f.ops, "acquire")
	return true, nil
}

func (f *fakeLock) Release() error {
	f.held = false
	f.ops = append(f.ops, "release")
	return nil
}

// fakeJob returns scripted outcomes in order; calls beyond the script succeed.
type fakeJob struct {
	calls   int
	results []job.Outcome
	block   bool // wait for ctx cancellation before returning
}

func (f *fakeJob) Run(ctx context.Context) job.Outcome {
	idx := f.calls
	f.calls++
	if f.block {
		<-ctx.Done()
		return job.Outcome{Code: 1}
	}
	if idx < len(f.results) {
		return f.results[idx]
	}
	return job.Outcome{Success: true}
}

func failure(code int) job.Outcome { return job.Outcome{Code: code} }
func success() job.Outcome         { return job.Outcome{Success: true} }

func newSink(t *testing.T) *runlog.Sink {
	t.Helper()
	sink, err := runlog.Open(t.TempDir(), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	return sink
}

func readLog(t *testing.T, sink *runlog.Sink) string {
	t.Helper()
	data, err := os.ReadFile(sink.Path())
	require.NoError(t, err)
	return string(data)
}

func TestRunSucceedsFirstAttempt(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{success()}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Succeeded, sess.State)
	assert.Equal(t, exitcode.Success, sess.Code)
	require.Len(t, sess.Attempts, 1)
	assert.Equal(t, 1, sess.Attempts[0].Ordinal)
	assert.True(t, sess.Attempts[0].Outcome.Success)
	assert.Equal(t, 1, jb.calls)
	assert.False(t, lock.held, "lock must be released after the session")
}

func TestRunEarlySuccessStopsRetrying(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(1), success()}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Succeeded, sess.State)
	assert.Equal(t, exitcode.Success, sess.Code)
	require.Len(t, sess.Attempts, 2, "a success ends the session, no third attempt")
	assert.Equal(t, 2, jb.calls)

	log := readLog(t, sink)
	assert.Contains(t, log, "attempt 1/3 failed (exit 1)")
	assert.Contains(t, log, "attempt 2/3 succeeded")
	assert.NotContains(t, log, "attempt 3/3")
}

func TestRunExhaustsAttempts(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(2), failure(2), failure(2)}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Exhausted, sess.State)
	assert.Equal(t, exitcode.Exhausted, sess.Code)
	require.Len(t, sess.Attempts, 3)
	assert.Equal(t, 3, jb.calls)

	log := readLog(t, sink)
	assert.Equal(t, 3, strings.Count(log, "failed (exit 2)"))
	assert.Contains(t, log, "giving up after 3 attempts")
}

func TestRunNoSleepAfterFinalAttempt(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(1)}}
	sink := newSink(t)

	// With a one-hour delay, the session only finishes promptly if the runner
	// skips the sleep once attempts are exhausted.
	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 1, RetryDelay: time.Hour}

	done := make(chan runner.Session, 1)
	go func() {
		sess, err := r.Run(context.Background())
		assert.NoError(t, err)
		done <- sess
	}()

	select {
	case sess := <-done:
		assert.Equal(t, runner.Exhausted, sess.State)
	case <-time.After(5 * time.Second):
		t.Fatal("runner slept after the final attempt")
	}
}

func TestRunSkipsOnContention(t *testing.T) {
	lock := &fakeLock{denyAll: true}
	jb := &fakeJob{}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Skipped, sess.State)
	assert.Equal(t, exitcode.Success, sess.Code, "contention is a benign skip, not a failure")
	assert.Empty(t, sess.Attempts)
	assert.Equal(t, 0, jb.calls)

	log := readLog(t, sink)
	assert.Contains(t, log, "!! ")
	assert.Contains(t, log, "skipping this run")
	assert.NotContains(t, log, "==> ", "a skipped session records no attempts")
}

func TestRunSkipsOnContentionDuringRetry(t *testing.T) {
	// Another scheduler holds the lock by the time the retry starts: the
	// first acquire succeeds, every later one is denied.
	lock := &fakeLock{maxAcquires: 1}
	jb := &fakeJob{results: []job.Outcome{failure(1)}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Skipped, sess.State)
	assert.Equal(t, exitcode.Success, sess.Code)
	require.Len(t, sess.Attempts, 1, "the first attempt ran, the retry was skipped")
}

func TestRunReleasesLockBeforeSleeping(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(1), failure(1)}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 2, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Exhausted, sess.State)
	// Each attempt is a full acquire/release pair: the slot is free during
	// the backoff window.
	assert.Equal(t, []string{"acquire", "release", "acquire", "release"}, lock.ops)
}

func TestRunReleasesFileLockOnEveryPath(t *testing.T) {
	tests := []struct {
		name    string
		results []job.Outcome
	}{
		{"success", []job.Outcome{success()}},
		{"exhaustion", []job.Outcome{failure(1), failure(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockPath := filepath.Join(t.TempDir(), "runguard.lock")
			r := &runner.Runner{
				Lock:        lockfile.New(lockPath),
				Job:         &fakeJob{results: tt.results},
				Log:         newSink(t),
				MaxAttempts: 2,
				RetryDelay:  10 * time.Millisecond,
			}

			_, err := r.Run(context.Background())
			require.NoError(t, err)

			_, err = os.Stat(lockPath)
			assert.True(t, os.IsNotExist(err), "lock file must not survive the session")
		})
	}
}

func TestRunInterruptedDuringSleep(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(1)}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	sess, err := r.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, runner.Interrupted, sess.State)
	assert.Equal(t, exitcode.Interrupted, sess.Code)
	require.Len(t, sess.Attempts, 1)
	assert.False(t, lock.held, "lock must be released before the interrupted exit")
}

func TestRunInterruptedDuringJob(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{block: true}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	sess, err := r.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, runner.Interrupted, sess.State)
	assert.Equal(t, exitcode.Interrupted, sess.Code)
	assert.False(t, lock.held, "the deferred release covers the signal path")

	log := readLog(t, sink)
	assert.Contains(t, log, "interrupted during attempt 1")
}

func TestRunSinkFailureIsFatal(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{}

	sink, err := runlog.Open(t.TempDir(), &bytes.Buffer{}, nil)
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	_, err = r.Run(context.Background())

	require.Error(t, err, "a sink that cannot persist records aborts the session")
	assert.False(t, lock.held, "lock must be released even when logging fails")
	assert.Equal(t, 0, jb.calls, "the job must not run without a working sink")
}

func TestRunAppliesDefaults(t *testing.T) {
	r := &runner.Runner{
		Lock: &fakeLock{},
		Job:  &fakeJob{results: []job.Outcome{success()}},
		Log:  newSink(t),
	}

	sess, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, runner.Succeeded, sess.State)
	assert.Equal(t, runner.DefaultMaxAttempts, r.MaxAttempts)
	// RetryDelay is taken as given; the 300s default lives in the config
	// layer, not here.
	assert.Equal(t, time.Duration(0), r.RetryDelay)
}

func TestRunZeroRetryDelayRetriesImmediately(t *testing.T) {
	lock := &fakeLock{}
	jb := &fakeJob{results: []job.Outcome{failure(1), failure(1)}}
	sink := newSink(t)

	r := &runner.Runner{Lock: lock, Job: jb, Log: sink, MaxAttempts: 2, RetryDelay: 0}

	done := make(chan runner.Session, 1)
	go func() {
		sess, err := r.Run(context.Background())
		assert.NoError(t, err)
		done <- sess
	}()

	// Zero is a real policy, not "unset": both attempts run back to back
	// without the five-minute default sneaking in between.
	select {
	case sess := <-done:
		assert.Equal(t, runner.Exhausted, sess.State)
		require.Len(t, sess.Attempts, 2)
		assert.Equal(t, time.Duration(0), r.RetryDelay)
	case <-time.After(2 * time.Second):
		t.Fatal("runner slept despite a zero retry delay")
	}
}

// sinkBreakingJob makes the log file vanish mid-job and then emits output,
// the way a full or unmounted disk would surface during a long-running child.
type sinkBreakingJob struct {
	sink *runlog.Sink
}

func (j *sinkBreakingJob) Run(ctx context.Context) job.Outcome {
	_ = j.sink.Close()
	_, _ = j.sink.Writer().Write([]byte("output after the log file vanished\n"))
	return job.Outcome{Success: true}
}

func TestRunSinkWriteFailureDuringJobIsFatal(t *testing.T) {
	lock := &fakeLock{}
	sink, err := runlog.Open(t.TempDir(), &bytes.Buffer{}, nil)
	require.NoError(t, err)

	r := &runner.Runner{Lock: lock, Job: &sinkBreakingJob{sink: sink}, Log: sink, MaxAttempts: 3, RetryDelay: 10 * time.Millisecond}
	sess, err := r.Run(context.Background())

	// Losing the log mid-job aborts the session; it is not an attempt
	// failure to retry, even though the job itself reported success.
	require.Error(t, err)
	assert.Empty(t, sess.Attempts)
	assert.False(t, lock.held, "lock must be released after the aborted attempt")
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state runner.State
		want  string
	}{
		{runner.Succeeded, "succeeded"},
		{runner.Skipped, "skipped"},
		{runner.Exhausted, "exhausted"},
		{runner.Interrupted, "interrupted"},
		{runner.State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.String())
		})
	}
}
