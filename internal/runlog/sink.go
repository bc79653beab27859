// Package runlog fans runguard output out to a per-day append-only log file
// and the invoking terminal.
//
// Lifecycle records use the "==>" prefix, failure and contention records use
// "!!". Every record carries an RFC 3339 timestamp. Records and raw job
// output share one mutex, so both destinations observe the same relative
// order. The file half is plain text; the console half colors the prefix.
package runlog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/fatih/color"
)

const (
	eventPrefix   = "==>"
	problemPrefix = "!!"
)

var (
	eventColor   = color.New(color.FgCyan).SprintFunc()
	problemColor = color.New(color.FgRed).SprintFunc()
)

// Sink is the process-wide output destination. It is initialized once per
// process lifetime via Open.
type Sink struct {
	mu       sync.Mutex
	clock    quartz.Clock
	file     *os.File
	console  io.Writer
	writeErr error
}

// Open creates dir if needed and opens the log file for the current calendar
// date in append mode. Runs on the same day share one file; nothing is ever
// truncated. The clock supplies the date and all record timestamps.
func Open(dir string, console io.Writer, clock quartz.Clock) (*Sink, error) {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}

	name := fmt.Sprintf("runguard-%s.log", clock.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	return &Sink{clock: clock, file: f, console: console}, nil
}

// Path returns the log file location.
func (s *Sink) Path() string {
	return s.file.Name()
}

// Event appends a lifecycle record to both destinations.
func (s *Sink) Event(format string, args ...any) error {
	return s.record(eventPrefix, eventColor, format, args...)
}

// Problem appends a failure or contention record to both destinations.
func (s *Sink) Problem(format string, args ...any) error {
	return s.record(problemPrefix, problemColor, format, args...)
}

func (s *Sink) record(prefix string, colorize func(...interface{}) string, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	ts := s.clock.Now().Format(time.RFC3339)

	s.mu.Lock()
	defer s.mu.Unlock()

	// File first, then console, so a file failure never leaves the console
	// ahead of the persistent record.
	if _, err := fmt.Fprintf(s.file, "%s %s %s\n", prefix, ts, msg); err != nil {
		return fmt.Errorf("write log file: %w", err)
	}
	if _, err := fmt.Fprintf(s.console, "%s %s %s\n", colorize(prefix), ts, msg); err != nil {
		return fmt.Errorf("write console: %w", err)
	}
	return nil
}

// Writer returns the destination for raw job output. Bytes reach the file and
// the console in the same relative order as records written through Event and
// Problem.
func (s *Sink) Writer() io.Writer {
	return &teeWriter{sink: s}
}

type teeWriter struct {
	sink *Sink
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()

	if n, err := w.sink.file.Write(p); err != nil {
		err = fmt.Errorf("write log file: %w", err)
		w.sink.recordErrLocked(err)
		return n, err
	}
	if _, err := w.sink.console.Write(p); err != nil {
		err = fmt.Errorf("write console: %w", err)
		w.sink.recordErrLocked(err)
		return len(p), err
	}
	return len(p), nil
}

func (s *Sink) recordErrLocked(err error) {
	if s.writeErr == nil {
		s.writeErr = err
	}
}

// Err reports the first raw-output write failure, if any. exec.Cmd swallows
// the tee writer's error into the child's result, so callers must check Err
// after a job finishes to tell a lost log apart from a failing job.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeErr
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.file.Sync(); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}
