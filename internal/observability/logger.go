// Package observability provides structured logging for sync runs.
//
// Every orchestration emits exactly one entry: run id, sync type, window,
// rows processed, duration, outcome, and error if any. Structured JSON
// only; silent failures are forbidden.
package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// RunLogEntry contains the required fields for run logging.
type RunLogEntry struct {
	// RunID is the durable audit record id for this run.
	RunID int64

	// JobID is the in-memory job handle, empty for CLI-invoked runs.
	JobID string

	// SyncType is the requested sync type, including "both".
	SyncType string

	// DateFrom/DateTo are the resolved extraction window bounds in
	// YYYY-MM-DD form; empty when defaults applied.
	DateFrom string
	DateTo   string

	// Rows is the total row count merged across fact types.
	Rows int

	// Duration is how long the run took.
	Duration time.Duration

	// Outcome is "success" or "failed".
	Outcome string

	// Error is the failure message, empty on success.
	Error string
}

// Validate checks that required fields are present.
func (e *RunLogEntry) Validate() error {
	if e.SyncType == "" {
		return fmt.Errorf("observability: sync_type is required")
	}
	if e.Outcome == "" {
		return fmt.Errorf("observability: outcome is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// RunLogger is the interface for sync run logging.
type RunLogger interface {
	// LogRun logs one sync run. Returns an error if the entry is invalid
	// or the write fails.
	LogRun(ctx context.Context, entry RunLogEntry) error
}

type jsonLogOutput struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	RunID      int64  `json:"run_id"`
	JobID      string `json:"job_id,omitempty"`
	SyncType   string `json:"sync_type"`
	DateFrom   string `json:"date_from,omitempty"`
	DateTo     string `json:"date_to,omitempty"`
	Rows       int    `json:"rows"`
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
}

// JSONLogger implements RunLogger with JSON line output.
type JSONLogger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewJSONLogger creates a logger writing JSON lines to w.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

// LogRun logs a sync run as one JSON line.
func (l *JSONLogger) LogRun(ctx context.Context, entry RunLogEntry) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("observability: context error: %w", err)
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	level := "info"
	if entry.Error != "" {
		level = "error"
	}

	data, err := json.Marshal(jsonLogOutput{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		RunID:      entry.RunID,
		JobID:      entry.JobID,
		SyncType:   entry.SyncType,
		DateFrom:   entry.DateFrom,
		DateTo:     entry.DateTo,
		Rows:       entry.Rows,
		DurationMs: entry.Duration.Milliseconds(),
		Outcome:    entry.Outcome,
		Error:      entry.Error,
	})
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}
	return nil
}

// NoopLogger discards all logs. Useful for tests.
type NoopLogger struct{}

// NewNoopLogger creates a no-op logger.
func NewNoopLogger() *NoopLogger { return &NoopLogger{} }

// LogRun does nothing and always succeeds.
func (l *NoopLogger) LogRun(ctx context.Context, entry RunLogEntry) error { return nil }
