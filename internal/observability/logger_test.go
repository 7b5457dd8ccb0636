package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestLogRunWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	entry := RunLogEntry{
		RunID:    7,
		JobID:    "job-1",
		SyncType: "fact_order",
		DateFrom: "2025-01-01",
		DateTo:   "2025-01-31",
		Rows:     120,
		Duration: 2500 * time.Millisecond,
		Outcome:  "success",
	}
	if err := logger.LogRun(context.Background(), entry); err != nil {
		t.Fatalf("log: %v", err)
	}

	line := buf.Bytes()
	if line[len(line)-1] != '\n' {
		t.Error("output is not newline terminated")
	}

	var out map[string]interface{}
	if err := json.Unmarshal(line, &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if out["level"] != "info" {
		t.Errorf("level = %v, want info", out["level"])
	}
	if out["sync_type"] != "fact_order" {
		t.Errorf("sync_type = %v, want fact_order", out["sync_type"])
	}
	if out["rows"] != float64(120) {
		t.Errorf("rows = %v, want 120", out["rows"])
	}
	if out["duration_ms"] != float64(2500) {
		t.Errorf("duration_ms = %v, want 2500", out["duration_ms"])
	}
	if _, present := out["error"]; present {
		t.Error("error field present on success")
	}
}

func TestLogRunFailureUsesErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)

	entry := RunLogEntry{
		RunID:    8,
		SyncType: "both",
		Outcome:  "failed",
		Error:    "merge into fact_delivery failed",
	}
	if err := logger.LogRun(context.Background(), entry); err != nil {
		t.Fatalf("log: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if out["level"] != "error" {
		t.Errorf("level = %v, want error", out["level"])
	}
	if out["error"] != "merge into fact_delivery failed" {
		t.Errorf("error = %v", out["error"])
	}
}

func TestLogRunRejectsInvalidEntry(t *testing.T) {
	logger := NewJSONLogger(&bytes.Buffer{})

	tests := []struct {
		name  string
		entry RunLogEntry
	}{
		{"missing sync_type", RunLogEntry{Outcome: "success"}},
		{"missing outcome", RunLogEntry{SyncType: "fact_order"}},
		{"negative duration", RunLogEntry{SyncType: "fact_order", Outcome: "success", Duration: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := logger.LogRun(context.Background(), tt.entry); err == nil {
				t.Error("invalid entry accepted")
			}
		})
	}
}

func TestLogRunHonorsContext(t *testing.T) {
	logger := NewJSONLogger(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entry := RunLogEntry{SyncType: "fact_order", Outcome: "success"}
	if err := logger.LogRun(ctx, entry); err == nil {
		t.Error("cancelled context accepted")
	}
}
