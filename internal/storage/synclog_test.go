package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/schema"
)

func newTestLog(t *testing.T) *SyncLog {
	t.Helper()
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	dialect, err := db.DialectFor("sqlite")
	if err != nil {
		t.Fatalf("dialect: %v", err)
	}
	if err := schema.NewGuard(conn, dialect).EnsureSyncLog(context.Background()); err != nil {
		t.Fatalf("ensure sync_log: %v", err)
	}
	return NewSyncLog(conn, dialect)
}

func TestStartCreatesRunningRecord(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Start(ctx, "fact_order")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if id <= 0 {
		t.Errorf("id = %d, want positive", id)
	}

	records, err := log.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	rec := records[0]
	if rec.Status != StatusRunning {
		t.Errorf("status = %q, want %q", rec.Status, StatusRunning)
	}
	if rec.EndTime != nil {
		t.Errorf("end_time = %v, want nil while running", rec.EndTime)
	}
	if rec.StartTime.IsZero() {
		t.Error("start_time not set")
	}
}

func TestFinishTransitionsOnce(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Start(ctx, "fact_order")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := log.Finish(ctx, id, StatusSuccess, 42, ""); err != nil {
		t.Fatalf("finish: %v", err)
	}

	records, err := log.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	rec := records[0]
	if rec.Status != StatusSuccess {
		t.Errorf("status = %q, want %q", rec.Status, StatusSuccess)
	}
	if rec.RecordsProcessed != 42 {
		t.Errorf("records_processed = %d, want 42", rec.RecordsProcessed)
	}
	if rec.EndTime == nil {
		t.Error("end_time not set after finish")
	}
	if rec.ErrorMessage != "" {
		t.Errorf("error_message = %q, want empty on success", rec.ErrorMessage)
	}
}

func TestFinishFailedKeepsMessageVerbatim(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	id, err := log.Start(ctx, "fact_delivery")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	msg := "fact_delivery extraction query failed\nCaused by: connection reset"
	if err := log.Finish(ctx, id, StatusFailed, 120, msg); err != nil {
		t.Fatalf("finish: %v", err)
	}

	records, err := log.History(ctx, "", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if records[0].ErrorMessage != msg {
		t.Errorf("error_message = %q, want %q", records[0].ErrorMessage, msg)
	}
	if records[0].RecordsProcessed != 120 {
		t.Errorf("records_processed = %d, want partial count 120", records[0].RecordsProcessed)
	}
}

func TestHistoryFiltersAndLimits(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id, err := log.Start(ctx, "fact_order")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := log.Finish(ctx, id, StatusSuccess, i, ""); err != nil {
			t.Fatalf("finish: %v", err)
		}
	}
	id, err := log.Start(ctx, "fact_delivery")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := log.Finish(ctx, id, StatusFailed, 0, "boom"); err != nil {
		t.Fatalf("finish: %v", err)
	}

	orders, err := log.History(ctx, "fact_order", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(orders) != 3 {
		t.Errorf("fact_order records = %d, want 3", len(orders))
	}
	for _, rec := range orders {
		if rec.SyncType != "fact_order" {
			t.Errorf("sync_type = %q, want fact_order", rec.SyncType)
		}
	}

	limited, err := log.History(ctx, "", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limited records = %d, want 2", len(limited))
	}
}

func TestSummarize(t *testing.T) {
	log := newTestLog(t)
	ctx := context.Background()

	empty, err := log.Summarize(ctx, "")
	if err != nil {
		t.Fatalf("summarize empty: %v", err)
	}
	if empty.Total != 0 || empty.LastSyncTime != nil {
		t.Errorf("empty summary = %+v, want zero with nil last sync", empty)
	}

	for _, status := range []string{StatusSuccess, StatusSuccess, StatusFailed} {
		id, err := log.Start(ctx, "fact_order")
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := log.Finish(ctx, id, status, 1, ""); err != nil {
			t.Fatalf("finish: %v", err)
		}
	}
	if _, err := log.Start(ctx, "fact_order"); err != nil {
		t.Fatalf("start running: %v", err)
	}

	summary, err := log.Summarize(ctx, "")
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if summary.Total != 4 {
		t.Errorf("total = %d, want 4 including the running record", summary.Total)
	}
	if summary.Successful != 2 {
		t.Errorf("successful = %d, want 2", summary.Successful)
	}
	if summary.Failed != 1 {
		t.Errorf("failed = %d, want 1", summary.Failed)
	}
	if summary.LastSyncTime == nil {
		t.Error("last_sync_time = nil, want the newest start_time")
	}
}
