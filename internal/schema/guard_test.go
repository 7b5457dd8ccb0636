package schema

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/facts"
)

var widgetSpec = facts.Spec{
	Type:  facts.Type("fact_widget"),
	Table: "fact_widget",
	Keys:  []string{"widget_id"},
	Columns: []facts.Column{
		{Name: "widget_id", Kind: db.KindText},
		{Name: "label", Kind: db.KindText},
		{Name: "weight", Kind: db.KindDecimal},
		{Name: facts.LastSyncedColumn, Kind: db.KindTimestamp},
	},
}

func newTestTarget(t *testing.T) (*sql.DB, db.Dialect) {
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
	return conn, dialect
}

func tableColumns(t *testing.T, conn *sql.DB, dialect db.Dialect, table string) []string {
	t.Helper()
	cols, err := dialect.TableColumns(context.Background(), conn, table)
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	return cols
}

func TestEnsureFactCreatesTable(t *testing.T) {
	conn, dialect := newTestTarget(t)
	g := NewGuard(conn, dialect)

	if err := g.EnsureFact(context.Background(), widgetSpec); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	cols := tableColumns(t, conn, dialect, widgetSpec.Table)
	want := []string{"widget_id", "label", "weight", facts.LastSyncedColumn}
	if len(cols) != len(want) {
		t.Fatalf("columns = %v, want %v", cols, want)
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, cols[i], want[i])
		}
	}
}

func TestEnsureFactIsIdempotent(t *testing.T) {
	conn, dialect := newTestTarget(t)
	g := NewGuard(conn, dialect)

	for i := 0; i < 3; i++ {
		if err := g.EnsureFact(context.Background(), widgetSpec); err != nil {
			t.Fatalf("ensure %d: %v", i, err)
		}
	}
	if cols := tableColumns(t, conn, dialect, widgetSpec.Table); len(cols) != 4 {
		t.Errorf("columns = %v, want 4", cols)
	}
}

func TestEnsureFactAddsMissingColumns(t *testing.T) {
	conn, dialect := newTestTarget(t)
	g := NewGuard(conn, dialect)

	// An older deployment without the weight column.
	_, err := conn.Exec(`CREATE TABLE fact_widget (
		widget_id TEXT,
		label TEXT,
		last_synced TIMESTAMP,
		PRIMARY KEY (widget_id)
	)`)
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}
	if _, err := conn.Exec(
		"INSERT INTO fact_widget (widget_id, label) VALUES ('W1', 'old')"); err != nil {
		t.Fatalf("seed row: %v", err)
	}

	if err := g.EnsureFact(context.Background(), widgetSpec); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	cols := tableColumns(t, conn, dialect, widgetSpec.Table)
	found := false
	for _, c := range cols {
		if c == "weight" {
			found = true
		}
	}
	if !found {
		t.Errorf("columns = %v, want weight added", cols)
	}

	// Existing rows survive the migration.
	var label string
	if err := conn.QueryRow(
		"SELECT label FROM fact_widget WHERE widget_id = 'W1'").Scan(&label); err != nil {
		t.Fatalf("read seeded row: %v", err)
	}
	if label != "old" {
		t.Errorf("label = %q, want old", label)
	}
}

func TestEnsureFactLeavesExtraColumnsAlone(t *testing.T) {
	conn, dialect := newTestTarget(t)
	g := NewGuard(conn, dialect)

	_, err := conn.Exec(`CREATE TABLE fact_widget (
		widget_id TEXT,
		label TEXT,
		weight NUMERIC,
		last_synced TIMESTAMP,
		legacy_note TEXT,
		PRIMARY KEY (widget_id)
	)`)
	if err != nil {
		t.Fatalf("seed table: %v", err)
	}

	if err := g.EnsureFact(context.Background(), widgetSpec); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	cols := tableColumns(t, conn, dialect, widgetSpec.Table)
	found := false
	for _, c := range cols {
		if c == "legacy_note" {
			found = true
		}
	}
	if !found {
		t.Errorf("columns = %v, want legacy_note preserved", cols)
	}
}

func TestEnsureSyncLog(t *testing.T) {
	conn, dialect := newTestTarget(t)
	g := NewGuard(conn, dialect)

	for i := 0; i < 2; i++ {
		if err := g.EnsureSyncLog(context.Background()); err != nil {
			t.Fatalf("ensure sync_log %d: %v", i, err)
		}
	}

	cols := tableColumns(t, conn, dialect, SyncLogTable)
	want := map[string]bool{
		"id": false, "sync_type": false, "start_time": false, "end_time": false,
		"status": false, "records_processed": false, "error_message": false, "created_at": false,
	}
	for _, c := range cols {
		if _, ok := want[c]; ok {
			want[c] = true
		}
	}
	for col, seen := range want {
		if !seen {
			t.Errorf("sync_log missing column %s", col)
		}
	}
}
