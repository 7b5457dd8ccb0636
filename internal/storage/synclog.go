// Package storage provides persistence for sync run history.
//
// The sync_log table is append-only: one row is created when a run starts
// and mutated exactly once when it finishes. Rows are never deleted by
// this subsystem. The orchestrator is the sole writer; every other
// consumer is read-only.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/schema"
)

// Run statuses. A record transitions RUNNING to exactly one terminal state.
const (
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// Record is one durable sync run.
type Record struct {
	SyncType         string     `json:"sync_type" yaml:"sync_type"`
	StartTime        time.Time  `json:"start_time" yaml:"start_time"`
	EndTime          *time.Time `json:"end_time" yaml:"end_time"`
	Status           string     `json:"status" yaml:"status"`
	RecordsProcessed int        `json:"records_processed" yaml:"records_processed"`
	ErrorMessage     string     `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Summary aggregates run history.
type Summary struct {
	Total        int        `json:"total" yaml:"total"`
	Successful   int        `json:"successful" yaml:"successful"`
	Failed       int        `json:"failed" yaml:"failed"`
	LastSyncTime *time.Time `json:"last_sync_time" yaml:"last_sync_time"`
}

// SyncLog reads and writes the sync_log audit table on the target database.
type SyncLog struct {
	target  db.Querier
	dialect db.Dialect
}

// NewSyncLog creates a sync log repository.
func NewSyncLog(target db.Querier, dialect db.Dialect) *SyncLog {
	return &SyncLog{target: target, dialect: dialect}
}

// Start inserts a RUNNING record and returns its id.
func (s *SyncLog) Start(ctx context.Context, syncType string) (int64, error) {
	now := time.Now().UTC()
	stmt := fmt.Sprintf(
		"INSERT INTO %s (sync_type, status, start_time, created_at) VALUES (%s) RETURNING id",
		schema.SyncLogTable, db.Placeholders(s.dialect, 1, 4),
	)

	var id int64
	err := s.target.QueryRowContext(ctx, stmt, syncType, StatusRunning, now, now).Scan(&id)
	if err != nil {
		return 0, errors.NewQuery("sync log start", err)
	}
	return id, nil
}

// Finish applies the single completion update to a run record.
func (s *SyncLog) Finish(ctx context.Context, id int64, status string, records int, errMsg string) error {
	var msg interface{}
	if errMsg != "" {
		msg = errMsg
	}

	stmt := fmt.Sprintf(
		"UPDATE %s SET end_time = %s, status = %s, records_processed = %s, error_message = %s WHERE id = %s",
		schema.SyncLogTable,
		s.dialect.Placeholder(1), s.dialect.Placeholder(2), s.dialect.Placeholder(3),
		s.dialect.Placeholder(4), s.dialect.Placeholder(5),
	)
	_, err := s.target.ExecContext(ctx, stmt, time.Now().UTC(), status, records, msg, id)
	if err != nil {
		return errors.NewQuery("sync log finish", err)
	}
	return nil
}

// History returns run records newest-first, optionally filtered by sync
// type.
func (s *SyncLog) History(ctx context.Context, syncType string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 10
	}

	var (
		stmt string
		args []interface{}
	)
	if syncType != "" {
		stmt = fmt.Sprintf(
			`SELECT sync_type, start_time, end_time, status, records_processed, error_message
			 FROM %s WHERE sync_type = %s ORDER BY start_time DESC LIMIT %s`,
			schema.SyncLogTable, s.dialect.Placeholder(1), s.dialect.Placeholder(2),
		)
		args = []interface{}{syncType, limit}
	} else {
		stmt = fmt.Sprintf(
			`SELECT sync_type, start_time, end_time, status, records_processed, error_message
			 FROM %s ORDER BY start_time DESC LIMIT %s`,
			schema.SyncLogTable, s.dialect.Placeholder(1),
		)
		args = []interface{}{limit}
	}

	rows, err := s.target.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.NewQuery("sync history", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			endTime sql.NullTime
			records sql.NullInt64
			errMsg  sql.NullString
		)
		if err := rows.Scan(&rec.SyncType, &rec.StartTime, &endTime, &rec.Status, &records, &errMsg); err != nil {
			return nil, errors.NewQuery("sync history", err)
		}
		if endTime.Valid {
			t := endTime.Time
			rec.EndTime = &t
		}
		rec.RecordsProcessed = int(records.Int64)
		rec.ErrorMessage = errMsg.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQuery("sync history", err)
	}
	return out, nil
}

// Summarize returns aggregate counters over run history, optionally
// filtered by sync type.
func (s *SyncLog) Summarize(ctx context.Context, syncType string) (Summary, error) {
	var (
		where string
		args  []interface{}
	)
	if syncType != "" {
		where = " WHERE sync_type = " + s.dialect.Placeholder(1)
		args = []interface{}{syncType}
	}

	counts := fmt.Sprintf(
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN status = '%s' THEN 1 ELSE 0 END), 0)
		 FROM %s%s`,
		StatusSuccess, StatusFailed, schema.SyncLogTable, where,
	)

	var summary Summary
	err := s.target.QueryRowContext(ctx, counts, args...).
		Scan(&summary.Total, &summary.Successful, &summary.Failed)
	if err != nil {
		return Summary{}, errors.NewQuery("sync summary", err)
	}

	// Selected as a plain column reference so drivers keep the declared
	// timestamp type.
	last := fmt.Sprintf("SELECT start_time FROM %s%s ORDER BY start_time DESC LIMIT 1",
		schema.SyncLogTable, where)
	var lastTime time.Time
	switch err := s.target.QueryRowContext(ctx, last, args...).Scan(&lastTime); {
	case err == nil:
		summary.LastSyncTime = &lastTime
	case err == sql.ErrNoRows:
		// No runs yet.
	default:
		return Summary{}, errors.NewQuery("sync summary", err)
	}

	return summary, nil
}
