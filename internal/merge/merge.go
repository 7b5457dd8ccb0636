// Package merge implements the idempotent staging-table upsert into the
// reporting target.
//
// The protocol is stage, conflict-resolve, release: rows land in a
// uniquely named staging table, one INSERT ... ON CONFLICT statement
// applies them to the target, and the staging table is dropped on every
// exit path. Stage creation is not wrapped in a cross-statement
// transaction with the merge; the target engine may not support DDL inside
// one, so concurrent readers can observe the staging table before the
// merge commits.
package merge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
)

// maxBindParams bounds placeholders per staging INSERT, below every target
// engine's variable limit.
const maxBindParams = 1000

// Engine merges row sets into target tables.
type Engine struct {
	target  db.Querier
	dialect db.Dialect
}

// NewEngine creates a merge engine for the target database.
func NewEngine(target db.Querier, dialect db.Dialect) *Engine {
	return &Engine{target: target, dialect: dialect}
}

// Upsert merges the row set into the target table. Rows sharing a natural
// key with an existing target row update every non-key column in place;
// re-running with an identical row set leaves the target unchanged apart
// from last_synced. An empty row set is a no-op.
func (e *Engine) Upsert(ctx context.Context, rs facts.RowSet, table string, keys []string) error {
	if rs.Empty() {
		return nil
	}

	deduped, err := dedupe(rs, keys)
	if err != nil {
		return errors.NewMerge(table, err)
	}

	stage, release, err := e.acquireStage(ctx, table)
	if err != nil {
		return err
	}
	defer release()

	if err := e.fillStage(ctx, stage, deduped); err != nil {
		return errors.NewMerge(table, err)
	}

	if err := e.mergeStage(ctx, stage, table, deduped.Columns, keys); err != nil {
		return errors.NewMerge(table, err)
	}

	return nil
}

// dedupe drops rows whose natural key already appeared earlier in the set,
// keeping the first occurrence. A batch carrying the same key twice would
// otherwise make the merge statement's uniqueness assumption fail.
func dedupe(rs facts.RowSet, keys []string) (facts.RowSet, error) {
	keyIdx := make([]int, len(keys))
	for i, k := range keys {
		idx := rs.ColumnIndex(k)
		if idx < 0 {
			return facts.RowSet{}, fmt.Errorf("natural-key column %q missing from row set", k)
		}
		keyIdx[i] = idx
	}

	seen := make(map[string]struct{}, len(rs.Rows))
	out := facts.RowSet{Columns: rs.Columns}
	for _, row := range rs.Rows {
		parts := make([]string, len(keyIdx))
		for i, idx := range keyIdx {
			parts[i] = fmt.Sprintf("%v", row[idx])
		}
		key := strings.Join(parts, "\x1f")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// acquireStage creates a staging table cloned from the target's shape and
// returns a release function that drops it unconditionally. Release uses a
// fresh context so cleanup survives cancellation of the run.
func (e *Engine) acquireStage(ctx context.Context, table string) (string, func(), error) {
	stage := fmt.Sprintf("stage_%s_%d", table, time.Now().UnixNano())
	if _, err := e.target.ExecContext(ctx, e.dialect.CloneTable(stage, table)); err != nil {
		return "", nil, errors.NewMerge(table, fmt.Errorf("create staging table: %w", err))
	}

	release := func() {
		dropCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.target.ExecContext(dropCtx, "DROP TABLE IF EXISTS "+stage)
	}
	return stage, release, nil
}

func (e *Engine) fillStage(ctx context.Context, stage string, rs facts.RowSet) error {
	batchRows := maxBindParams / len(rs.Columns)
	if batchRows < 1 {
		batchRows = 1
	}

	columns := strings.Join(rs.Columns, ", ")
	for start := 0; start < len(rs.Rows); start += batchRows {
		end := start + batchRows
		if end > len(rs.Rows) {
			end = len(rs.Rows)
		}
		batch := rs.Rows[start:end]

		tuples := make([]string, len(batch))
		args := make([]interface{}, 0, len(batch)*len(rs.Columns))
		for i, row := range batch {
			tuples[i] = "(" + db.Placeholders(e.dialect, i*len(rs.Columns)+1, len(rs.Columns)) + ")"
			args = append(args, row...)
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", stage, columns, strings.Join(tuples, ", "))
		if _, err := e.target.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("stage rows: %w", err)
		}
	}
	return nil
}

func (e *Engine) mergeStage(ctx context.Context, stage, table string, columns, keys []string) error {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	var updates []string
	for _, c := range columns {
		if _, isKey := keySet[c]; isKey {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
	}

	// WHERE true disambiguates the upsert clause after INSERT ... SELECT;
	// SQLite rejects the statement without it.
	cols := strings.Join(columns, ", ")
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s WHERE true ON CONFLICT (%s) DO UPDATE SET %s",
		table, cols, cols, stage, strings.Join(keys, ", "), strings.Join(updates, ", "),
	)
	if _, err := e.target.ExecContext(ctx, stmt); err != nil {
		return err
	}
	return nil
}
