// Package schema ensures target tables exist before a merge runs.
//
// All DDL here is additive and idempotent: tables are created if absent
// and columns introduced after initial deployment are added when missing.
// Nothing is ever dropped or renamed. The guard is cheap enough to run
// before every merge, not only on first deployment.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmslabs/factsync/internal/db"
	"github.com/tmslabs/factsync/internal/errors"
	"github.com/tmslabs/factsync/internal/facts"
)

// SyncLogTable is the shared audit log table, one row per sync run.
const SyncLogTable = "sync_log"

// Guard applies additive schema maintenance against the target database.
type Guard struct {
	target  db.Querier
	dialect db.Dialect
}

// NewGuard creates a schema guard for the target database.
func NewGuard(target db.Querier, dialect db.Dialect) *Guard {
	return &Guard{target: target, dialect: dialect}
}

// EnsureFact creates the fact's target table when absent and adds any
// declared columns missing from an older deployment.
func (g *Guard) EnsureFact(ctx context.Context, spec facts.Spec) error {
	defs := make([]string, 0, len(spec.Columns)+1)
	for _, c := range spec.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", c.Name, g.dialect.TypeName(c.Kind)))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(spec.Keys, ", ")))

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		spec.Table, strings.Join(defs, ",\n  "))
	if _, err := g.target.ExecContext(ctx, create); err != nil {
		return errors.NewQuery("ensure "+spec.Table, err)
	}

	return g.addMissingColumns(ctx, spec)
}

// addMissingColumns reconciles an existing table against the current fact
// schema. Additive only: columns present on the table but absent from the
// schema are left alone.
func (g *Guard) addMissingColumns(ctx context.Context, spec facts.Spec) error {
	existing, err := g.dialect.TableColumns(ctx, g.target, spec.Table)
	if err != nil {
		return errors.NewQuery("inspect "+spec.Table, err)
	}
	have := make(map[string]struct{}, len(existing))
	for _, c := range existing {
		have[c] = struct{}{}
	}

	for _, c := range spec.Columns {
		if _, ok := have[c.Name]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			spec.Table, c.Name, g.dialect.TypeName(c.Kind))
		if _, err := g.target.ExecContext(ctx, alter); err != nil {
			return errors.NewQuery("ensure "+spec.Table, err)
		}
	}
	return nil
}

// EnsureSyncLog creates the audit log table when absent.
func (g *Guard) EnsureSyncLog(ctx context.Context) error {
	for _, stmt := range g.dialect.AutoIDSetup(SyncLogTable) {
		if _, err := g.target.ExecContext(ctx, stmt); err != nil {
			return errors.NewQuery("ensure "+SyncLogTable, err)
		}
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id %s,
  sync_type %s NOT NULL,
  start_time %s,
  end_time %s,
  status %s NOT NULL,
  records_processed %s DEFAULT 0,
  error_message %s,
  created_at %s
)`,
		SyncLogTable,
		g.dialect.AutoIDType(),
		g.dialect.TypeName(db.KindText),
		g.dialect.TypeName(db.KindTimestamp),
		g.dialect.TypeName(db.KindTimestamp),
		g.dialect.TypeName(db.KindText),
		g.dialect.TypeName(db.KindInteger),
		g.dialect.TypeName(db.KindText),
		g.dialect.TypeName(db.KindTimestamp),
	)
	if _, err := g.target.ExecContext(ctx, create); err != nil {
		return errors.NewQuery("ensure "+SyncLogTable, err)
	}
	return nil
}
