package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmslabs/factsync/internal/errors"
)

// Kind is the semantic column type used by fact schemas. The dialect maps
// each kind to the engine's native type name.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindDecimal
	KindDate
	KindTimestamp
)

// Dialect abstracts the SQL differences between target engines.
// Implementations must be stateless.
type Dialect interface {
	// Name returns the driver name this dialect serves.
	Name() string

	// Placeholder returns the bind placeholder for 1-based position n.
	Placeholder(n int) string

	// TypeName returns the engine's type name for a semantic kind.
	TypeName(k Kind) string

	// AutoIDType returns the column definition for an autoincrementing
	// primary key, used by the sync_log audit table.
	AutoIDType() string

	// AutoIDSetup returns statements that must run before a table with an
	// AutoIDType column can be created. Empty for most engines.
	AutoIDSetup(table string) []string

	// TableColumns lists the column names of an existing table, or an
	// empty slice when the table does not exist.
	TableColumns(ctx context.Context, q Querier, table string) ([]string, error)

	// CloneTable returns DDL creating an empty copy of target's shape.
	CloneTable(staging, target string) string
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return postgresDialect{}, nil
	case "duckdb":
		return duckdbDialect{}, nil
	case "sqlite":
		return sqliteDialect{}, nil
	default:
		return nil, errors.NewConfiguration("driver",
			fmt.Sprintf("unsupported driver %q", driver))
	}
}

// Placeholders renders a comma-joined placeholder list for positions
// start..start+count-1.
func Placeholders(d Dialect, start, count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = d.Placeholder(start + i)
	}
	return strings.Join(parts, ", ")
}

type postgresDialect struct{}

func (postgresDialect) Name() string              { return "postgres" }
func (postgresDialect) Placeholder(n int) string  { return fmt.Sprintf("$%d", n) }
func (postgresDialect) AutoIDType() string        { return "BIGSERIAL PRIMARY KEY" }
func (postgresDialect) AutoIDSetup(string) []string { return nil }

func (postgresDialect) TypeName(k Kind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return "NUMERIC(15,2)"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP WITH TIME ZONE"
	default:
		return "TEXT"
	}
}

func (postgresDialect) TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	return scanStrings(ctx, q,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = $1 ORDER BY ordinal_position`, table)
}

func (postgresDialect) CloneTable(staging, target string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 1=0", staging, target)
}

type duckdbDialect struct{}

func (duckdbDialect) Name() string             { return "duckdb" }
func (duckdbDialect) Placeholder(int) string   { return "?" }

func (duckdbDialect) AutoIDType() string {
	return "BIGINT PRIMARY KEY DEFAULT nextval('sync_log_id_seq')"
}

func (duckdbDialect) AutoIDSetup(table string) []string {
	return []string{"CREATE SEQUENCE IF NOT EXISTS sync_log_id_seq"}
}

func (duckdbDialect) TypeName(k Kind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return "DECIMAL(15,2)"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func (duckdbDialect) TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	return scanStrings(ctx, q,
		`SELECT column_name FROM information_schema.columns
		 WHERE table_name = ? ORDER BY ordinal_position`, table)
}

func (duckdbDialect) CloneTable(staging, target string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 1=0", staging, target)
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string             { return "sqlite" }
func (sqliteDialect) Placeholder(int) string   { return "?" }
func (sqliteDialect) AutoIDType() string       { return "INTEGER PRIMARY KEY AUTOINCREMENT" }
func (sqliteDialect) AutoIDSetup(string) []string { return nil }

func (sqliteDialect) TypeName(k Kind) string {
	switch k {
	case KindInteger:
		return "INTEGER"
	case KindDecimal:
		return "NUMERIC"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

func (sqliteDialect) TableColumns(ctx context.Context, q Querier, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    interface{}
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (sqliteDialect) CloneTable(staging, target string) string {
	return fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s WHERE 1=0", staging, target)
}

func scanStrings(ctx context.Context, q Querier, query string, args ...interface{}) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
