// Package db provides database connections and SQL dialects for the
// source and target endpoints.
//
// The source endpoint is always PostgreSQL: extraction queries rely on
// DISTINCT ON. The target may be postgres, duckdb, or sqlite; the Dialect
// abstracts the differences the merge engine and schema guard care about.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"              // PostgreSQL driver
	_ "github.com/marcboeker/go-duckdb" // DuckDB driver
	_ "modernc.org/sqlite"             // SQLite driver (cgo-free)

	"github.com/tmslabs/factsync/internal/config"
	"github.com/tmslabs/factsync/internal/errors"
)

// Querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Open opens a database handle for the endpoint without verifying
// connectivity. The caller owns the returned handle.
func Open(cfg config.EndpointConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}

	var handle *sql.DB
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
		)
		handle, err = sql.Open("postgres", dsn)
	case "duckdb":
		handle, err = sql.Open("duckdb", cfg.Path)
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = ":memory:"
		}
		handle, err = sql.Open("sqlite", path)
		if err == nil {
			// An in-memory SQLite database exists per connection; the
			// pool must not open a second one.
			handle.SetMaxOpenConns(1)
		}
	}
	if err != nil {
		return nil, nil, errors.NewConnection(cfg.Driver, err)
	}

	return handle, dialect, nil
}

// Connect opens a handle and verifies connectivity with a bounded ping.
func Connect(ctx context.Context, endpoint string, cfg config.EndpointConfig) (*sql.DB, Dialect, error) {
	handle, dialect, err := Open(cfg)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := handle.PingContext(pingCtx); err != nil {
		handle.Close()
		return nil, nil, errors.NewConnection(endpoint, err)
	}

	return handle, dialect, nil
}
