// Package storage provides the SQLite storage layer for a single case.
//
// Every case lives in its own database file, so no table carries a case
// identifier. Enum and uniqueness rules are enforced by schema constraints;
// the helpers here translate constraint violations into typed validation
// errors instead of opaque driver strings.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/casetrace/casetrace/internal/model"
)

// dbtx is the query surface shared by *sql.DB and *sql.Tx, so every CaseDB
// method works unchanged inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CaseDB wraps the database handle for one case.
type CaseDB struct {
	db     dbtx
	root   *sql.DB // nil on a transaction-scoped view
	path   string
	logger *slog.Logger
}

// Open opens (or creates) the case database at path and applies the
// pragmas every connection needs.
func Open(ctx context.Context, path string, logger *slog.Logger) (*CaseDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// modernc.org/sqlite serializes access per connection but pragmas are
	// per-connection state, so keep the pool at one connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA foreign_keys = ON`,
		`PRAGMA busy_timeout = 5000`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: ping %s: %w", path, err)
	}

	return &CaseDB{db: db, root: db, path: path, logger: logger}, nil
}

// Path returns the database file path.
func (c *CaseDB) Path() string {
	return c.path
}

// Ping checks connectivity to the database.
func (c *CaseDB) Ping(ctx context.Context) error {
	return c.root.PingContext(ctx)
}

// Close shuts down the database handle.
func (c *CaseDB) Close() error {
	return c.root.Close()
}

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error. On a transaction-scoped view fn joins the open transaction.
func (c *CaseDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if tx, ok := c.db.(*sql.Tx); ok {
		return fn(tx)
	}
	tx, err := c.root.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			c.logger.Warn("storage: rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}

// WithTx runs fn against a transaction-scoped view of this database. Every
// write fn performs through the view commits together or not at all.
func (c *CaseDB) WithTx(ctx context.Context, fn func(tx *CaseDB) error) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		return fn(&CaseDB{db: tx, path: c.path, logger: c.logger})
	})
}

// wrapWrite wraps a write error, converting schema constraint violations
// into validation errors that keep the driver's detail.
func wrapWrite(action string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "constraint failed") || strings.Contains(msg, "CHECK constraint") ||
		strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "FOREIGN KEY constraint") {
		return fmt.Errorf("storage: %s: %w", action, model.NewValidationError("", msg))
	}
	return fmt.Errorf("storage: %s: %w", action, err)
}
