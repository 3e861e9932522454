package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Querier is the subset of *sql.DB and *sql.Tx the repositories use, so one
// repository type serves both plain and transaction-scoped access.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, d *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("rolling back transaction", "err", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Run calls fn with q directly when q is already a transaction, and inside a
// new transaction when q is a *sql.DB.
func Run(ctx context.Context, q Querier, fn func(q Querier) error) error {
	d, ok := q.(*sql.DB)
	if !ok {
		return fn(q)
	}
	return WithTx(ctx, d, func(tx *sql.Tx) error { return fn(tx) })
}
