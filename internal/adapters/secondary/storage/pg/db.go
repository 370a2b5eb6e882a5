package pg

import (
	"context"

	"github.com/admin/tg-bots/referral-bot/internal/ports/persistence"
	"github.com/jmoiron/sqlx"
)

// DB wraps sqlx.DB behind the persistence port.
type DB struct {
	Db *sqlx.DB
}

func NewDB(db *sqlx.DB) *DB {
	return &DB{Db: db}
}

// Get runs a query and scans a single row into dest.
func (d *DB) Get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return d.Db.GetContext(ctx, dest, query, args...)
}

// Select runs a query and scans all rows into dest.
func (d *DB) Select(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return d.Db.SelectContext(ctx, dest, query, args...)
}

// Exec runs a statement without returning data (INSERT, UPDATE, DELETE).
func (d *DB) Exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := d.Db.ExecContext(ctx, query, args...)
	return err
}

// ExecWithResult runs a statement and returns the number of affected rows.
func (d *DB) ExecWithResult(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := d.Db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// NamedExec runs a named statement using struct tags.
func (d *DB) NamedExec(ctx context.Context, query string, arg interface{}) error {
	_, err := d.Db.NamedExecContext(ctx, query, arg)
	return err
}

// NamedExecWithResult runs a named statement and returns affected rows.
func (d *DB) NamedExecWithResult(ctx context.Context, query string, arg interface{}) (int64, error) {
	result, err := d.Db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// QueryRow runs a query and returns a row for scanning.
func (d *DB) QueryRow(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return d.Db.QueryRowxContext(ctx, query, args...)
}

// BeginTx starts a new transaction.
func (d *DB) BeginTx(ctx context.Context) (persistence.Transaction, error) {
	tx, err := d.Db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

// WithTransaction runs fn in a transaction with automatic commit/rollback.
func (d *DB) WithTransaction(ctx context.Context, fn func(context.Context, persistence.Transaction) error) error {
	tx, err := d.BeginTx(ctx)
	if err != nil {
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return rollbackErr
		}
		return err
	}

	return tx.Commit()
}

func (d *DB) Close() error {
	return d.Db.Close()
}
