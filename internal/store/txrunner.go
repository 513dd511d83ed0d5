package store

import (
	"context"
	"database/sql"
	"errors"
)

// TxRunner abstracts transaction management so services that need
// commit-before-enqueue semantics do not hold a *sql.DB themselves.
type TxRunner interface {
	// InTransaction runs fn inside a transaction, committing on nil and
	// rolling back on error or panic.
	InTransaction(ctx context.Context, fn TxFn) error
}

// SQLTxRunner is the database-backed TxRunner.
type SQLTxRunner struct {
	db *sql.DB
}

// NewSQLTxRunner creates a TxRunner over the given database handle.
func NewSQLTxRunner(db *sql.DB) (*SQLTxRunner, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	return &SQLTxRunner{db: db}, nil
}

// InTransaction implements TxRunner.
func (r *SQLTxRunner) InTransaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, r.db, fn)
}
