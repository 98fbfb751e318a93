package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/GTDGit/gtd_backoffice/internal/database"
)

// TxRunner runs a unit of work inside a single database transaction. Repository
// methods that take a sqlx.ExtContext accept either the pool or the transaction.
type TxRunner struct {
	db *sqlx.DB
}

// NewTxRunner creates a new TxRunner.
func NewTxRunner(db *sqlx.DB) *TxRunner {
	return &TxRunner{db: db}
}

// WithTx executes fn in a transaction, committing on nil error.
func (t *TxRunner) WithTx(ctx context.Context, fn func(q sqlx.ExtContext) error) error {
	return database.WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		return fn(tx)
	})
}
