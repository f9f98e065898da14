// Package store persists the ledger and conversation records through sqlx.
// The same queries run on PostgreSQL and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/winbingo/internal/wallet"
)

// Repo implements wallet.Store and conversation.Records.
type Repo struct {
	ext sqlx.ExtContext
	db  *sqlx.DB
}

// New wraps an open database handle.
func New(db *sqlx.DB) *Repo {
	return &Repo{ext: db, db: db}
}

// Tx runs fn in a transaction. Nested calls reuse the outer transaction.
func (r *Repo) Tx(ctx context.Context, fn func(q wallet.Queries) error) (err error) {
	if r.db == nil {
		return fn(r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()
	if err = fn(&Repo{ext: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) rebind(query string) string { return r.ext.Rebind(query) }

func (r *Repo) get(ctx context.Context, dst any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, r.ext, dst, r.rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *Repo) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.ext.ExecContext(ctx, r.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ wallet.Store = (*Repo)(nil)
