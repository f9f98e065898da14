package store

import (
	"context"
	"fmt"
	"time"

	"github.com/m3rciful/winbingo/internal/wallet"
)

type userRow struct {
	ID           int64     `db:"id"`
	Username     string    `db:"username"`
	FirstName    string    `db:"first_name"`
	Phone        string    `db:"phone"`
	Registered   bool      `db:"registered"`
	BalanceMinor int64     `db:"balance_minor"`
	CreatedAt    time.Time `db:"created_at"`
}

func (u userRow) model() wallet.User {
	return wallet.User{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		Phone:      u.Phone,
		Registered: u.Registered,
		Balance:    wallet.FromMinor(u.BalanceMinor),
		CreatedAt:  u.CreatedAt,
	}
}

const userColumns = `id, username, first_name, phone, registered, balance_minor, created_at`

type entryRow struct {
	ID                int64     `db:"id"`
	UserID            int64     `db:"user_id"`
	AmountMinor       int64     `db:"amount_minor"`
	BalanceAfterMinor int64     `db:"balance_after_minor"`
	Reason            string    `db:"reason"`
	Ref               string    `db:"ref"`
	CreatedAt         time.Time `db:"created_at"`
}

func (e entryRow) model() wallet.Entry {
	return wallet.Entry{
		ID:           e.ID,
		UserID:       e.UserID,
		Amount:       wallet.FromMinor(e.AmountMinor),
		BalanceAfter: wallet.FromMinor(e.BalanceAfterMinor),
		Reason:       e.Reason,
		Ref:          e.Ref,
		CreatedAt:    e.CreatedAt,
	}
}

// UpsertUser inserts the user or refreshes username and first name.
func (r *Repo) UpsertUser(ctx context.Context, p wallet.Profile, now time.Time) (wallet.User, error) {
	var row userRow
	_, err := r.get(ctx, &row, `
		INSERT INTO users (id, username, first_name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET username = excluded.username, first_name = excluded.first_name
		RETURNING `+userColumns,
		p.ID, p.Username, p.FirstName, now,
	)
	if err != nil {
		return wallet.User{}, fmt.Errorf("upsert user %d: %w", p.ID, err)
	}
	return row.model(), nil
}

func (r *Repo) User(ctx context.Context, id int64) (wallet.User, bool, error) {
	var row userRow
	ok, err := r.get(ctx, &row, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		return wallet.User{}, false, fmt.Errorf("load user %d: %w", id, err)
	}
	return row.model(), ok, nil
}

func (r *Repo) UserByUsername(ctx context.Context, username string) (wallet.User, bool, error) {
	var row userRow
	ok, err := r.get(ctx, &row,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER(?) AND username <> '' ORDER BY id LIMIT 1`,
		username,
	)
	if err != nil {
		return wallet.User{}, false, fmt.Errorf("load user @%s: %w", username, err)
	}
	return row.model(), ok, nil
}

// MarkRegistered reports false when the user was already registered.
func (r *Repo) MarkRegistered(ctx context.Context, id int64, phone string) (bool, error) {
	n, err := r.exec(ctx, `UPDATE users SET registered = TRUE, phone = ? WHERE id = ? AND registered = FALSE`, phone, id)
	if err != nil {
		return false, fmt.Errorf("register user %d: %w", id, err)
	}
	return n == 1, nil
}

func (r *Repo) AddBalance(ctx context.Context, id, delta int64) (int64, bool, error) {
	var balance int64
	ok, err := r.get(ctx, &balance, `
		UPDATE users SET balance_minor = balance_minor + ?
		WHERE id = ? AND balance_minor + ? >= 0
		RETURNING balance_minor`,
		delta, id, delta,
	)
	if err != nil {
		return 0, false, fmt.Errorf("add balance %d: %w", id, err)
	}
	return balance, ok, nil
}

func (r *Repo) AppendEntry(ctx context.Context, e wallet.Entry) (wallet.Entry, error) {
	var id int64
	_, err := r.get(ctx, &id, `
		INSERT INTO history (user_id, amount_minor, balance_after_minor, reason, ref, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		e.UserID, wallet.ToMinor(e.Amount), wallet.ToMinor(e.BalanceAfter), e.Reason, e.Ref, e.CreatedAt,
	)
	if err != nil {
		return wallet.Entry{}, fmt.Errorf("append entry for %d: %w", e.UserID, err)
	}
	e.ID = id
	return e, nil
}

func (r *Repo) History(ctx context.Context, userID int64, limit int) ([]wallet.Entry, error) {
	var rows []entryRow
	err := sqlxSelect(ctx, r, &rows, `
		SELECT id, user_id, amount_minor, balance_after_minor, reason, ref, created_at
		FROM history WHERE user_id = ? ORDER BY id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history for %d: %w", userID, err)
	}
	out := make([]wallet.Entry, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}
