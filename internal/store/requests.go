package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/winbingo/internal/wallet"
)

type requestRow struct {
	ID            int64         `db:"id"`
	UserID        int64         `db:"user_id"`
	Kind          string        `db:"kind"`
	AmountMinor   int64         `db:"amount_minor"`
	Status        string        `db:"status"`
	Method        string        `db:"method"`
	Phone         string        `db:"phone"`
	AccountName   string        `db:"account_name"`
	ReceiptFileID string        `db:"receipt_file_id"`
	ReceiptKind   string        `db:"receipt_kind"`
	Key           string        `db:"idempotency_key"`
	ReviewedBy    sql.NullInt64 `db:"reviewed_by"`
	ReviewedAt    sql.NullTime  `db:"reviewed_at"`
	CreatedAt     time.Time     `db:"created_at"`
}

func (r requestRow) model() wallet.Request {
	out := wallet.Request{
		ID:            r.ID,
		UserID:        r.UserID,
		Kind:          wallet.RequestKind(r.Kind),
		Amount:        wallet.FromMinor(r.AmountMinor),
		Status:        wallet.Status(r.Status),
		Method:        r.Method,
		Phone:         r.Phone,
		AccountName:   r.AccountName,
		ReceiptFileID: r.ReceiptFileID,
		ReceiptKind:   r.ReceiptKind,
		Key:           r.Key,
		CreatedAt:     r.CreatedAt,
	}
	if r.ReviewedBy.Valid {
		out.ReviewedBy = r.ReviewedBy.Int64
	}
	if r.ReviewedAt.Valid {
		out.ReviewedAt = r.ReviewedAt.Time
	}
	return out
}

const requestColumns = `id, user_id, kind, amount_minor, status, method, phone, account_name,
	receipt_file_id, receipt_kind, idempotency_key, reviewed_by, reviewed_at, created_at`

func (r *Repo) InsertRequest(ctx context.Context, req wallet.Request) (wallet.Request, error) {
	var id int64
	_, err := r.get(ctx, &id, `
		INSERT INTO requests (user_id, kind, amount_minor, status, method, phone, account_name,
			receipt_file_id, receipt_kind, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		req.UserID, string(req.Kind), wallet.ToMinor(req.Amount), string(req.Status), req.Method,
		req.Phone, req.AccountName, req.ReceiptFileID, req.ReceiptKind, req.Key, req.CreatedAt,
	)
	if err != nil {
		return wallet.Request{}, fmt.Errorf("insert %s request for %d: %w", req.Kind, req.UserID, err)
	}
	req.ID = id
	return req, nil
}

func (r *Repo) Request(ctx context.Context, id int64) (wallet.Request, bool, error) {
	var row requestRow
	ok, err := r.get(ctx, &row, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil {
		return wallet.Request{}, false, fmt.Errorf("load request %d: %w", id, err)
	}
	return row.model(), ok, nil
}

func (r *Repo) RequestByKey(ctx context.Context, key string) (wallet.Request, bool, error) {
	var row requestRow
	ok, err := r.get(ctx, &row, `SELECT `+requestColumns+` FROM requests WHERE idempotency_key = ?`, key)
	if err != nil {
		return wallet.Request{}, false, fmt.Errorf("load request by key: %w", err)
	}
	return row.model(), ok, nil
}

func (r *Repo) SetRequestStatus(ctx context.Context, id int64, status wallet.Status, reviewer int64, at time.Time) (bool, error) {
	n, err := r.exec(ctx, `
		UPDATE requests SET status = ?, reviewed_by = ?, reviewed_at = ?
		WHERE id = ? AND status = 'pending'`,
		string(status), reviewer, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("review request %d: %w", id, err)
	}
	return n == 1, nil
}

func (r *Repo) PendingRequests(ctx context.Context, limit int) ([]wallet.Request, error) {
	var rows []requestRow
	err := sqlxSelect(ctx, r, &rows,
		`SELECT `+requestColumns+` FROM requests WHERE status = 'pending' ORDER BY id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("pending requests: %w", err)
	}
	out := make([]wallet.Request, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

func sqlxSelect(ctx context.Context, r *Repo, dst any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, r.ext, dst, r.rebind(query), args...)
}
