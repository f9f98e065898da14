package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/m3rciful/winbingo/internal/conversation"
)

type stateRow struct {
	UserID    int64     `db:"user_id"`
	Stage     string    `db:"stage"`
	Payload   string    `db:"payload"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *Repo) SaveState(ctx context.Context, rec conversation.Record) error {
	_, err := r.exec(ctx, `
		INSERT INTO user_states (user_id, stage, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET stage = excluded.stage, payload = excluded.payload, updated_at = excluded.updated_at`,
		rec.UserID, string(rec.Stage), string(rec.Payload), rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save state %d: %w", rec.UserID, err)
	}
	return nil
}

func (r *Repo) LoadState(ctx context.Context, userID int64) (conversation.Record, bool, error) {
	var row stateRow
	ok, err := r.get(ctx, &row, `SELECT user_id, stage, payload, updated_at FROM user_states WHERE user_id = ?`, userID)
	if err != nil {
		return conversation.Record{}, false, fmt.Errorf("load state %d: %w", userID, err)
	}
	return conversation.Record{
		UserID:    row.UserID,
		Stage:     conversation.Stage(row.Stage),
		Payload:   json.RawMessage(row.Payload),
		UpdatedAt: row.UpdatedAt,
	}, ok, nil
}

func (r *Repo) DeleteState(ctx context.Context, userID int64) error {
	if _, err := r.exec(ctx, `DELETE FROM user_states WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete state %d: %w", userID, err)
	}
	return nil
}

func (r *Repo) DeleteStatesBefore(ctx context.Context, before time.Time) (int, error) {
	n, err := r.exec(ctx, `DELETE FROM user_states WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire states: %w", err)
	}
	return int(n), nil
}

var _ conversation.Records = (*Repo)(nil)
