package conversation

import (
	"context"
	"time"
)

// Records is the table access needed by SQL. internal/store implements it.
type Records interface {
	SaveState(ctx context.Context, r Record) error
	LoadState(ctx context.Context, userID int64) (Record, bool, error)
	DeleteState(ctx context.Context, userID int64) error
	DeleteStatesBefore(ctx context.Context, before time.Time) (int, error)
}

// SQL stores conversations in the user_states table so they survive restarts.
type SQL struct {
	records Records
	now     func() time.Time
}

// NewSQL wraps a Records implementation.
func NewSQL(records Records) *SQL {
	return &SQL{records: records, now: time.Now}
}

func (s *SQL) Get(ctx context.Context, userID int64) (Conversation, bool, error) {
	rec, ok, err := s.records.LoadState(ctx, userID)
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := Decode(rec)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (s *SQL) Put(ctx context.Context, userID int64, c Conversation) error {
	rec, err := Encode(userID, c, s.now())
	if err != nil {
		return err
	}
	return s.records.SaveState(ctx, rec)
}

func (s *SQL) Clear(ctx context.Context, userID int64) error {
	return s.records.DeleteState(ctx, userID)
}

func (s *SQL) Expire(ctx context.Context, before time.Time) (int, error) {
	return s.records.DeleteStatesBefore(ctx, before)
}
