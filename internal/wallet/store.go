package wallet

import (
	"context"
	"time"
)

// Queries is the persistence surface used inside and outside transactions.
// Amounts are integer minor units.
type Queries interface {
	UpsertUser(ctx context.Context, p Profile, now time.Time) (User, error)
	User(ctx context.Context, id int64) (User, bool, error)
	UserByUsername(ctx context.Context, username string) (User, bool, error)
	MarkRegistered(ctx context.Context, id int64, phone string) (bool, error)
	// AddBalance applies delta unless the result would be negative.
	// ok is false when the row is missing or the guard rejected the change.
	AddBalance(ctx context.Context, id, delta int64) (balance int64, ok bool, err error)
	AppendEntry(ctx context.Context, e Entry) (Entry, error)
	History(ctx context.Context, userID int64, limit int) ([]Entry, error)

	InsertRequest(ctx context.Context, r Request) (Request, error)
	Request(ctx context.Context, id int64) (Request, bool, error)
	RequestByKey(ctx context.Context, key string) (Request, bool, error)
	// SetRequestStatus moves a pending request to status; false means it was not pending.
	SetRequestStatus(ctx context.Context, id int64, status Status, reviewer int64, at time.Time) (bool, error)
	PendingRequests(ctx context.Context, limit int) ([]Request, error)
}

// Store adds transactions on top of Queries.
type Store interface {
	Queries
	// Tx runs fn in one transaction, committing only when fn returns nil.
	Tx(ctx context.Context, fn func(q Queries) error) error
}
