package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/store"
	"github.com/m3rciful/winbingo/internal/store/storetest"
	"github.com/m3rciful/winbingo/internal/wallet"
)

var now = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) *store.Repo {
	t.Helper()
	return store.New(storetest.Open(t))
}

func TestUpsertUserRefreshesProfile(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	if _, err := repo.UpsertUser(ctx, wallet.Profile{ID: 10, Username: "abebe", FirstName: "Abebe"}, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	u, err := repo.UpsertUser(ctx, wallet.Profile{ID: 10, Username: "abebe_k", FirstName: "Abebe"}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u.Username != "abebe_k" || !u.Balance.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}

	found, ok, err := repo.UserByUsername(ctx, "ABEBE_K")
	if err != nil || !ok || found.ID != 10 {
		t.Fatalf("lookup by username: %+v ok=%v err=%v", found, ok, err)
	}
	if _, ok, _ := repo.UserByUsername(ctx, "abebe"); ok {
		t.Fatal("stale username must not resolve")
	}
}

func TestAddBalanceGuardsNegative(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if _, err := repo.UpsertUser(ctx, wallet.Profile{ID: 1}, now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	bal, ok, err := repo.AddBalance(ctx, 1, 5000)
	if err != nil || !ok || bal != 5000 {
		t.Fatalf("credit: bal=%d ok=%v err=%v", bal, ok, err)
	}
	if _, ok, err := repo.AddBalance(ctx, 1, -5001); err != nil || ok {
		t.Fatalf("overdraft must be refused: ok=%v err=%v", ok, err)
	}
	if _, ok, err := repo.AddBalance(ctx, 404, 100); err != nil || ok {
		t.Fatalf("missing user must be refused: ok=%v err=%v", ok, err)
	}
	u, _, _ := repo.User(ctx, 1)
	if !u.Balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance = %s, want 50", u.Balance)
	}
}

func TestTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if _, err := repo.UpsertUser(ctx, wallet.Profile{ID: 1}, now); err != nil {
		t.Fatalf("insert: %v", err)
	}

	boom := errors.New("boom")
	err := repo.Tx(ctx, func(q wallet.Queries) error {
		if _, _, err := q.AddBalance(ctx, 1, 700); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	u, _, _ := repo.User(ctx, 1)
	if !u.Balance.IsZero() {
		t.Fatalf("rolled back tx leaked balance %s", u.Balance)
	}
}

func TestRequestStatusIsSetOnce(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	if _, err := repo.UpsertUser(ctx, wallet.Profile{ID: 2}, now); err != nil {
		t.Fatalf("insert: %v", err)
	}
	req, err := repo.InsertRequest(ctx, wallet.Request{
		UserID:    2,
		Kind:      wallet.KindDeposit,
		Amount:    decimal.NewFromInt(100),
		Status:    wallet.StatusPending,
		Method:    "telebirr",
		Key:       "k-1",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("insert request: %v", err)
	}

	byKey, ok, err := repo.RequestByKey(ctx, "k-1")
	if err != nil || !ok || byKey.ID != req.ID {
		t.Fatalf("by key: %+v ok=%v err=%v", byKey, ok, err)
	}

	moved, err := repo.SetRequestStatus(ctx, req.ID, wallet.StatusApproved, 99, now)
	if err != nil || !moved {
		t.Fatalf("first review: moved=%v err=%v", moved, err)
	}
	moved, err = repo.SetRequestStatus(ctx, req.ID, wallet.StatusRejected, 99, now)
	if err != nil || moved {
		t.Fatalf("second review must not apply: moved=%v err=%v", moved, err)
	}

	got, _, _ := repo.Request(ctx, req.ID)
	if got.Status != wallet.StatusApproved || got.ReviewedBy != 99 {
		t.Fatalf("unexpected request: %+v", got)
	}
	pending, err := repo.PendingRequests(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending = %v err=%v", pending, err)
	}

	if _, err := repo.InsertRequest(ctx, wallet.Request{
		UserID: 2, Kind: wallet.KindDeposit, Amount: decimal.NewFromInt(1), Status: wallet.StatusPending, Key: "k-1", CreatedAt: now,
	}); err == nil {
		t.Fatal("duplicate idempotency key must be refused")
	}
}

func TestSQLConversationStore(t *testing.T) {
	ctx := context.Background()
	states := conversation.NewSQL(newRepo(t))

	draft := conversation.AwaitingConfirm{Draft: conversation.Draft{
		Key:    uuid.New(),
		Method: "telebirr",
		Phone:  "+251911000000",
		Name:   "Abebe Kebede",
		Amount: decimal.RequireFromString("75.50"),
	}}
	if err := states.Put(ctx, 7, draft); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := states.Get(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	confirm, isConfirm := got.(conversation.AwaitingConfirm)
	if !isConfirm || confirm.Draft.Key != draft.Draft.Key || !confirm.Draft.Amount.Equal(draft.Draft.Amount) {
		t.Fatalf("round trip mismatch: %#v", got)
	}

	if n, err := states.Expire(ctx, time.Now().Add(-time.Hour)); err != nil || n != 0 {
		t.Fatalf("fresh state expired: n=%d err=%v", n, err)
	}
	if n, err := states.Expire(ctx, time.Now().Add(time.Hour)); err != nil || n != 1 {
		t.Fatalf("stale state kept: n=%d err=%v", n, err)
	}
	if _, ok, _ := states.Get(ctx, 7); ok {
		t.Fatal("expired state still present")
	}
}
