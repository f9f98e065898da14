package idempotence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"
)

func exercise(t *testing.T, r Recorder) {
	t.Helper()
	ctx := context.Background()

	first, err := r.MakeRecord(ctx, "update:1")
	if err != nil || !first {
		t.Fatalf("first record = %v, %v", first, err)
	}
	again, err := r.MakeRecord(ctx, "update:1")
	if err != nil || again {
		t.Fatalf("repeated record = %v, %v", again, err)
	}
	other, err := r.MakeRecord(ctx, "update:2")
	if err != nil || !other {
		t.Fatalf("other key = %v, %v", other, err)
	}

	n, err := r.Purge(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if first, _ := r.MakeRecord(ctx, "update:1"); !first {
		t.Fatal("purged key must be recorded again")
	}
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory(0))
}

func TestMemoryTTL(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if first, _ := m.MakeRecord(ctx, "k"); !first {
		t.Fatal("expected first")
	}
	now = now.Add(30 * time.Second)
	if first, _ := m.MakeRecord(ctx, "k"); first {
		t.Fatal("key inside ttl must be a repeat")
	}
	now = now.Add(2 * time.Minute)
	if first, _ := m.MakeRecord(ctx, "k"); !first {
		t.Fatal("key past ttl must count as new")
	}
}

func TestBolt(t *testing.T) {
	db, err := bolt.Open(filepath.Join(t.TempDir(), "idem.db"), 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("open bolt: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	r, err := NewBolt(db)
	if err != nil {
		t.Fatalf("new bolt: %v", err)
	}
	exercise(t, r)
}
