package bingo

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestFullGameCallsEveryNumberOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	c := NewCaller(Config{CallInterval: 5 * time.Second, ResetAfter: 10 * time.Second}, now, 7)

	if g := c.Snapshot(); g.RoomID != "LIVE-1" || g.Status != StatusRunning || g.Current != 0 {
		t.Fatalf("initial game = %+v", g)
	}

	for i := 0; i < MaxNumber; i++ {
		now = now.Add(5 * time.Second)
		c.Tick(ctx, now)
	}
	g := c.Snapshot()
	if len(g.Called) != MaxNumber {
		t.Fatalf("called %d numbers", len(g.Called))
	}
	seen := make(map[int]bool, MaxNumber)
	for _, n := range g.Called {
		if n < 1 || n > MaxNumber || seen[n] {
			t.Fatalf("bad or repeated number %d", n)
		}
		seen[n] = true
	}
	if g.Current != g.Called[len(g.Called)-1] {
		t.Fatalf("current = %d, last called = %d", g.Current, g.Called[len(g.Called)-1])
	}
	if !g.NextCallAt.Equal(now.Add(5 * time.Second)) {
		t.Fatalf("next call at %v", g.NextCallAt)
	}

	now = now.Add(5 * time.Second)
	c.Tick(ctx, now)
	if g := c.Snapshot(); g.Status != StatusEnded {
		t.Fatalf("status after 75 calls = %s", g.Status)
	}

	c.Tick(ctx, now.Add(5*time.Second))
	if g := c.Snapshot(); g.Status != StatusEnded {
		t.Fatal("game restarted before reset delay")
	}

	c.Tick(ctx, now.Add(10*time.Second))
	g = c.Snapshot()
	if g.RoomID != "LIVE-2" || g.Status != StatusRunning || len(g.Called) != 0 {
		t.Fatalf("restarted game = %+v", g)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	now := time.Now()
	c := NewCaller(Config{}, now, 1)
	c.Tick(context.Background(), now)
	g := c.Snapshot()
	g.Called[0] = 999
	if c.Snapshot().Called[0] == 999 {
		t.Fatal("snapshot shares the called slice")
	}
}

func TestConcurrentReaders(t *testing.T) {
	now := time.Now()
	c := NewCaller(Config{}, now, 3)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = c.Snapshot()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		c.Tick(context.Background(), now.Add(time.Duration(i)*time.Second))
	}
	wg.Wait()
	if got := len(c.Snapshot().Called); got != 50 {
		t.Fatalf("called = %d", got)
	}
}
