package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	b, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	return b
}

func message(b *tele.Bot, updateID int, userID int64, text string) tele.Context {
	return b.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

type memRecorder struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (r *memRecorder) MakeRecord(_ context.Context, key string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	return true, nil
}

func TestDedupeDropsRedelivery(t *testing.T) {
	b := offlineBot(t)
	handled, dropped := 0, 0
	h := DedupeMiddleware(DedupeOptions{
		Recorder:    &memRecorder{seen: map[string]bool{}},
		OnDuplicate: func() { dropped++ },
	})(func(tele.Context) error { handled++; return nil })

	for _, id := range []int{10, 11, 10, 10} {
		if err := h(message(b, id, 1, "hi")); err != nil {
			t.Fatalf("handler: %v", err)
		}
	}
	if handled != 2 || dropped != 2 {
		t.Fatalf("handled = %d, dropped = %d", handled, dropped)
	}
}

func TestDedupeFailsOpen(t *testing.T) {
	b := offlineBot(t)
	handled := 0
	h := DedupeMiddleware(DedupeOptions{Recorder: &memRecorder{err: errors.New("disk full")}})(
		func(tele.Context) error { handled++; return nil })
	_ = h(message(b, 5, 1, "a"))
	_ = h(message(b, 5, 1, "a"))
	if handled != 2 {
		t.Fatalf("handled = %d, want 2", handled)
	}
}

func TestRateLimit(t *testing.T) {
	b := offlineBot(t)
	now := time.Unix(1_700_000_000, 0)
	limited := 0
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Now:       func() time.Time { return now },
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { return nil })

	_ = h(message(b, 1, 1, "a"))
	_ = h(message(b, 2, 1, "b"))
	_ = h(message(b, 3, 2, "other user"))
	now = now.Add(1500 * time.Millisecond)
	_ = h(message(b, 4, 1, "c"))
	if limited != 1 {
		t.Fatalf("limited = %d, want 1", limited)
	}
}

func TestRateLimitExclude(t *testing.T) {
	b := offlineBot(t)
	limited := 0
	h := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		Exclude:   map[string]struct{}{"message": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
	})(func(tele.Context) error { return nil })
	_ = h(message(b, 1, 1, "a"))
	_ = h(message(b, 2, 1, "b"))
	if limited != 0 {
		t.Fatalf("excluded kind was limited")
	}
}

func TestAdminOnly(t *testing.T) {
	b := offlineBot(t)
	rejected, passed := 0, 0
	h := AdminOnlyMiddleware(AdminOptions{
		AdminID:  900,
		OnReject: func(tele.Context) error { rejected++; return nil },
	})(func(tele.Context) error { passed++; return nil })
	_ = h(message(b, 1, 1, "/pending"))
	_ = h(message(b, 2, 900, "/pending"))
	if rejected != 1 || passed != 1 {
		t.Fatalf("rejected = %d, passed = %d", rejected, passed)
	}
}

func TestRecoverReturnsError(t *testing.T) {
	b := offlineBot(t)
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	if err := h(message(b, 1, 1, "x")); err == nil {
		t.Fatalf("panic was swallowed without an error")
	}
}

func TestMetricsObserve(t *testing.T) {
	b := offlineBot(t)
	var got []string
	h := MessageMetricsMiddleware(func(kind, status string) { got = append(got, kind+":"+status) })(
		func(tele.Context) error { return errors.New("fail") })
	_ = h(message(b, 1, 1, "x"))
	if len(got) != 1 || got[0] != "message:fail" {
		t.Fatalf("observed = %v", got)
	}
}
