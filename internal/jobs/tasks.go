package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/internal/bingo"
	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/idempotence"
)

// BingoTick advances the live game on every run.
func BingoTick(c *bingo.Caller, now func() time.Time) Task {
	return func(ctx context.Context) error {
		c.Tick(ctx, now())
		return nil
	}
}

// ExpireConversations drops conversations idle for longer than ttl.
func ExpireConversations(states conversation.Store, ttl time.Duration, now func() time.Time) Task {
	return func(ctx context.Context) error {
		n, err := states.Expire(ctx, now().Add(-ttl))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info(ctx, logger.CompState, "state.expired", slog.Int("count", n), slog.Duration("ttl", ttl))
		}
		return nil
	}
}

// PurgeUpdates forgets processed update ids older than keep.
func PurgeUpdates(r idempotence.Recorder, keep time.Duration, now func() time.Time) Task {
	return func(ctx context.Context) error {
		n, err := r.Purge(ctx, now().Add(-keep))
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Debug(ctx, logger.CompDedupe, "dedupe.purged", slog.Int("count", n))
		}
		return nil
	}
}
