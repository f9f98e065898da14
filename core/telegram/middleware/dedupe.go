package middleware

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	tghelpers "github.com/m3rciful/winbingo/core/telegram/helpers"
)

// Recorder remembers keys it has seen. MakeRecord reports true the first
// time a key is recorded.
type Recorder interface {
	MakeRecord(ctx context.Context, key string) (bool, error)
}

// DedupeOptions configures DedupeMiddleware.
type DedupeOptions struct {
	Recorder Recorder
	// Timeout bounds the recorder call; 0 means 2s.
	Timeout time.Duration
	// OnDuplicate is called for every dropped update.
	OnDuplicate func()
}

// UpdateKey is the recorder key for a Telegram update id.
func UpdateKey(updateID int) string {
	return "update:" + strconv.Itoa(updateID)
}

// DedupeMiddleware drops updates whose id was already handled, as happens
// when Telegram redelivers after a webhook timeout or a restart. Recorder
// failures let the update through.
func DedupeMiddleware(opts DedupeOptions) tele.MiddlewareFunc {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			id := c.Update().ID
			if opts.Recorder == nil || id == 0 {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			recCtx, cancel := context.WithTimeout(ctx, timeout)
			first, err := opts.Recorder.MakeRecord(recCtx, UpdateKey(id))
			cancel()
			if err != nil {
				logger.Warn(ctx, logger.CompDedupe, "dedupe.record_failed",
					slog.String("err", err.Error()),
				)
				return next(c)
			}
			if !first {
				logger.Info(ctx, logger.CompDedupe, "dedupe.dropped",
					slog.String("kind", tghelpers.UpdateKind(c)),
				)
				if opts.OnDuplicate != nil {
					opts.OnDuplicate()
				}
				return nil
			}
			return next(c)
		}
	}
}
