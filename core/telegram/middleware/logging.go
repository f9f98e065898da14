package middleware

import (
	"log/slog"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/winbingo/core/telegram/helpers"
)

const startKey = "update_start"

// LoggerMiddleware sets the rid and request context for the update and logs
// one sampled debug line on receipt. It is idempotent: when the context is
// already built it passes straight through.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, ok := tghelpers.ContextFrom(c); ok {
			return next(c)
		}
		c.Set(startKey, time.Now())
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() {
			upd := c.Update()
			userID, chatID := tghelpers.IDs(c)
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.String("kind", tghelpers.UpdateKind(c)),
				slog.Int("update_id", upd.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chatID), slog.String("chat_type", string(chat.Type)))
			}
			if u := c.Sender(); u != nil {
				attrs = append(attrs, slog.Int64("user_id", userID))
				if u.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(u.Username, 64)))
				}
				if u.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", u.LanguageCode))
				}
			}
			switch {
			case upd.Callback != nil:
				key, payload := callbacks.Parse(upd.Callback)
				if key != "" {
					attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(key, 128)))
				}
				if payload != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(payload, 256)))
				}
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.LogEvent(ctx, logger.Component(logger.CompTG), slog.LevelDebug, "update.received", attrs...)
		}
		return next(c)
	}
}

// Started returns when the update entered the middleware chain.
func Started(c tele.Context) (time.Time, bool) {
	t, ok := c.Get(startKey).(time.Time)
	return t, ok
}
