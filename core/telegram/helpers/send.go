package helpers

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/core/telegram/sender"
)

// Sender queues outbound messages for chats other than the one being served.
type Sender struct {
	disp *sender.Dispatcher
}

// NewSender wraps disp. A nil dispatcher makes every send synchronous.
func NewSender(disp *sender.Dispatcher) *Sender {
	return &Sender{disp: disp}
}

// Deliver runs steps in order on the dispatcher. A retried job resumes at
// the first step that has not succeeded, so earlier messages are not sent
// twice. When the queue cannot take the job the steps run inline.
func (s *Sender) Deliver(ctx context.Context, action string, steps ...func() error) error {
	if len(steps) == 0 {
		return nil
	}
	next := 0
	run := func() error {
		for next < len(steps) {
			if err := steps[next](); err != nil {
				return err
			}
			next++
		}
		return nil
	}
	if s == nil || s.disp == nil {
		return run()
	}
	err := s.disp.Enqueue(ctx, action, "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, logger.CompTGSender, "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}

// SendTo queues one message to chatID.
func (s *Sender) SendTo(ctx context.Context, api tele.API, chatID int64, what interface{}, opts ...interface{}) error {
	return s.Deliver(ctx, "send.notify", func() error {
		_, err := api.Send(tele.ChatID(chatID), what, opts...)
		return err
	})
}
