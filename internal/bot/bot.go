// Package bot adapts telebot updates to the flow controller and delivers
// the controller's replies.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/winbingo/core/logger"
	tg "github.com/m3rciful/winbingo/core/telegram"
	"github.com/m3rciful/winbingo/core/telegram/commands"
	tghelpers "github.com/m3rciful/winbingo/core/telegram/helpers"
	"github.com/m3rciful/winbingo/core/telegram/router"
	"github.com/m3rciful/winbingo/internal/flow"
)

const msgAdminsOnly = "⛔ Admins only"

// Controller is the flow surface the adapter drives.
type Controller interface {
	Handle(ctx context.Context, ev flow.Event) (flow.Result, error)
	Commands() []flow.Command
}

// Bot wires a Controller into telebot routes.
type Bot struct {
	ctl     Controller
	sender  *tghelpers.Sender
	adminID int64
}

// New builds the adapter. Messages to chats other than the current one go
// through sender.
func New(ctl Controller, sender *tghelpers.Sender, adminID int64) *Bot {
	return &Bot{ctl: ctl, sender: sender, adminID: adminID}
}

// buttons lists every callback unique id the controller emits.
var buttons = []string{
	flow.BtnMenu,
	flow.BtnMethod,
	flow.BtnConfirm,
	flow.BtnCancel,
	flow.BtnDepositMethod,
	flow.BtnApprove,
	flow.BtnReject,
}

// Register adds the controller's commands and buttons to reg.
func (b *Bot) Register(reg *tg.Registry) error {
	var errs []error
	for _, cmd := range b.ctl.Commands() {
		errs = append(errs, reg.RegisterCommand(commands.Command{
			Name:        cmd.Name,
			Description: cmd.Description,
			AdminOnly:   cmd.AdminOnly,
			Handler:     b.onCommand,
		}))
	}
	for _, key := range buttons {
		errs = append(errs, reg.RegisterCallback(key, b.onButton))
	}
	reg.SetCallbackNotFound(b.onButton)
	return errors.Join(errs...)
}

// Routes returns the command, callback and message routes for reg.
func (b *Bot) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       b.adminID,
		OnAdminReject: func(c tele.Context) error { return c.Send(msgAdminsOnly) },
	})
	routes = append(routes, router.CallbackRoute(reg))
	return append(routes, router.MessageRoutes(router.MessageOptions{
		Text:           b.onMessage,
		Contact:        b.onMessage,
		Photo:          b.onMessage,
		Document:       b.onMessage,
		UnknownCommand: b.onCommand,
	})...)
}

func (b *Bot) onCommand(c tele.Context) error { return b.handle(c, commandEvent(c)) }
func (b *Bot) onButton(c tele.Context) error  { return b.handle(c, buttonEvent(c)) }
func (b *Bot) onMessage(c tele.Context) error { return b.handle(c, messageEvent(c)) }

func (b *Bot) handle(c tele.Context, ev flow.Event) error {
	ctx := tghelpers.BuildContext(c)
	res, herr := b.ctl.Handle(ctx, ev)
	derr := b.deliver(ctx, c, ev.ChatID, res)
	if herr != nil {
		return fmt.Errorf("handle %s: %w", ev.Kind, herr)
	}
	return derr
}

// deliver answers the callback, sends current-chat replies in order, and
// queues the rest per chat. A failed reply does not stop the ones after it.
func (b *Bot) deliver(ctx context.Context, c tele.Context, chatID int64, res flow.Result) error {
	var errs []error
	if c.Callback() != nil {
		resp := &tele.CallbackResponse{}
		if res.Ack != nil {
			resp.Text, resp.ShowAlert = res.Ack.Text, res.Ack.Alert
		}
		if err := c.Respond(resp); err != nil {
			errs = append(errs, fmt.Errorf("respond: %w", err))
		}
	}

	local, remote := split(res.Replies, chatID)
	for _, r := range local {
		what, opts := outgoing(r)
		if err := c.Send(what, opts); err != nil {
			errs = append(errs, fmt.Errorf("send: %w", err))
		}
	}
	for _, batch := range remote {
		if err := b.sender.Deliver(ctx, "send.notify", b.steps(c.Bot(), batch)...); err != nil {
			logger.Warn(ctx, logger.CompTGSender, "notify.failed",
				slog.Int64("target_chat", batch.chatID),
				slog.String("err", err.Error()),
			)
		}
	}
	return errors.Join(errs...)
}

func (b *Bot) steps(api tele.API, batch chatBatch) []func() error {
	steps := make([]func() error, 0, len(batch.replies))
	for _, r := range batch.replies {
		what, opts := outgoing(r)
		steps = append(steps, func() error {
			_, err := api.Send(tele.ChatID(batch.chatID), what, opts)
			return err
		})
	}
	return steps
}

type chatBatch struct {
	chatID  int64
	replies []flow.Reply
}

// split separates replies for chatID from the others, which are grouped by
// chat in first-seen order.
func split(replies []flow.Reply, chatID int64) ([]flow.Reply, []chatBatch) {
	var (
		local  []flow.Reply
		remote []chatBatch
		index  = map[int64]int{}
	)
	for _, r := range replies {
		if r.ChatID == chatID || r.ChatID == 0 {
			local = append(local, r)
			continue
		}
		i, ok := index[r.ChatID]
		if !ok {
			i = len(remote)
			index[r.ChatID] = i
			remote = append(remote, chatBatch{chatID: r.ChatID})
		}
		remote[i].replies = append(remote[i].replies, r)
	}
	return local, remote
}
