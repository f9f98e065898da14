package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/wallet"
)

const maxNameLen = 64

func (c *Controller) startWithdraw(ctx context.Context, t *turn) error {
	if !c.requireRegistered(t) {
		return nil
	}
	if t.user.Balance.LessThan(c.cfg.MinWithdrawal) {
		t.reply(fmt.Sprintf(msgWithdrawTooPoor, c.money(c.cfg.MinWithdrawal), c.money(t.user.Balance)))
		return nil
	}
	if err := c.put(ctx, t, conversation.AwaitingMethod{}); err != nil {
		return err
	}
	c.promptMethod(t)
	return nil
}

func (c *Controller) promptMethod(t *turn) {
	rows := make([][]Button, 0, len(c.cfg.Methods)+1)
	for _, m := range c.cfg.Methods {
		rows = append(rows, []Button{{Text: methodLabel(m), Unique: BtnMethod, Payload: m}})
	}
	t.reply(msgChooseMethod, append(rows, cancelRow())...)
}

func (c *Controller) onMethod(ctx context.Context, t *turn, input string) error {
	method, ok := c.methodByName(input)
	if !ok {
		c.promptMethod(t)
		return nil
	}
	if err := c.put(ctx, t, conversation.AwaitingPhone{Method: method}); err != nil {
		return err
	}
	// One message carries one keyboard: the contact button here, the inline
	// cancel button in the next message.
	r := t.reply(fmt.Sprintf(msgAskPhone, methodLabel(method)))
	r.RequestContact = btnSharePhone
	t.reply(msgPhoneCancelHint, cancelRow())
	return nil
}

func (c *Controller) onPhone(ctx context.Context, t *turn, st conversation.AwaitingPhone) error {
	raw := t.ev.Text
	if t.ev.Kind == KindContact {
		raw = t.ev.Contact.Phone
	}
	phone, ok := c.normalizePhone(raw)
	if !ok {
		t.reply(msgBadPhone, cancelRow())
		return nil
	}
	if err := c.put(ctx, t, conversation.AwaitingName{Method: st.Method, Phone: phone}); err != nil {
		return err
	}
	r := t.reply(msgAskName, cancelRow())
	r.RemoveKeyboard = true
	return nil
}

func (c *Controller) onName(ctx context.Context, t *turn, st conversation.AwaitingName) error {
	name := strings.Join(strings.Fields(t.ev.Text), " ")
	if name == "" || len([]rune(name)) > maxNameLen {
		t.reply(msgBadName, cancelRow())
		return nil
	}
	if err := c.put(ctx, t, conversation.AwaitingAmount{Method: st.Method, Phone: st.Phone, Name: name}); err != nil {
		return err
	}
	c.promptAmount(t)
	return nil
}

func (c *Controller) promptAmount(t *turn) {
	t.reply(fmt.Sprintf(msgAskAmount, c.money(c.cfg.MinWithdrawal), c.money(t.user.Balance)), cancelRow())
}

// onAmount validates the amount; any violation keeps the user at this stage.
func (c *Controller) onAmount(ctx context.Context, t *turn, st conversation.AwaitingAmount) error {
	amount, err := wallet.ParseAmount(t.ev.Text)
	switch {
	case err != nil:
		t.reply(userMessage(err)+"\n"+fmt.Sprintf(msgAskAmount, c.money(c.cfg.MinWithdrawal), c.money(t.user.Balance)), cancelRow())
		return nil
	case amount.LessThan(c.cfg.MinWithdrawal):
		t.reply(fmt.Sprintf(msgBelowMinimum, c.money(c.cfg.MinWithdrawal)), cancelRow())
		return nil
	case amount.GreaterThan(t.user.Balance):
		t.reply(fmt.Sprintf(msgOverBalance, c.money(t.user.Balance)), cancelRow())
		return nil
	}

	draft := conversation.Draft{Key: c.newKey(), Method: st.Method, Phone: st.Phone, Name: st.Name, Amount: amount}
	if err := c.put(ctx, t, conversation.AwaitingConfirm{Draft: draft}); err != nil {
		return err
	}
	c.promptConfirm(t, draft)
	return nil
}

func (c *Controller) promptConfirm(t *turn, d conversation.Draft) {
	t.reply(
		fmt.Sprintf(msgConfirmWithdraw, methodLabel(d.Method), d.Phone, d.Name, c.money(d.Amount)),
		[]Button{
			{Text: "✅ Confirm", Unique: BtnConfirm, Payload: d.Key.String()},
			{Text: "❌ Cancel", Unique: BtnCancel, Payload: "cancel"},
		},
	)
}

func (c *Controller) onConfirmText(ctx context.Context, t *turn, st conversation.AwaitingConfirm) error {
	if t.ev.Kind == KindText && isConfirmWord(t.ev.Text) {
		return c.confirm(ctx, t, st)
	}
	c.promptConfirm(t, st.Draft)
	return nil
}

// confirm debits and files the withdrawal. The draft key makes a repeated
// confirm land on the same request.
func (c *Controller) confirm(ctx context.Context, t *turn, st conversation.AwaitingConfirm) error {
	d := st.Draft
	req, duplicate, err := c.ledger.RequestWithdrawal(ctx, wallet.WithdrawalDraft{
		Key:    d.Key.String(),
		UserID: t.ev.UserID,
		Method: d.Method,
		Phone:  d.Phone,
		Name:   d.Name,
		Amount: d.Amount,
	})
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, wallet.ErrBelowMinimum):
		if err := c.put(ctx, t, conversation.AwaitingAmount{Method: d.Method, Phone: d.Phone, Name: d.Name}); err != nil {
			return err
		}
		if u, uerr := c.ledger.User(ctx, t.ev.UserID); uerr == nil {
			t.user = u
		}
		t.reply(userMessage(err), cancelRow())
		c.promptAmount(t)
		return nil
	case errors.Is(err, wallet.ErrOutcomeUnknown), wallet.IsKind(err, wallet.KindTransient):
		// The draft stays so a retry reuses the same key.
		t.reply(userMessage(err)+"\n"+msgRetryConfirm, []Button{
			{Text: "🔁 Retry", Unique: BtnConfirm, Payload: d.Key.String()},
			{Text: "❌ Cancel", Unique: BtnCancel, Payload: "cancel"},
		})
		logger.Warn(ctx, logger.CompFlow, "flow.withdraw_pending_retry",
			slog.String("err", err.Error()),
		)
		return nil
	default:
		if cerr := c.clear(ctx, t); cerr != nil {
			return errors.Join(err, cerr)
		}
		t.reply(userMessage(err), c.mainMenu()...)
		return nil
	}

	if err := c.clear(ctx, t); err != nil {
		return err
	}
	if duplicate {
		t.reply(fmt.Sprintf(msgAlreadySubmitted, req.ID))
		return nil
	}
	t.reply(fmt.Sprintf(msgWithdrawSubmitted, req.ID, c.money(req.Amount)), c.mainMenu()...)
	c.notifyAdmin(t, req, t.user)
	return nil
}

// notifyAdmin posts a review card for req to the admin chat.
func (c *Controller) notifyAdmin(t *turn, req wallet.Request, owner wallet.User) *Reply {
	if c.cfg.AdminID == 0 {
		return nil
	}
	id := strconv.FormatInt(req.ID, 10)
	return t.notify(c.cfg.AdminID, c.requestCard(req, owner), reviewRow(id))
}

func reviewRow(id string) []Button {
	return []Button{
		{Text: "✅ Approve", Unique: BtnApprove, Payload: id},
		{Text: "❌ Reject", Unique: BtnReject, Payload: id},
	}
}

func methodLabel(m string) string {
	switch strings.ToLower(m) {
	case "telebirr":
		return "Telebirr"
	case "cbe":
		return "CBE"
	default:
		return m
	}
}
