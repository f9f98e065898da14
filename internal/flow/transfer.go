package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/wallet"
)

// transferCommand runs "/transfer <amount> @username" at once, or starts the
// step by step conversation when no arguments are given.
func (c *Controller) transferCommand(ctx context.Context, t *turn) error {
	if !c.requireRegistered(t) {
		return nil
	}
	switch args := t.ev.Args; len(args) {
	case 0:
		return c.startTransfer(ctx, t)
	case 2:
		amount, err := wallet.ParseAmount(args[0])
		if err != nil {
			t.reply(userMessage(err) + "\n" + msgTransferUsage)
			return nil
		}
		receiver, err := c.resolveRecipient(ctx, args[1])
		if err != nil {
			if wallet.IsKind(err, wallet.KindNotFound) {
				t.reply(userMessage(err))
				return nil
			}
			return err
		}
		_, err = c.executeTransfer(ctx, t, receiver, amount)
		return err
	default:
		t.reply(msgTransferUsage)
		return nil
	}
}

func (c *Controller) startTransfer(ctx context.Context, t *turn) error {
	if !c.requireRegistered(t) {
		return nil
	}
	if err := c.put(ctx, t, conversation.AwaitingRecipient{}); err != nil {
		return err
	}
	t.reply(msgAskRecipient, cancelRow())
	return nil
}

func (c *Controller) onRecipient(ctx context.Context, t *turn) error {
	receiver, err := c.resolveRecipient(ctx, t.ev.Text)
	switch {
	case err == nil:
	case wallet.IsKind(err, wallet.KindNotFound):
		t.reply(userMessage(err)+"\n"+msgAskRecipient, cancelRow())
		return nil
	default:
		return err
	}
	if receiver.ID == t.ev.UserID {
		t.reply(userMessage(wallet.ErrSelfTransfer)+"\n"+msgAskRecipient, cancelRow())
		return nil
	}
	next := conversation.AwaitingTransferAmount{RecipientID: receiver.ID, RecipientName: receiver.DisplayName()}
	if err := c.put(ctx, t, next); err != nil {
		return err
	}
	t.reply(fmt.Sprintf(msgAskTransferAmount, next.RecipientName, c.money(t.user.Balance)), cancelRow())
	return nil
}

func (c *Controller) onTransferAmount(ctx context.Context, t *turn, st conversation.AwaitingTransferAmount) error {
	amount, err := wallet.ParseAmount(t.ev.Text)
	if err != nil {
		t.reply(userMessage(err)+"\n"+fmt.Sprintf(msgAskTransferAmount, st.RecipientName, c.money(t.user.Balance)), cancelRow())
		return nil
	}
	receiver := wallet.User{ID: st.RecipientID}
	if u, err := c.ledger.User(ctx, st.RecipientID); err == nil {
		receiver = u
	} else if !wallet.IsKind(err, wallet.KindNotFound) {
		return err
	}
	done, err := c.executeTransfer(ctx, t, receiver, amount)
	if err != nil || !done {
		return err
	}
	return c.clear(ctx, t)
}

// executeTransfer reports done=false when the user should try another amount.
func (c *Controller) executeTransfer(ctx context.Context, t *turn, receiver wallet.User, amount decimal.Decimal) (bool, error) {
	res, err := c.ledger.Transfer(ctx, t.ev.UserID, receiver.ID, amount)
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrInsufficientBalance), errors.Is(err, wallet.ErrInvalidAmount):
		t.reply(userMessage(err) + "\n" + fmt.Sprintf(msgYourBalance, c.money(t.user.Balance)))
		return false, nil
	case wallet.IsKind(err, wallet.KindValidation), wallet.IsKind(err, wallet.KindNotFound):
		t.reply(userMessage(err))
		return true, nil
	default:
		return false, err
	}

	t.reply(fmt.Sprintf(msgTransferSent, c.money(amount), res.Receiver.DisplayName(), c.money(res.Sender.Balance)), c.mainMenu()...)
	t.notify(res.Receiver.ID, fmt.Sprintf(msgTransferReceived, c.money(amount), res.Sender.DisplayName(), c.money(res.Receiver.Balance)))
	return true, nil
}

// resolveRecipient accepts @username, a bare username, or a numeric id.
func (c *Controller) resolveRecipient(ctx context.Context, raw string) (wallet.User, error) {
	raw = strings.TrimSpace(raw)
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		u, err := c.ledger.User(ctx, id)
		if errors.Is(err, wallet.ErrUserNotFound) {
			return wallet.User{}, wallet.ErrRecipientNotFound
		}
		return u, err
	}
	return c.ledger.UserByUsername(ctx, raw)
}
