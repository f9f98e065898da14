package flow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/winbingo/internal/wallet"
)

func (c *Controller) review(ctx context.Context, t *turn, decision wallet.Decision) error {
	if !c.isAdmin(t.ev.UserID) {
		t.ack(msgAdminOnly, true)
		return nil
	}
	id, err := strconv.ParseInt(strings.TrimSpace(t.ev.Payload), 10, 64)
	if err != nil || id <= 0 {
		t.ack(msgUnknownAction, false)
		return nil
	}

	req, err := c.ledger.Review(ctx, t.ev.UserID, id, decision)
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrAlreadyReviewed):
		t.ack(fmt.Sprintf(msgAlreadyHandled, id), true)
		return nil
	case wallet.IsKind(err, wallet.KindNotFound), wallet.IsKind(err, wallet.KindForbidden):
		t.ack(userMessage(err), true)
		return nil
	default:
		return err
	}

	verdict := "approved"
	if decision == wallet.Reject {
		verdict = "rejected"
	}
	t.ack(fmt.Sprintf("Request #%d %s", req.ID, verdict), false)
	t.reply(fmt.Sprintf(msgReviewDone, req.ID, req.Kind, c.money(req.Amount), verdict))
	t.notify(req.UserID, c.outcomeText(req))
	return nil
}

func (c *Controller) outcomeText(req wallet.Request) string {
	switch {
	case req.Kind == wallet.KindDeposit && req.Status == wallet.StatusApproved:
		return fmt.Sprintf(msgDepositApproved, req.ID, c.money(req.Amount))
	case req.Kind == wallet.KindDeposit:
		return fmt.Sprintf(msgDepositRejected, req.ID, c.supportHandle())
	case req.Status == wallet.StatusApproved:
		return fmt.Sprintf(msgWithdrawApproved, req.ID, c.money(req.Amount), methodLabel(req.Method))
	default:
		return fmt.Sprintf(msgWithdrawRejected, req.ID, c.money(req.Amount))
	}
}

func (c *Controller) pending(ctx context.Context, t *turn) error {
	if !c.isAdmin(t.ev.UserID) {
		t.reply(msgAdminOnly)
		return nil
	}
	reqs, err := c.ledger.Pending(ctx, t.ev.UserID)
	if err != nil {
		return err
	}
	if len(reqs) == 0 {
		t.reply(msgNoPending)
		return nil
	}
	for _, req := range reqs {
		owner, err := c.ledger.User(ctx, req.UserID)
		if err != nil && !wallet.IsKind(err, wallet.KindNotFound) {
			return err
		}
		r := t.reply(c.requestCard(req, owner), reviewRow(strconv.FormatInt(req.ID, 10)))
		if req.ReceiptFileID != "" {
			r.Media = &Media{Kind: receiptKind(MediaKind(req.ReceiptKind)), FileID: req.ReceiptFileID}
		}
	}
	return nil
}

func (c *Controller) requestCard(req wallet.Request, owner wallet.User) string {
	var b strings.Builder
	switch req.Kind {
	case wallet.KindDeposit:
		fmt.Fprintf(&b, "📥 Deposit request #%d\n", req.ID)
	default:
		fmt.Fprintf(&b, "📤 Withdrawal request #%d\n", req.ID)
	}
	fmt.Fprintf(&b, "User: %s (id %d)\n", owner.DisplayName(), req.UserID)
	fmt.Fprintf(&b, "Amount: %s\n", c.money(req.Amount))
	fmt.Fprintf(&b, "Method: %s", methodLabel(req.Method))
	if req.Phone != "" {
		fmt.Fprintf(&b, "\nPhone: %s", req.Phone)
	}
	if req.AccountName != "" {
		fmt.Fprintf(&b, "\nName: %s", req.AccountName)
	}
	if req.Kind == wallet.KindWithdrawal {
		b.WriteString("\nThe amount is already held from the balance.")
	}
	return b.String()
}
