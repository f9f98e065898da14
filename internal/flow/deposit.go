package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/wallet"
)

// startDeposit shows where to pay. The balance is credited only after an
// admin approves the receipt.
func (c *Controller) startDeposit(ctx context.Context, t *turn) error {
	if !c.requireRegistered(t) {
		return nil
	}
	st := conversation.AwaitingDepositAmount{}
	if len(c.cfg.Methods) == 1 {
		st.Method = c.cfg.Methods[0]
	}
	if err := c.put(ctx, t, st); err != nil {
		return err
	}
	if st.Method != "" {
		t.reply(c.depositInstructions(st.Method)+"\n\n"+msgAskDepositAmount, cancelRow())
		return nil
	}
	c.promptDepositMethod(t)
	return nil
}

func (c *Controller) promptDepositMethod(t *turn) {
	rows := make([][]Button, 0, len(c.cfg.Methods)+1)
	for _, m := range c.cfg.Methods {
		rows = append(rows, []Button{{Text: methodLabel(m), Unique: BtnDepositMethod, Payload: m}})
	}
	t.reply(msgChooseDepositMethod, append(rows, cancelRow())...)
}

func (c *Controller) onDepositMethod(ctx context.Context, t *turn, st conversation.AwaitingDepositAmount, input string) error {
	method, ok := c.methodByName(input)
	if !ok {
		c.promptDepositMethod(t)
		return nil
	}
	st.Method = method
	if err := c.put(ctx, t, st); err != nil {
		return err
	}
	t.reply(c.depositInstructions(method)+"\n\n"+msgAskDepositAmount, cancelRow())
	return nil
}

func (c *Controller) onDepositAmount(ctx context.Context, t *turn, st conversation.AwaitingDepositAmount) error {
	if st.Method == "" {
		if _, ok := c.methodByName(t.ev.Text); ok {
			return c.onDepositMethod(ctx, t, st, t.ev.Text)
		}
		c.promptDepositMethod(t)
		return nil
	}
	amount, err := wallet.ParseAmount(t.ev.Text)
	if err != nil {
		t.reply(userMessage(err)+"\n"+msgAskDepositAmount, cancelRow())
		return nil
	}
	next := conversation.AwaitingReceipt{Method: st.Method, Amount: amount, Key: c.newKey()}
	if err := c.put(ctx, t, next); err != nil {
		return err
	}
	t.reply(fmt.Sprintf(msgAskReceipt, c.money(amount)), cancelRow())
	return nil
}

func (c *Controller) onReceipt(ctx context.Context, t *turn, st conversation.AwaitingReceipt) error {
	if t.ev.Kind != KindAttachment || t.ev.FileID == "" {
		t.reply(fmt.Sprintf(msgAskReceipt, c.money(st.Amount)), cancelRow())
		return nil
	}
	req, duplicate, err := c.ledger.SubmitDeposit(ctx, wallet.DepositDraft{
		Key:           st.Key.String(),
		UserID:        t.ev.UserID,
		Method:        st.Method,
		Amount:        st.Amount,
		ReceiptFileID: t.ev.FileID,
		ReceiptKind:   string(receiptKind(t.ev.Media)),
	})
	if err != nil {
		if wallet.IsKind(err, wallet.KindTransient) || wallet.IsKind(err, wallet.KindConflict) {
			t.reply(userMessage(err), cancelRow())
			return nil
		}
		if cerr := c.clear(ctx, t); cerr != nil {
			return cerr
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
	t.reply(fmt.Sprintf(msgDepositSubmitted, req.ID, c.money(req.Amount)), c.mainMenu()...)
	if card := c.notifyAdmin(t, req, t.user); card != nil {
		card.Media = &Media{Kind: receiptKind(t.ev.Media), FileID: t.ev.FileID}
	}
	return nil
}

func (c *Controller) depositInstructions(method string) string {
	account := ""
	for name, acc := range c.cfg.DepositAccounts {
		if strings.EqualFold(name, method) {
			account = acc
			break
		}
	}
	if account == "" {
		return fmt.Sprintf(msgDepositNoAccount, methodLabel(method), c.supportHandle())
	}
	return fmt.Sprintf(msgDepositAccount, methodLabel(method), account)
}

func (c *Controller) supportHandle() string {
	if c.cfg.Support == "" {
		return "the admin"
	}
	return c.cfg.Support
}

// receiptKind defaults to a photo for rows stored before the kind was kept.
func receiptKind(k MediaKind) MediaKind {
	if k == MediaDocument {
		return MediaDocument
	}
	return MediaPhoto
}
