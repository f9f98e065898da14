package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/m3rciful/winbingo/internal/wallet"
)

// Command describes a slash command for the transport's command menu.
type Command struct {
	Name        string
	Description string
	AdminOnly   bool
}

// Commands lists what the controller understands, in menu order.
func (c *Controller) Commands() []Command {
	return []Command{
		{Name: "start", Description: "Start / መጀመሪያ"},
		{Name: "menu", Description: "Open Menu / ምናሌ"},
		{Name: "balance", Description: "Balance / ቀሪ ሂሳብ"},
		{Name: "deposit", Description: "Deposit / ገቢ"},
		{Name: "withdraw", Description: "Withdraw / ወጪ"},
		{Name: "transfer", Description: "Transfer / ያስተላልፉ"},
		{Name: "history", Description: "History / ታሪክ"},
		{Name: "support", Description: "Support / እርዳታ"},
		{Name: "help", Description: "Rules and usage"},
		{Name: c.cfg.EscapeCommand, Description: "Cancel the current action"},
		{Name: "pending", Description: "Pending requests", AdminOnly: true},
	}
}

func (c *Controller) command(ctx context.Context, t *turn) error {
	switch cmd := t.ev.Command; cmd {
	case c.cfg.EscapeCommand:
		t.reply(msgCancelled, c.mainMenu()...)
		return nil
	case "start":
		return c.start(t)
	case "menu":
		t.reply(msgMenu, c.mainMenu()...)
		return nil
	case "balance":
		return c.balance(t)
	case "history":
		return c.history(ctx, t)
	case "help", "rules":
		t.reply(msgRules)
		return nil
	case "support":
		t.reply(c.supportText())
		return nil
	case "withdraw":
		return c.startWithdraw(ctx, t)
	case "deposit":
		return c.startDeposit(ctx, t)
	case "transfer":
		return c.transferCommand(ctx, t)
	case "pending":
		return c.pending(ctx, t)
	default:
		t.reply(fmt.Sprintf(msgUnknownCommand, cmd))
		return nil
	}
}

func (c *Controller) menuAction(ctx context.Context, t *turn, action string) error {
	switch action {
	case "withdraw":
		return c.startWithdraw(ctx, t)
	case "deposit":
		return c.startDeposit(ctx, t)
	case "transfer":
		return c.startTransfer(ctx, t)
	case "balance":
		return c.balance(t)
	case "history":
		return c.history(ctx, t)
	case "support":
		t.reply(c.supportText())
		return nil
	case "rules":
		t.reply(msgRules)
		return nil
	default:
		t.reply(msgMenu, c.mainMenu()...)
		return nil
	}
}

func (c *Controller) start(t *turn) error {
	if !t.user.Registered {
		r := t.reply(msgWelcome)
		r.RequestContact = btnShareContact
		return nil
	}
	t.reply(fmt.Sprintf(msgWelcomeBack, displayFirstName(t.user)), c.mainMenu()...)
	return nil
}

func (c *Controller) balance(t *turn) error {
	t.reply(fmt.Sprintf(msgBalance, c.money(t.user.Balance)))
	return nil
}

func (c *Controller) history(ctx context.Context, t *turn) error {
	entries, err := c.ledger.History(ctx, t.ev.UserID, c.cfg.HistoryLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		t.reply(msgHistoryEmpty)
		return nil
	}
	var b strings.Builder
	b.WriteString(msgHistoryHeader)
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s  %s  %s", e.CreatedAt.Format("2006-01-02 15:04"), c.signedMoney(e.Amount), e.Reason)
	}
	t.reply(b.String())
	return nil
}

// register handles a shared contact outside the phone step.
func (c *Controller) register(ctx context.Context, t *turn) error {
	ev := t.ev
	if ev.Contact.UserID != ev.UserID {
		r := t.reply(msgOwnContact)
		r.RequestContact = btnShareContact
		return nil
	}
	if t.user.Registered {
		t.reply(msgAlreadyRegistered, c.mainMenu()...)
		return nil
	}
	reg, err := c.ledger.Register(ctx, wallet.Profile{ID: ev.UserID, Username: ev.Username, FirstName: ev.FirstName}, ev.Contact.Phone)
	if err != nil {
		return err
	}
	t.user = reg.User
	text := msgRegistered
	if reg.Bonus != nil {
		text += fmt.Sprintf(msgSignupBonus, c.money(reg.Bonus.Amount))
	}
	r := t.reply(text)
	r.RemoveKeyboard = true
	t.reply(msgMenu, c.mainMenu()...)
	return nil
}

func (c *Controller) mainMenu() [][]Button {
	var rows [][]Button
	if c.cfg.AppURL != "" {
		rows = append(rows, []Button{{Text: "OPEN MENU / ምናሌን ክፈት 📱", URL: c.cfg.AppURL}})
	}
	return append(rows,
		[]Button{
			{Text: "Deposit / ገቢ 💵", Unique: BtnMenu, Payload: "deposit"},
			{Text: "Withdraw / ወጪ 🏦", Unique: BtnMenu, Payload: "withdraw"},
		},
		[]Button{
			{Text: "Transfer / ያስተላልፉ 💸", Unique: BtnMenu, Payload: "transfer"},
			{Text: "Balance / ቀሪ ሂሳብ 💰", Unique: BtnMenu, Payload: "balance"},
		},
		[]Button{
			{Text: "Support / እርዳታ 📞", Unique: BtnMenu, Payload: "support"},
			{Text: "Rules / ደንቦች 📖", Unique: BtnMenu, Payload: "rules"},
		},
	)
}

func cancelRow() []Button {
	return []Button{{Text: "❌ Cancel", Unique: BtnCancel, Payload: "cancel"}}
}

func (c *Controller) supportText() string {
	if c.cfg.Support == "" {
		return msgSupportNone
	}
	return fmt.Sprintf(msgSupport, c.cfg.Support)
}

func displayFirstName(u wallet.User) string {
	if u.FirstName != "" {
		return u.FirstName
	}
	return u.DisplayName()
}
