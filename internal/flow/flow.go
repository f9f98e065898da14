// Package flow turns chat events into wallet operations. It owns the
// withdrawal, transfer, deposit, and registration conversations and knows
// nothing about the chat transport.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/keylock"
	"github.com/m3rciful/winbingo/internal/metrics"
	"github.com/m3rciful/winbingo/internal/wallet"
)

// EventKind tells what the user did.
type EventKind uint8

const (
	KindCommand EventKind = iota + 1
	KindText
	KindButton
	KindContact
	KindAttachment
)

func (k EventKind) String() string {
	switch k {
	case KindCommand:
		return "command"
	case KindText:
		return "text"
	case KindButton:
		return "button"
	case KindContact:
		return "contact"
	case KindAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// Contact is a shared phone contact.
type Contact struct {
	Phone     string
	FirstName string
	UserID    int64
}

// Event is one inbound user action.
type Event struct {
	UserID    int64
	ChatID    int64
	Username  string
	FirstName string
	Kind      EventKind

	// Command is lower case without the leading slash.
	Command string
	Args    []string
	Text    string
	// Button is the callback unique id; Payload its data.
	Button  string
	Payload string
	Contact Contact
	// FileID and Media describe an attachment.
	FileID string
	Media  MediaKind
}

// MediaKind is the type of an attachment.
type MediaKind string

const (
	MediaPhoto    MediaKind = "photo"
	MediaDocument MediaKind = "document"
)

// Button is an inline control. URL buttons open the mini app.
type Button struct {
	Text    string
	Unique  string
	Payload string
	URL     string
}

// Media attaches a previously uploaded file to a reply.
type Media struct {
	Kind   MediaKind
	FileID string
}

// Reply is one outbound message.
type Reply struct {
	ChatID  int64
	Text    string
	Buttons [][]Button
	// RequestContact, when set, is the label of a share-contact keyboard button.
	RequestContact string
	RemoveKeyboard bool
	Media          *Media
}

// Ack answers a button press.
type Ack struct {
	Text  string
	Alert bool
}

// Result is everything the transport must deliver for one event.
type Result struct {
	Replies []Reply
	Ack     *Ack
}

// Button ids.
const (
	BtnMenu          = "menu"
	BtnMethod        = "wd_method"
	BtnConfirm       = "wd_confirm"
	BtnCancel        = "flow_cancel"
	BtnDepositMethod = "dep_method"
	BtnApprove       = "req_approve"
	BtnReject        = "req_reject"
)

// Ledger is the wallet surface the flows use.
type Ledger interface {
	EnsureUser(ctx context.Context, p wallet.Profile) (wallet.User, error)
	Register(ctx context.Context, p wallet.Profile, phone string) (wallet.Registration, error)
	User(ctx context.Context, id int64) (wallet.User, error)
	UserByUsername(ctx context.Context, username string) (wallet.User, error)
	History(ctx context.Context, id int64, limit int) ([]wallet.Entry, error)
	Pending(ctx context.Context, reviewerID int64) ([]wallet.Request, error)
	Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) (wallet.TransferResult, error)
	RequestWithdrawal(ctx context.Context, d wallet.WithdrawalDraft) (wallet.Request, bool, error)
	SubmitDeposit(ctx context.Context, d wallet.DepositDraft) (wallet.Request, bool, error)
	Review(ctx context.Context, reviewerID, requestID int64, d wallet.Decision) (wallet.Request, error)
}

// Config holds the conversation policy.
type Config struct {
	AdminID         int64
	Currency        string
	MinWithdrawal   decimal.Decimal
	Methods         []string
	DepositAccounts map[string]string
	// EscapeCommand cancels any conversation, without the slash.
	EscapeCommand string
	StrictPhone   bool
	HistoryLimit  int
	Support       string
	AppURL        string
	LockTimeout   time.Duration
}

var phoneRe = regexp.MustCompile(`^\+?[0-9]{9,15}$`)

// Controller runs one event at a time per user.
type Controller struct {
	cfg     Config
	ledger  Ledger
	states  conversation.Store
	locks   *keylock.Locker
	newKey  func() uuid.UUID
	printer *message.Printer
}

// Option customises a Controller.
type Option func(*Controller)

// WithKeys overrides draft key generation.
func WithKeys(fn func() uuid.UUID) Option {
	return func(c *Controller) { c.newKey = fn }
}

// New builds a Controller.
func New(cfg Config, ledger Ledger, states conversation.Store, opts ...Option) *Controller {
	cfg.EscapeCommand = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(cfg.EscapeCommand)), "/")
	if cfg.EscapeCommand == "" {
		cfg.EscapeCommand = "cancel"
	}
	if cfg.Currency == "" {
		cfg.Currency = "ETB"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 10
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 10 * time.Second
	}
	c := &Controller{
		cfg:     cfg,
		ledger:  ledger,
		states:  states,
		locks:   keylock.New(),
		newKey:  uuid.New,
		printer: message.NewPrinter(language.English),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EscapeCommand reports the command that cancels any conversation.
func (c *Controller) EscapeCommand() string { return c.cfg.EscapeCommand }

// turn is the per-event working set.
type turn struct {
	ev   Event
	user wallet.User
	conv conversation.Conversation
	res  Result
}

func (t *turn) reply(text string, rows ...[]Button) *Reply {
	t.res.Replies = append(t.res.Replies, Reply{ChatID: t.ev.ChatID, Text: text, Buttons: rows})
	return &t.res.Replies[len(t.res.Replies)-1]
}

func (t *turn) notify(chatID int64, text string, rows ...[]Button) *Reply {
	t.res.Replies = append(t.res.Replies, Reply{ChatID: chatID, Text: text, Buttons: rows})
	return &t.res.Replies[len(t.res.Replies)-1]
}

func (t *turn) ack(text string, alert bool) {
	t.res.Ack = &Ack{Text: text, Alert: alert}
}

// Handle processes ev under the user's lock. On error the Result still holds
// a reply telling the user something went wrong.
func (c *Controller) Handle(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	lockCtx, cancel := context.WithTimeout(ctx, c.cfg.LockTimeout)
	unlock, err := c.locks.Lock(lockCtx, ev.UserID)
	cancel()
	if err != nil {
		return c.failure(ev, msgBusy), fmt.Errorf("flow: lock user %d: %w", ev.UserID, err)
	}
	defer unlock()

	t := &turn{ev: ev}
	err = c.dispatch(ctx, t)
	if err != nil {
		logger.Error(ctx, logger.CompFlow, "flow.failed",
			slog.String("kind", ev.Kind.String()),
			slog.String("stage", string(conversation.StageOf(t.conv))),
			slog.String("err_kind", wallet.KindOf(err).String()),
			slog.String("err", err.Error()),
			slog.Duration("duration", time.Since(start)),
		)
		return c.failure(ev, userMessage(err)), err
	}
	return t.res, nil
}

func (c *Controller) failure(ev Event, text string) Result {
	res := Result{Replies: []Reply{{ChatID: ev.ChatID, Text: text}}}
	if ev.Kind == KindButton {
		res.Ack = &Ack{}
	}
	return res
}

func (c *Controller) dispatch(ctx context.Context, t *turn) error {
	ev := t.ev
	user, err := c.ledger.EnsureUser(ctx, wallet.Profile{ID: ev.UserID, Username: ev.Username, FirstName: ev.FirstName})
	if err != nil {
		return err
	}
	t.user = user

	conv, ok, err := c.states.Get(ctx, ev.UserID)
	switch {
	case conversation.Unreadable(err):
		logger.Warn(ctx, logger.CompState, "state.dropped_unreadable",
			slog.Int64("user_id", ev.UserID),
			slog.String("err", err.Error()),
		)
		if cerr := c.states.Clear(ctx, ev.UserID); cerr != nil {
			return fmt.Errorf("clear unreadable conversation: %w", cerr)
		}
	case err != nil:
		return fmt.Errorf("load conversation: %w", err)
	case ok:
		t.conv = conv
	}

	switch ev.Kind {
	case KindCommand:
		// Any command abandons the current conversation first.
		if err := c.clear(ctx, t); err != nil {
			return err
		}
		return c.command(ctx, t)
	case KindButton:
		return c.button(ctx, t)
	case KindContact:
		if _, awaitingPhone := t.conv.(conversation.AwaitingPhone); !awaitingPhone {
			return c.register(ctx, t)
		}
	}

	if t.conv == nil {
		return c.idleInput(ctx, t)
	}
	if ev.Kind == KindText && isCancelWord(ev.Text) {
		return c.cancel(ctx, t)
	}
	return c.step(ctx, t)
}

// step feeds free input to the current stage.
func (c *Controller) step(ctx context.Context, t *turn) error {
	switch st := t.conv.(type) {
	case conversation.AwaitingMethod:
		return c.onMethod(ctx, t, strings.TrimSpace(t.ev.Text))
	case conversation.AwaitingPhone:
		return c.onPhone(ctx, t, st)
	case conversation.AwaitingName:
		return c.onName(ctx, t, st)
	case conversation.AwaitingAmount:
		return c.onAmount(ctx, t, st)
	case conversation.AwaitingConfirm:
		return c.onConfirmText(ctx, t, st)
	case conversation.AwaitingRecipient:
		return c.onRecipient(ctx, t)
	case conversation.AwaitingTransferAmount:
		return c.onTransferAmount(ctx, t, st)
	case conversation.AwaitingDepositAmount:
		return c.onDepositAmount(ctx, t, st)
	case conversation.AwaitingReceipt:
		return c.onReceipt(ctx, t, st)
	default:
		return c.clear(ctx, t)
	}
}

func (c *Controller) button(ctx context.Context, t *turn) error {
	ev := t.ev
	switch ev.Button {
	case BtnMenu:
		if err := c.clear(ctx, t); err != nil {
			return err
		}
		t.ack("", false)
		return c.menuAction(ctx, t, ev.Payload)
	case BtnApprove:
		return c.review(ctx, t, wallet.Approve)
	case BtnReject:
		return c.review(ctx, t, wallet.Reject)
	case BtnCancel:
		t.ack("", false)
		return c.cancel(ctx, t)
	case BtnConfirm:
		st, ok := t.conv.(conversation.AwaitingConfirm)
		if !ok || st.Draft.Key.String() != ev.Payload {
			t.ack(msgAlreadyProcessed, false)
			return nil
		}
		t.ack("", false)
		return c.confirm(ctx, t, st)
	case BtnMethod:
		t.ack("", false)
		if _, ok := t.conv.(conversation.AwaitingMethod); !ok {
			return c.expired(t)
		}
		return c.onMethod(ctx, t, ev.Payload)
	case BtnDepositMethod:
		t.ack("", false)
		st, ok := t.conv.(conversation.AwaitingDepositAmount)
		if !ok {
			return c.expired(t)
		}
		return c.onDepositMethod(ctx, t, st, ev.Payload)
	default:
		t.ack(msgUnknownAction, false)
		return nil
	}
}

func (c *Controller) expired(t *turn) error {
	t.reply(msgExpired, c.mainMenu()...)
	return nil
}

func (c *Controller) idleInput(ctx context.Context, t *turn) error {
	switch t.ev.Kind {
	case KindAttachment:
		t.reply(msgUnexpectedFile, c.mainMenu()...)
	default:
		t.reply(msgIdleHint, c.mainMenu()...)
	}
	return nil
}

func (c *Controller) cancel(ctx context.Context, t *turn) error {
	had := t.conv != nil
	if err := c.clear(ctx, t); err != nil {
		return err
	}
	if had {
		t.reply(msgCancelled, c.mainMenu()...)
	} else {
		t.reply(msgNothingToCancel, c.mainMenu()...)
	}
	return nil
}

// put stores next and records the transition.
func (c *Controller) put(ctx context.Context, t *turn, next conversation.Conversation) error {
	if err := c.states.Put(ctx, t.ev.UserID, next); err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	c.transition(ctx, conversation.StageOf(t.conv), next.Stage())
	t.conv = next
	return nil
}

// clear drops the conversation if there is one.
func (c *Controller) clear(ctx context.Context, t *turn) error {
	if t.conv == nil {
		return nil
	}
	if err := c.states.Clear(ctx, t.ev.UserID); err != nil {
		return fmt.Errorf("clear conversation: %w", err)
	}
	c.transition(ctx, t.conv.Stage(), conversation.StageIdle)
	t.conv = nil
	return nil
}

func (c *Controller) transition(ctx context.Context, from, to conversation.Stage) {
	if from == to {
		return
	}
	metrics.FlowTransitions.WithLabelValues(string(from), string(to)).Inc()
	logger.Debug(ctx, logger.CompFlow, "flow.transition",
		slog.String("from_stage", string(from)),
		slog.String("to_stage", string(to)),
	)
}

func (c *Controller) requireRegistered(t *turn) bool {
	if t.user.Registered {
		return true
	}
	r := t.reply(msgRegisterFirst)
	r.RequestContact = btnShareContact
	return false
}

func (c *Controller) isAdmin(id int64) bool { return c.cfg.AdminID != 0 && id == c.cfg.AdminID }

func (c *Controller) methodByName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, m := range c.cfg.Methods {
		if strings.EqualFold(m, name) {
			return m, true
		}
	}
	return "", false
}

func (c *Controller) normalizePhone(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !c.cfg.StrictPhone {
		return raw, raw != ""
	}
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(raw)
	if !phoneRe.MatchString(cleaned) {
		return "", false
	}
	return cleaned, true
}

func isCancelWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no", "cancel", "stop":
		return true
	}
	return false
}

func isConfirmWord(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "confirm", "ok":
		return true
	}
	return false
}

// userMessage renders err for the chat. Wallet errors carry safe text.
func userMessage(err error) string {
	var we *wallet.Error
	if errors.As(err, &we) {
		return "❌ " + we.Msg
	}
	return msgInternal
}
