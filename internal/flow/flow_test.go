package flow

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/internal/conversation"
	"github.com/m3rciful/winbingo/internal/store"
	"github.com/m3rciful/winbingo/internal/store/storetest"
	"github.com/m3rciful/winbingo/internal/wallet"
)

const (
	adminID = 900
	alice   = 1
	bob     = 2
)

var fixedKey = uuid.MustParse("6f1c2a52-7a55-4d0e-9a0b-3fb0f0a1c001")

type harness struct {
	t      *testing.T
	ledger *wallet.Service
	states conversation.Store
	ctl    *Controller
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, store.New(storetest.Open(t)), conversation.NewMemory())
}

func newHarnessWith(t *testing.T, repo *store.Repo, states conversation.Store) *harness {
	t.Helper()
	ledger := wallet.New(repo, wallet.Config{
		AdminID:       adminID,
		MinWithdrawal: decimal.NewFromInt(50),
		OpTimeout:     5 * time.Second,
		Methods:       []string{"telebirr", "cbe"},
	})
	ctl := New(Config{
		AdminID:         adminID,
		MinWithdrawal:   decimal.NewFromInt(50),
		Methods:         []string{"telebirr", "cbe"},
		DepositAccounts: map[string]string{"telebirr": "0911000000 Win Bingo"},
		StrictPhone:     true,
	}, ledger, states, WithKeys(func() uuid.UUID { return fixedKey }))
	return &harness{t: t, ledger: ledger, states: states, ctl: ctl}
}

func (h *harness) user(id int64, username, balance string) {
	h.t.Helper()
	ctx := context.Background()
	p := wallet.Profile{ID: id, Username: username, FirstName: username}
	if _, err := h.ledger.Register(ctx, p, "0911223344"); err != nil {
		h.t.Fatalf("register %d: %v", id, err)
	}
	if b := decimal.RequireFromString(balance); b.IsPositive() {
		if _, err := h.ledger.Adjust(ctx, id, b, "seed"); err != nil {
			h.t.Fatalf("seed %d: %v", id, err)
		}
	}
}

func (h *harness) send(ev Event) Result {
	h.t.Helper()
	if ev.ChatID == 0 {
		ev.ChatID = ev.UserID
	}
	res, err := h.ctl.Handle(context.Background(), ev)
	if err != nil {
		h.t.Fatalf("handle %s: %v", ev.Kind, err)
	}
	return res
}

func (h *harness) text(id int64, s string) Result {
	return h.send(Event{UserID: id, Kind: KindText, Text: s})
}

func (h *harness) command(id int64, name string, args ...string) Result {
	return h.send(Event{UserID: id, Kind: KindCommand, Command: name, Args: args})
}

func (h *harness) press(id int64, unique, payload string) Result {
	return h.send(Event{UserID: id, Kind: KindButton, Button: unique, Payload: payload})
}

func (h *harness) stage(id int64) conversation.Stage {
	h.t.Helper()
	c, _, err := h.states.Get(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get state: %v", err)
	}
	return conversation.StageOf(c)
}

func (h *harness) balance(id int64) string {
	h.t.Helper()
	b, err := h.ledger.Balance(context.Background(), id)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return b.StringFixed(2)
}

func (h *harness) entries(id int64) int {
	h.t.Helper()
	es, err := h.ledger.History(context.Background(), id, 100)
	if err != nil {
		h.t.Fatalf("history: %v", err)
	}
	return len(es)
}

func firstText(res Result) string {
	if len(res.Replies) == 0 {
		return ""
	}
	return res.Replies[0].Text
}

func repliesTo(res Result, chatID int64) []Reply {
	var out []Reply
	for _, r := range res.Replies {
		if r.ChatID == chatID {
			out = append(out, r)
		}
	}
	return out
}

// toAmount drives alice through the withdrawal steps up to the amount prompt.
func (h *harness) toAmount() {
	h.t.Helper()
	h.command(alice, "withdraw")
	if got := h.stage(alice); got != conversation.StageAwaitingMethod {
		h.t.Fatalf("after /withdraw stage = %s", got)
	}
	h.press(alice, BtnMethod, "telebirr")
	if got := h.stage(alice); got != conversation.StageAwaitingPhone {
		h.t.Fatalf("after method stage = %s", got)
	}
	h.text(alice, "0911 22 33 44")
	if got := h.stage(alice); got != conversation.StageAwaitingName {
		h.t.Fatalf("after phone stage = %s", got)
	}
	h.text(alice, "Alem  Bekele")
	if got := h.stage(alice); got != conversation.StageAwaitingAmount {
		h.t.Fatalf("after name stage = %s", got)
	}
}

func TestWithdrawalHappyPath(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.toAmount()

	res := h.text(alice, "120")
	if got := h.stage(alice); got != conversation.StageAwaitingConfirm {
		t.Fatalf("after amount stage = %s", got)
	}
	if !strings.Contains(firstText(res), "Alem Bekele") || !strings.Contains(firstText(res), "0911223344") {
		t.Fatalf("confirm prompt = %q", firstText(res))
	}
	if got := h.balance(alice); got != "200.00" {
		t.Fatalf("balance before confirm = %s", got)
	}

	res = h.press(alice, BtnConfirm, fixedKey.String())
	if got := h.stage(alice); got != conversation.StageIdle {
		t.Fatalf("after confirm stage = %s", got)
	}
	if got := h.balance(alice); got != "80.00" {
		t.Fatalf("balance after confirm = %s", got)
	}
	if len(repliesTo(res, adminID)) != 1 {
		t.Fatalf("admin notifications = %+v", res.Replies)
	}
	card := repliesTo(res, adminID)[0]
	if len(card.Buttons) != 1 || card.Buttons[0][0].Unique != BtnApprove {
		t.Fatalf("admin card buttons = %+v", card.Buttons)
	}
}

func TestPhonePromptShowsContactKeyboard(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.command(alice, "withdraw")
	res := h.press(alice, BtnMethod, "telebirr")
	if len(res.Replies) != 2 {
		t.Fatalf("phone prompt replies = %+v", res.Replies)
	}
	prompt, hint := res.Replies[0], res.Replies[1]
	if prompt.RequestContact != btnSharePhone || len(prompt.Buttons) != 0 {
		t.Fatalf("prompt = %+v, want contact keyboard without inline buttons", prompt)
	}
	if len(hint.Buttons) != 1 || hint.Buttons[0][0].Unique != BtnCancel {
		t.Fatalf("cancel hint = %+v", hint)
	}
}

func TestWithdrawalRejectsBadAmounts(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.toAmount()
	before := h.entries(alice)

	for _, input := range []string{"abc", "-5", "0", "49.99", "200.01", "10.123"} {
		h.text(alice, input)
		if got := h.stage(alice); got != conversation.StageAwaitingAmount {
			t.Fatalf("%q: stage = %s", input, got)
		}
	}
	if got := h.balance(alice); got != "200.00" {
		t.Fatalf("balance = %s", got)
	}
	if got := h.entries(alice); got != before {
		t.Fatalf("entries = %d, want %d", got, before)
	}
}

func TestDoubleConfirmDebitsOnce(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.toAmount()
	h.text(alice, "100")

	h.press(alice, BtnConfirm, fixedKey.String())
	res := h.press(alice, BtnConfirm, fixedKey.String())
	if res.Ack == nil || res.Ack.Text != msgAlreadyProcessed {
		t.Fatalf("second confirm ack = %+v", res.Ack)
	}
	if len(repliesTo(res, adminID)) != 0 {
		t.Fatal("second confirm notified the admin again")
	}
	if got := h.balance(alice); got != "100.00" {
		t.Fatalf("balance = %s", got)
	}
	pending, err := h.ledger.Pending(context.Background(), adminID)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending requests = %d", len(pending))
	}
}

func TestConfirmTextWord(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.toAmount()
	h.text(alice, "60")
	h.text(alice, "maybe")
	if got := h.stage(alice); got != conversation.StageAwaitingConfirm {
		t.Fatalf("stage = %s", got)
	}
	h.text(alice, "yes")
	if got := h.balance(alice); got != "140.00" {
		t.Fatalf("balance = %s", got)
	}
}

func TestEscapeFromAnyStage(t *testing.T) {
	cases := []struct {
		name    string
		command string
		want    string
	}{
		{name: "balance", command: "balance", want: "💰"},
		{name: "escape", command: "cancel", want: msgCancelled},
		{name: "menu", command: "menu", want: msgMenu},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.user(alice, "alice", "200")
			h.command(alice, "withdraw")
			h.press(alice, BtnMethod, "cbe")

			res := h.command(alice, tc.command)
			if got := h.stage(alice); got != conversation.StageIdle {
				t.Fatalf("stage = %s", got)
			}
			if !strings.Contains(firstText(res), tc.want) {
				t.Fatalf("reply = %q", firstText(res))
			}
		})
	}
}

func TestCancelButtonAndWord(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")

	h.command(alice, "transfer")
	res := h.press(alice, BtnCancel, "cancel")
	if firstText(res) != msgCancelled || h.stage(alice) != conversation.StageIdle {
		t.Fatalf("cancel button: %q stage %s", firstText(res), h.stage(alice))
	}

	h.command(alice, "withdraw")
	h.text(alice, "stop")
	if h.stage(alice) != conversation.StageIdle {
		t.Fatalf("cancel word left stage %s", h.stage(alice))
	}

	res = h.press(alice, BtnCancel, "cancel")
	if firstText(res) != msgNothingToCancel {
		t.Fatalf("idle cancel = %q", firstText(res))
	}
}

func TestWithdrawNeedsMinimumBalance(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "30")
	h.command(alice, "withdraw")
	if got := h.stage(alice); got != conversation.StageIdle {
		t.Fatalf("stage = %s", got)
	}
}

func TestStrictPhone(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "200")
	h.command(alice, "withdraw")
	h.press(alice, BtnMethod, "telebirr")
	res := h.text(alice, "call me")
	if firstText(res) != msgBadPhone || h.stage(alice) != conversation.StageAwaitingPhone {
		t.Fatalf("bad phone: %q stage %s", firstText(res), h.stage(alice))
	}
	h.send(Event{UserID: alice, Kind: KindContact, Contact: Contact{Phone: "+251911223344", UserID: alice}})
	if got := h.stage(alice); got != conversation.StageAwaitingName {
		t.Fatalf("contact as phone left stage %s", got)
	}
}

func TestTransferCommand(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "100")
	h.user(bob, "bob", "0")

	res := h.command(alice, "transfer", "30", "@Bob")
	if got := h.balance(alice); got != "70.00" {
		t.Fatalf("alice = %s", got)
	}
	if got := h.balance(bob); got != "30.00" {
		t.Fatalf("bob = %s", got)
	}
	if len(repliesTo(res, bob)) != 1 {
		t.Fatalf("receiver not notified: %+v", res.Replies)
	}

	res = h.command(alice, "transfer", "500", "@bob")
	if !strings.Contains(firstText(res), "insufficient balance") {
		t.Fatalf("overdraft reply = %q", firstText(res))
	}
	res = h.command(alice, "transfer", "5", "@nobody")
	if !strings.Contains(firstText(res), "recipient not found") {
		t.Fatalf("missing recipient reply = %q", firstText(res))
	}
	res = h.command(alice, "transfer", "abc", "@bob")
	if !strings.Contains(firstText(res), "invalid amount") {
		t.Fatalf("bad amount reply = %q", firstText(res))
	}
	if got := h.balance(alice); got != "70.00" {
		t.Fatalf("alice after failures = %s", got)
	}
}

func TestTransferConversation(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "100")
	h.user(bob, "bob", "0")

	h.command(alice, "transfer")
	h.text(alice, "alice")
	if got := h.stage(alice); got != conversation.StageAwaitingRecipient {
		t.Fatalf("self transfer moved to %s", got)
	}
	h.text(alice, "@bob")
	if got := h.stage(alice); got != conversation.StageAwaitingTransferAmount {
		t.Fatalf("stage = %s", got)
	}
	h.text(alice, "150")
	if got := h.stage(alice); got != conversation.StageAwaitingTransferAmount {
		t.Fatalf("overdraft left stage %s", got)
	}
	h.text(alice, "40")
	if got := h.stage(alice); got != conversation.StageIdle {
		t.Fatalf("stage after transfer = %s", got)
	}
	if h.balance(alice) != "60.00" || h.balance(bob) != "40.00" {
		t.Fatalf("balances = %s / %s", h.balance(alice), h.balance(bob))
	}
}

func (h *harness) deposit(amount string) int64 {
	h.t.Helper()
	return h.depositFile(amount, "file-1", MediaPhoto)
}

// depositFile runs alice's deposit with the given receipt and returns the request id.
func (h *harness) depositFile(amount, fileID string, kind MediaKind) int64 {
	h.t.Helper()
	h.command(alice, "deposit")
	h.press(alice, BtnDepositMethod, "telebirr")
	h.text(alice, amount)
	if got := h.stage(alice); got != conversation.StageAwaitingReceipt {
		h.t.Fatalf("stage before receipt = %s", got)
	}
	res := h.send(Event{UserID: alice, Kind: KindAttachment, FileID: fileID, Media: kind})
	if got := h.stage(alice); got != conversation.StageIdle {
		h.t.Fatalf("stage after receipt = %s", got)
	}
	cards := repliesTo(res, adminID)
	if len(cards) != 1 || cards[0].Media == nil || cards[0].Media.FileID != fileID || cards[0].Media.Kind != kind {
		h.t.Fatalf("admin card = %+v", cards)
	}
	id, err := strconv.ParseInt(cards[0].Buttons[0][0].Payload, 10, 64)
	if err != nil {
		h.t.Fatalf("review payload: %v", err)
	}
	return id
}

func TestDepositApprove(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "0")
	id := h.deposit("250")
	if got := h.balance(alice); got != "0.00" {
		t.Fatalf("balance before review = %s", got)
	}

	res := h.press(alice, BtnApprove, itoa(id))
	if res.Ack == nil || !res.Ack.Alert {
		t.Fatalf("non-admin review ack = %+v", res.Ack)
	}

	res = h.press(adminID, BtnApprove, itoa(id))
	if got := h.balance(alice); got != "250.00" {
		t.Fatalf("balance after approve = %s", got)
	}
	if len(repliesTo(res, alice)) != 1 {
		t.Fatalf("requester not notified: %+v", res.Replies)
	}

	res = h.press(adminID, BtnReject, itoa(id))
	if res.Ack == nil || !strings.Contains(res.Ack.Text, "already handled") {
		t.Fatalf("second review ack = %+v", res.Ack)
	}
	if got := h.balance(alice); got != "250.00" {
		t.Fatalf("balance after second review = %s", got)
	}
}

func TestDepositRejectLeavesBalance(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "10")
	id := h.deposit("250")
	h.press(adminID, BtnReject, itoa(id))
	if got := h.balance(alice); got != "10.00" {
		t.Fatalf("balance = %s", got)
	}
}

func TestReceiptStageNeedsFile(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "0")
	h.command(alice, "deposit")
	h.press(alice, BtnDepositMethod, "cbe")
	h.text(alice, "100")
	h.text(alice, "here it is")
	if got := h.stage(alice); got != conversation.StageAwaitingReceipt {
		t.Fatalf("stage = %s", got)
	}
}

func TestRegistrationByContact(t *testing.T) {
	h := newHarness(t)

	res := h.command(alice, "withdraw")
	if len(res.Replies) == 0 || res.Replies[0].RequestContact == "" {
		t.Fatalf("unregistered withdraw reply = %+v", res.Replies)
	}

	res = h.send(Event{UserID: alice, Kind: KindContact, Contact: Contact{Phone: "+251900000000", UserID: bob}})
	if firstText(res) != msgOwnContact {
		t.Fatalf("foreign contact reply = %q", firstText(res))
	}

	h.send(Event{UserID: alice, Username: "alice", Kind: KindContact, Contact: Contact{Phone: "+251911223344", UserID: alice}})
	u, err := h.ledger.User(context.Background(), alice)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if !u.Registered || u.Phone != "+251911223344" {
		t.Fatalf("user = %+v", u)
	}

	res = h.send(Event{UserID: alice, Kind: KindContact, Contact: Contact{Phone: "+251911223344", UserID: alice}})
	if firstText(res) != msgAlreadyRegistered {
		t.Fatalf("second contact reply = %q", firstText(res))
	}
}

func TestPendingIsAdminOnly(t *testing.T) {
	h := newHarness(t)
	h.user(alice, "alice", "0")
	if res := h.command(alice, "pending"); firstText(res) != msgAdminOnly {
		t.Fatalf("non-admin pending = %q", firstText(res))
	}
	if res := h.command(adminID, "pending"); firstText(res) != msgNoPending {
		t.Fatalf("empty pending = %q", firstText(res))
	}
	h.deposit("75")
	if res := h.command(adminID, "pending"); len(res.Replies) != 1 || res.Replies[0].Media == nil {
		t.Fatalf("pending replies = %+v", res.Replies)
	}
}

func TestPendingKeepsReceiptKind(t *testing.T) {
	cases := []struct {
		name   string
		fileID string
		kind   MediaKind
	}{
		{"photo", "photo-1", MediaPhoto},
		{"document", "doc-1", MediaDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.user(alice, "alice", "0")
			h.depositFile("75", tc.fileID, tc.kind)
			res := h.command(adminID, "pending")
			if len(res.Replies) != 1 || res.Replies[0].Media == nil {
				t.Fatalf("pending replies = %+v", res.Replies)
			}
			if m := res.Replies[0].Media; m.Kind != tc.kind || m.FileID != tc.fileID {
				t.Fatalf("pending card media = %+v, want %s %s", m, tc.kind, tc.fileID)
			}
		})
	}
}

func TestUnreadableStateDoesNotBlockCommands(t *testing.T) {
	for _, cmd := range []string{"cancel", "balance"} {
		t.Run(cmd, func(t *testing.T) {
			repo := store.New(storetest.Open(t))
			h := newHarnessWith(t, repo, conversation.NewSQL(repo))
			h.user(alice, "alice", "20")
			err := repo.SaveState(context.Background(), conversation.Record{
				UserID:    alice,
				Stage:     "legacy_stage",
				Payload:   []byte(`{}`),
				UpdatedAt: time.Now().UTC(),
			})
			if err != nil {
				t.Fatalf("save state: %v", err)
			}

			res := h.command(alice, cmd)
			if len(res.Replies) == 0 {
				t.Fatalf("/%s gave no reply", cmd)
			}
			if _, ok, err := repo.LoadState(context.Background(), alice); err != nil || ok {
				t.Fatalf("unreadable row kept: ok=%v err=%v", ok, err)
			}
			if got := h.stage(alice); got != conversation.StageIdle {
				t.Fatalf("stage = %s", got)
			}
		})
	}
}

func TestMoneyFormatting(t *testing.T) {
	c := New(Config{}, nil, nil)
	cases := map[string]string{
		"0":       "0.00 ETB",
		"1234.5":  "1,234.50 ETB",
		"-50":     "-50.00 ETB",
		"1000000": "1,000,000.00 ETB",
		"0.07":    "0.07 ETB",
	}
	for in, want := range cases {
		if got := c.money(decimal.RequireFromString(in)); got != want {
			t.Fatalf("money(%s) = %q, want %q", in, got, want)
		}
	}
	if got := c.signedMoney(decimal.NewFromInt(5)); got != "+5.00 ETB" {
		t.Fatalf("signedMoney = %q", got)
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
