// Package conversation holds the per-user dialogue state of the wallet flows.
//
// A Conversation is a closed set of stage types; each carries only the data
// collected so far. No record means the user is idle.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stage names a conversation variant. It is persisted, so values are stable.
type Stage string

const (
	StageIdle                   Stage = "idle"
	StageAwaitingMethod         Stage = "awaiting_method"
	StageAwaitingPhone          Stage = "awaiting_phone"
	StageAwaitingName           Stage = "awaiting_name"
	StageAwaitingAmount         Stage = "awaiting_amount"
	StageAwaitingConfirm        Stage = "awaiting_confirm"
	StageAwaitingRecipient      Stage = "awaiting_recipient"
	StageAwaitingTransferAmount Stage = "awaiting_transfer_amount"
	StageAwaitingDepositAmount  Stage = "awaiting_deposit_amount"
	StageAwaitingReceipt        Stage = "awaiting_receipt"
)

// Conversation is implemented only by the stage types of this package.
type Conversation interface {
	Stage() Stage
	sealed()
}

// AwaitingMethod waits for the payout method.
type AwaitingMethod struct{}

// AwaitingPhone waits for the payout phone number.
type AwaitingPhone struct {
	Method string `json:"method"`
}

// AwaitingName waits for the account holder name.
type AwaitingName struct {
	Method string `json:"method"`
	Phone  string `json:"phone"`
}

// AwaitingAmount waits for the withdrawal amount.
type AwaitingAmount struct {
	Method string `json:"method"`
	Phone  string `json:"phone"`
	Name   string `json:"name"`
}

// Draft is a complete withdrawal awaiting confirmation.
// Key deduplicates the confirm so a repeated press debits once.
type Draft struct {
	Key    uuid.UUID       `json:"key"`
	Method string          `json:"method"`
	Phone  string          `json:"phone"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// AwaitingConfirm waits for the user to confirm Draft.
type AwaitingConfirm struct {
	Draft Draft `json:"draft"`
}

// AwaitingRecipient waits for the transfer receiver.
type AwaitingRecipient struct{}

// AwaitingTransferAmount waits for the amount to send to the recipient.
type AwaitingTransferAmount struct {
	RecipientID   int64  `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
}

// AwaitingDepositAmount waits for the amount the user paid in.
type AwaitingDepositAmount struct {
	Method string `json:"method"`
}

// AwaitingReceipt waits for a photo or document proving the deposit.
type AwaitingReceipt struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
	Key    uuid.UUID       `json:"key"`
}

func (AwaitingMethod) Stage() Stage         { return StageAwaitingMethod }
func (AwaitingPhone) Stage() Stage          { return StageAwaitingPhone }
func (AwaitingName) Stage() Stage           { return StageAwaitingName }
func (AwaitingAmount) Stage() Stage         { return StageAwaitingAmount }
func (AwaitingConfirm) Stage() Stage        { return StageAwaitingConfirm }
func (AwaitingRecipient) Stage() Stage      { return StageAwaitingRecipient }
func (AwaitingTransferAmount) Stage() Stage { return StageAwaitingTransferAmount }
func (AwaitingDepositAmount) Stage() Stage  { return StageAwaitingDepositAmount }
func (AwaitingReceipt) Stage() Stage        { return StageAwaitingReceipt }

func (AwaitingMethod) sealed()         {}
func (AwaitingPhone) sealed()          {}
func (AwaitingName) sealed()           {}
func (AwaitingAmount) sealed()         {}
func (AwaitingConfirm) sealed()        {}
func (AwaitingRecipient) sealed()      {}
func (AwaitingTransferAmount) sealed() {}
func (AwaitingDepositAmount) sealed()  {}
func (AwaitingReceipt) sealed()        {}

// StageOf returns the stage of c, or StageIdle for nil.
func StageOf(c Conversation) Stage {
	if c == nil {
		return StageIdle
	}
	return c.Stage()
}

// Store keeps at most one conversation per user. Put overwrites.
type Store interface {
	Get(ctx context.Context, userID int64) (Conversation, bool, error)
	Put(ctx context.Context, userID int64, c Conversation) error
	Clear(ctx context.Context, userID int64) error
	// Expire drops conversations last written before the cutoff.
	Expire(ctx context.Context, before time.Time) (int, error)
}
