package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Ledger reasons recorded in history.
const (
	ReasonWithdrawal       = "Withdrawal"
	ReasonWithdrawalRefund = "Withdrawal Refund"
	ReasonDeposit          = "Deposit"
	ReasonSignupBonus      = "Sign-up Bonus"
	ReasonBingoTicket      = "Bingo Ticket"
	ReasonTransferOut      = "Transfer Out"
	ReasonTransferIn       = "Transfer In"
)

// User is a wallet holder keyed by their Telegram id.
type User struct {
	ID         int64
	Username   string
	FirstName  string
	Phone      string
	Registered bool
	Balance    decimal.Decimal
	CreatedAt  time.Time
}

// DisplayName prefers @username and falls back to the first name.
func (u User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "user"
}

// Entry is one append-only history line. Amount is signed.
type Entry struct {
	ID           int64
	UserID       int64
	Amount       decimal.Decimal
	BalanceAfter decimal.Decimal
	Reason       string
	Ref          string
	CreatedAt    time.Time
}

// RequestKind distinguishes payout requests.
type RequestKind string

const (
	KindDeposit    RequestKind = "deposit"
	KindWithdrawal RequestKind = "withdrawal"
)

// Status is the review state of a request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Decision is an admin verdict on a pending request.
type Decision string

const (
	Approve Decision = "approve"
	Reject  Decision = "reject"
)

// Request is a deposit or withdrawal awaiting or past admin review.
type Request struct {
	ID            int64
	UserID        int64
	Kind          RequestKind
	Amount        decimal.Decimal
	Status        Status
	Method        string
	Phone         string
	AccountName   string
	ReceiptFileID string
	// ReceiptKind is "photo" or "document"; empty when there is no receipt.
	ReceiptKind string
	Key         string
	ReviewedBy  int64
	ReviewedAt  time.Time
	CreatedAt   time.Time
}

// WithdrawalDraft is the confirmed input of the withdrawal conversation.
type WithdrawalDraft struct {
	Key    string
	UserID int64
	Method string
	Phone  string
	Name   string
	Amount decimal.Decimal
}

// DepositDraft is a deposit claim backed by a receipt.
type DepositDraft struct {
	Key           string
	UserID        int64
	Method        string
	Amount        decimal.Decimal
	ReceiptFileID string
	ReceiptKind   string
}

// TransferResult reports both legs of a completed transfer.
type TransferResult struct {
	Sender   User
	Receiver User
	Debit    Entry
	Credit   Entry
}

// Profile is the identity data refreshed on every interaction.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
}

// Registration is the outcome of Register.
type Registration struct {
	User  User
	New   bool
	Bonus *Entry
}
