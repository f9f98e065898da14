package wallet

import (
	"errors"
	"fmt"
)

// Kind classifies ledger failures so callers can decide how to react.
type Kind uint8

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindTransient
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindForbidden:
		return "forbidden"
	default:
		return "internal"
	}
}

// Error is the typed failure returned by Service. Msg is safe to show to users.
type Error struct {
	Kind Kind
	code string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Kind == KindInternal {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns a stable machine readable identifier, used as err_code in logs.
func (e *Error) Code() string { return e.code }

// Is matches errors by code so a reworded copy still equals its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

func (e *Error) withMsg(format string, args ...any) *Error {
	cp := *e
	cp.Msg = fmt.Sprintf(format, args...)
	return &cp
}

func (e *Error) wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidAmount       = &Error{Kind: KindValidation, code: "invalid_amount", Msg: "invalid amount"}
	ErrInsufficientBalance = &Error{Kind: KindValidation, code: "insufficient_balance", Msg: "insufficient balance"}
	ErrBelowMinimum        = &Error{Kind: KindValidation, code: "below_minimum", Msg: "amount below minimum withdrawal"}
	ErrSelfTransfer        = &Error{Kind: KindValidation, code: "self_transfer", Msg: "cannot transfer to yourself"}
	ErrUnknownMethod       = &Error{Kind: KindValidation, code: "unknown_method", Msg: "unknown payment method"}

	ErrUserNotFound      = &Error{Kind: KindNotFound, code: "user_not_found", Msg: "user not found"}
	ErrRecipientNotFound = &Error{Kind: KindNotFound, code: "recipient_not_found", Msg: "recipient not found"}
	ErrRequestNotFound   = &Error{Kind: KindNotFound, code: "request_not_found", Msg: "request not found"}

	ErrAlreadyReviewed = &Error{Kind: KindConflict, code: "already_reviewed", Msg: "request already handled"}
	// ErrOutcomeUnknown marks a mutation that may or may not have committed.
	// It must be reconciled by an operator, never retried blindly.
	ErrOutcomeUnknown = &Error{Kind: KindConflict, code: "outcome_unknown", Msg: "operation outcome unknown, please check your balance before retrying"}

	ErrUnavailable = &Error{Kind: KindTransient, code: "unavailable", Msg: "wallet temporarily unavailable, try again"}
	ErrBusy        = &Error{Kind: KindTransient, code: "busy", Msg: "another operation is in progress, try again"}

	ErrForbidden = &Error{Kind: KindForbidden, code: "forbidden", Msg: "admin only"}
)

// KindOf reports the Kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func isDomain(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
