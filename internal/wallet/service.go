// Package wallet implements the balance ledger: adjustments, transfers, and
// deposit/withdrawal requests reviewed by an admin.
package wallet

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m3rciful/winbingo/core/logger"
	"github.com/m3rciful/winbingo/core/netutil"
	"github.com/m3rciful/winbingo/internal/keylock"
	"github.com/m3rciful/winbingo/internal/metrics"
)

const (
	readAttempts   = 3
	defaultTimeout = 5 * time.Second
	pendingLimit   = 50
)

// Config carries the ledger policy.
type Config struct {
	AdminID       int64
	MinWithdrawal decimal.Decimal
	SignupBonus   decimal.Decimal
	OpTimeout     time.Duration
	RetryBackoff  time.Duration
	// Methods lists accepted payout methods; empty accepts any.
	Methods []string
}

// Service is the ledger. All balance changes go through it.
type Service struct {
	store Store
	cfg   Config
	locks *keylock.Locker
	now   func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New builds a Service over store.
func New(store Store, cfg Config, opts ...Option) *Service {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultTimeout
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	s := &Service{
		store: store,
		cfg:   cfg,
		locks: keylock.New(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinWithdrawal reports the configured minimum.
func (s *Service) MinWithdrawal() decimal.Decimal { return s.cfg.MinWithdrawal }

// IsAdmin reports whether id may review requests.
func (s *Service) IsAdmin(id int64) bool { return s.cfg.AdminID != 0 && id == s.cfg.AdminID }

// EnsureUser creates the user on first contact and refreshes their profile otherwise.
func (s *Service) EnsureUser(ctx context.Context, p Profile) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var u User
	err := s.retry(ctx, "ensure_user", func(ctx context.Context) error {
		var err error
		u, err = s.store.UpsertUser(ctx, p, s.now())
		return err
	})
	return u, err
}

// Register marks the user registered with phone and credits the sign-up bonus once.
func (s *Service) Register(ctx context.Context, p Profile, phone string) (Registration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	unlock, err := s.lock(ctx, p.ID)
	if err != nil {
		return Registration{}, err
	}
	defer unlock()

	var reg Registration
	err = s.mutate(ctx, "register", func(q Queries) error {
		u, err := q.UpsertUser(ctx, p, s.now())
		if err != nil {
			return err
		}
		changed, err := q.MarkRegistered(ctx, p.ID, phone)
		if err != nil {
			return err
		}
		reg.New = changed
		if changed && s.cfg.SignupBonus.IsPositive() {
			e, err := s.applyDelta(ctx, q, p.ID, ToMinor(s.cfg.SignupBonus), ReasonSignupBonus, "")
			if err != nil {
				return err
			}
			reg.Bonus = &e
		}
		u, _, err = q.User(ctx, u.ID)
		reg.User = u
		return err
	})
	s.observe(ctx, "register", start, err, slog.Int64("user_id", p.ID), slog.Bool("new", reg.New))
	return reg, err
}

// User loads a user by id.
func (s *Service) User(ctx context.Context, id int64) (User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var u User
	err := s.retry(ctx, "user", func(ctx context.Context) error {
		found, ok, err := s.store.User(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}
		u = found
		return nil
	})
	return u, err
}

// UserByUsername resolves a @username, case-insensitively.
func (s *Service) UserByUsername(ctx context.Context, username string) (User, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return User{}, ErrRecipientNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var u User
	err := s.retry(ctx, "user_by_username", func(ctx context.Context) error {
		found, ok, err := s.store.UserByUsername(ctx, username)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRecipientNotFound
		}
		u = found
		return nil
	})
	return u, err
}

// Balance returns the current balance of id.
func (s *Service) Balance(ctx context.Context, id int64) (decimal.Decimal, error) {
	u, err := s.User(ctx, id)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return u.Balance, nil
}

// History returns the newest entries first.
func (s *Service) History(ctx context.Context, id int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var out []Entry
	err := s.retry(ctx, "history", func(ctx context.Context) error {
		var err error
		out, err = s.store.History(ctx, id, limit)
		return err
	})
	return out, err
}

// Pending lists requests awaiting review, oldest first.
func (s *Service) Pending(ctx context.Context, reviewerID int64) ([]Request, error) {
	if !s.IsAdmin(reviewerID) {
		return nil, ErrForbidden
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var out []Request
	err := s.retry(ctx, "pending", func(ctx context.Context) error {
		var err error
		out, err = s.store.PendingRequests(ctx, pendingLimit)
		return err
	})
	return out, err
}

// Request loads a single request.
func (s *Service) Request(ctx context.Context, id int64) (Request, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	var r Request
	err := s.retry(ctx, "request", func(ctx context.Context) error {
		found, ok, err := s.store.Request(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotFound
		}
		r = found
		return nil
	})
	return r, err
}

// Adjust applies a signed delta to the user's balance and records one entry.
// A debit larger than the balance fails with ErrInsufficientBalance.
func (s *Service) Adjust(ctx context.Context, userID int64, delta decimal.Decimal, reason string) (Entry, error) {
	start := time.Now()
	if delta.IsZero() || checkAmount(delta.Abs()) != nil {
		return Entry{}, ErrInvalidAmount
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	unlock, err := s.lock(ctx, userID)
	if err != nil {
		return Entry{}, err
	}
	defer unlock()

	var entry Entry
	err = s.mutate(ctx, "adjust", func(q Queries) error {
		var err error
		entry, err = s.applyDelta(ctx, q, userID, ToMinor(delta), reason, "")
		return err
	})
	s.observe(ctx, "adjust", start, err,
		slog.Int64("user_id", userID),
		slog.String("amount", delta.StringFixed(Scale)),
		slog.String("reason", reason),
	)
	return entry, err
}

// Transfer moves amount from one user to another atomically.
// Locks are taken in ascending id order so opposite transfers cannot deadlock.
func (s *Service) Transfer(ctx context.Context, from, to int64, amount decimal.Decimal) (TransferResult, error) {
	start := time.Now()
	if err := checkAmount(amount); err != nil {
		return TransferResult{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	unlock, err := s.lock(ctx, from, to)
	if err != nil {
		return TransferResult{}, err
	}
	defer unlock()

	var res TransferResult
	minor := ToMinor(amount)
	err = s.mutate(ctx, "transfer", func(q Queries) error {
		receiver, ok, err := q.User(ctx, to)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRecipientNotFound
		}
		if from == to {
			return ErrSelfTransfer
		}
		sender, ok, err := q.User(ctx, from)
		if err != nil {
			return err
		}
		if !ok {
			return ErrUserNotFound
		}
		if ToMinor(sender.Balance) < minor {
			return ErrInsufficientBalance
		}

		res.Debit, err = s.applyDelta(ctx, q, from, -minor, ReasonTransferOut, strconv.FormatInt(to, 10))
		if err != nil {
			return err
		}
		res.Credit, err = s.applyDelta(ctx, q, to, minor, ReasonTransferIn, strconv.FormatInt(from, 10))
		if err != nil {
			return err
		}
		sender.Balance = res.Debit.BalanceAfter
		receiver.Balance = res.Credit.BalanceAfter
		res.Sender, res.Receiver = sender, receiver
		return nil
	})
	s.observe(ctx, "transfer", start, err,
		slog.Int64("user_id", from),
		slog.Int64("counterparty_id", to),
		slog.String("amount", amount.StringFixed(Scale)),
	)
	return res, err
}

// RequestWithdrawal debits the draft amount and records a pending request in
// one transaction. A draft whose key was already used returns the stored
// request with duplicate set and moves no money.
func (s *Service) RequestWithdrawal(ctx context.Context, d WithdrawalDraft) (req Request, duplicate bool, err error) {
	start := time.Now()
	if strings.TrimSpace(d.Key) == "" {
		return Request{}, false, ErrInvalidAmount.withMsg("missing request key")
	}
	if err := checkAmount(d.Amount); err != nil {
		return Request{}, false, err
	}
	if d.Amount.LessThan(s.cfg.MinWithdrawal) {
		return Request{}, false, ErrBelowMinimum.withMsg("minimum withdrawal is %s", s.cfg.MinWithdrawal.StringFixed(Scale))
	}
	if !s.methodAllowed(d.Method) {
		return Request{}, false, ErrUnknownMethod
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	unlock, err := s.lock(ctx, d.UserID)
	if err != nil {
		return Request{}, false, err
	}
	defer unlock()

	err = s.mutate(ctx, "withdraw", func(q Queries) error {
		existing, found, err := q.RequestByKey(ctx, d.Key)
		if err != nil {
			return err
		}
		if found {
			req, duplicate = existing, true
			return nil
		}
		if _, err := s.applyDelta(ctx, q, d.UserID, -ToMinor(d.Amount), ReasonWithdrawal, "key:"+d.Key); err != nil {
			return err
		}
		req, err = q.InsertRequest(ctx, Request{
			UserID:      d.UserID,
			Kind:        KindWithdrawal,
			Amount:      d.Amount,
			Status:      StatusPending,
			Method:      d.Method,
			Phone:       d.Phone,
			AccountName: d.Name,
			Key:         d.Key,
			CreatedAt:   s.now(),
		})
		return err
	})
	s.observe(ctx, "withdraw", start, err,
		slog.Int64("user_id", d.UserID),
		slog.String("amount", d.Amount.StringFixed(Scale)),
		slog.Int64("request_id", req.ID),
		slog.Bool("duplicate", duplicate),
	)
	return req, duplicate, err
}

// SubmitDeposit records a pending deposit claim. The balance changes only on approval.
func (s *Service) SubmitDeposit(ctx context.Context, d DepositDraft) (req Request, duplicate bool, err error) {
	start := time.Now()
	if strings.TrimSpace(d.Key) == "" {
		return Request{}, false, ErrInvalidAmount.withMsg("missing request key")
	}
	if err := checkAmount(d.Amount); err != nil {
		return Request{}, false, err
	}
	if !s.methodAllowed(d.Method) {
		return Request{}, false, ErrUnknownMethod
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	err = s.mutate(ctx, "deposit", func(q Queries) error {
		if _, ok, err := q.User(ctx, d.UserID); err != nil {
			return err
		} else if !ok {
			return ErrUserNotFound
		}
		existing, found, err := q.RequestByKey(ctx, d.Key)
		if err != nil {
			return err
		}
		if found {
			req, duplicate = existing, true
			return nil
		}
		req, err = q.InsertRequest(ctx, Request{
			UserID:        d.UserID,
			Kind:          KindDeposit,
			Amount:        d.Amount,
			Status:        StatusPending,
			Method:        d.Method,
			ReceiptFileID: d.ReceiptFileID,
			ReceiptKind:   d.ReceiptKind,
			Key:           d.Key,
			CreatedAt:     s.now(),
		})
		return err
	})
	s.observe(ctx, "deposit", start, err,
		slog.Int64("user_id", d.UserID),
		slog.String("amount", d.Amount.StringFixed(Scale)),
		slog.Int64("request_id", req.ID),
		slog.Bool("duplicate", duplicate),
	)
	return req, duplicate, err
}

// Review applies an admin decision to a pending request. Approving a deposit
// credits the user; rejecting a withdrawal refunds the held amount. A request
// that is no longer pending fails with ErrAlreadyReviewed.
func (s *Service) Review(ctx context.Context, reviewerID, requestID int64, decision Decision) (Request, error) {
	start := time.Now()
	if !s.IsAdmin(reviewerID) {
		return Request{}, ErrForbidden
	}
	status := StatusApproved
	switch decision {
	case Approve:
	case Reject:
		status = StatusRejected
	default:
		return Request{}, ErrInvalidAmount.withMsg("unknown decision %q", decision)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	current, err := s.Request(ctx, requestID)
	if err != nil {
		return Request{}, err
	}
	unlock, err := s.lock(ctx, current.UserID)
	if err != nil {
		return Request{}, err
	}
	defer unlock()

	var out Request
	err = s.mutate(ctx, "review", func(q Queries) error {
		now := s.now()
		moved, err := q.SetRequestStatus(ctx, requestID, status, reviewerID, now)
		if err != nil {
			return err
		}
		if !moved {
			return ErrAlreadyReviewed
		}
		req, ok, err := q.Request(ctx, requestID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrRequestNotFound
		}
		ref := "request:" + strconv.FormatInt(req.ID, 10)
		switch {
		case req.Kind == KindDeposit && status == StatusApproved:
			_, err = s.applyDelta(ctx, q, req.UserID, ToMinor(req.Amount), ReasonDeposit, ref)
		case req.Kind == KindWithdrawal && status == StatusRejected:
			_, err = s.applyDelta(ctx, q, req.UserID, ToMinor(req.Amount), ReasonWithdrawalRefund, ref)
		}
		if err != nil {
			return err
		}
		out = req
		return nil
	})
	if err == nil {
		metrics.RequestsReviewed.WithLabelValues(string(out.Kind), string(decision)).Inc()
	}
	s.observe(ctx, "review", start, err,
		slog.Int64("request_id", requestID),
		slog.String("request_kind", string(current.Kind)),
		slog.String("decision", string(decision)),
	)
	return out, err
}

func (s *Service) applyDelta(ctx context.Context, q Queries, userID, delta int64, reason, ref string) (Entry, error) {
	bal, ok, err := q.AddBalance(ctx, userID, delta)
	if err != nil {
		return Entry{}, err
	}
	if !ok {
		if _, found, err := q.User(ctx, userID); err != nil {
			return Entry{}, err
		} else if !found {
			return Entry{}, ErrUserNotFound
		}
		return Entry{}, ErrInsufficientBalance
	}
	return q.AppendEntry(ctx, Entry{
		UserID:       userID,
		Amount:       FromMinor(delta),
		BalanceAfter: FromMinor(bal),
		Reason:       reason,
		Ref:          ref,
		CreatedAt:    s.now(),
	})
}

func (s *Service) methodAllowed(method string) bool {
	if len(s.cfg.Methods) == 0 {
		return true
	}
	for _, m := range s.cfg.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func (s *Service) lock(ctx context.Context, ids ...int64) (func(), error) {
	unlock, err := s.locks.Lock(ctx, ids...)
	if err != nil {
		return nil, ErrBusy.wrap(err)
	}
	return unlock, nil
}

// mutate runs fn in a transaction. Deadline and connection failures make the
// commit state unknowable, so they surface as ErrOutcomeUnknown.
func (s *Service) mutate(ctx context.Context, op string, fn func(Queries) error) error {
	err := s.store.Tx(ctx, fn)
	if err == nil || isDomain(err) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || netutil.ConnectionLost(err) {
		metrics.UnknownOutcomes.Inc()
		logger.Error(ctx, logger.CompWallet, "ledger.outcome_unknown",
			slog.String("op", op),
			slog.Bool("reconcile", true),
			slog.String("err", err.Error()),
		)
		return ErrOutcomeUnknown.wrap(err)
	}
	return ErrUnavailable.wrap(err)
}

// retry runs a read with bounded backoff. Domain errors are returned at once.
func (s *Service) retry(ctx context.Context, op string, fn func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		err = fn(ctx)
		if err == nil || isDomain(err) {
			return err
		}
		if attempt == readAttempts || ctx.Err() != nil {
			break
		}
		backoff := s.cfg.RetryBackoff * time.Duration(attempt)
		logger.Warn(ctx, logger.CompWallet, "ledger.retry",
			slog.String("op", op),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("err", err.Error()),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}
	return ErrUnavailable.wrap(err)
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error, attrs ...slog.Attr) {
	took := time.Since(start)
	metrics.LedgerLatency.WithLabelValues(op).Observe(took.Seconds())
	result := outcome(err)
	metrics.LedgerOps.WithLabelValues(op, result).Inc()

	attrs = append(attrs, slog.Duration("duration", took), slog.String("outcome", result))
	if err == nil {
		logger.Info(ctx, logger.CompWallet, "ledger."+op, append(attrs, slog.String("status", "ok"))...)
		return
	}
	attrs = append(attrs,
		slog.String("status", "fail"),
		slog.String("err_kind", KindOf(err).String()),
		slog.String("err", err.Error()),
	)
	if result == "rejected" {
		logger.Info(ctx, logger.CompWallet, "ledger."+op, attrs...)
		return
	}
	logger.Error(ctx, logger.CompWallet, "ledger."+op, attrs...)
}

// outcome separates business rejections from infrastructure failures.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutcomeUnknown):
		return "unknown"
	case IsKind(err, KindValidation), IsKind(err, KindNotFound), IsKind(err, KindConflict), IsKind(err, KindForbidden):
		return "rejected"
	default:
		return "fail"
	}
}
