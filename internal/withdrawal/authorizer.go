// Package withdrawal validates and executes withdrawal requests against the
// ledger. Validation is a pure, side-effect-free step; execution is a
// separate call gated on explicit user confirmation, so the confirmation
// boundary is testable independently of any UI.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/ledger"
	"github.com/twopc/savings/backend/internal/notify"
	"github.com/twopc/savings/backend/internal/store"
)

const (
	// MinAmount is the minimum withdrawal.
	MinAmount int64 = 100

	// ReserveBuffer is the balance that must remain after any withdrawal.
	ReserveBuffer int64 = 50
)

// Authorizer runs the received -> validated -> accepted|rejected state
// machine for withdrawal requests.
type Authorizer struct {
	ledger     *ledger.Ledger
	store      store.Store
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	nowFn      func() time.Time
	refFn      func() string

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// New constructs an Authorizer.
func New(l *ledger.Ledger, st store.Store, dispatcher *notify.Dispatcher, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		ledger:     l,
		store:      st,
		dispatcher: dispatcher,
		logger:     logger,
		nowFn:      time.Now,
		refFn:      func() string { return "WD" + ulid.Make().String() },
		userLocks:  make(map[string]*sync.Mutex),
	}
}

// WithClock overrides the time source, for tests.
func (a *Authorizer) WithClock(nowFn func() time.Time) *Authorizer {
	a.nowFn = nowFn
	return a
}

// Validation is the outcome of a successful eligibility check: the balance
// snapshot a confirmation dialog presents to the user.
type Validation struct {
	InvestmentID    string `json:"investmentId"`
	Amount          int64  `json:"amount"`
	PreviousBalance int64  `json:"previousBalance"`
	NewBalance      int64  `json:"newBalance"`
}

// Validate checks a withdrawal request against the current ledger state.
// The checks run in a fixed order so each failure surfaces its own reason:
// positive amount, minimum, balance, reserve buffer. No state changes.
func (a *Authorizer) Validate(ctx context.Context, userID string, amount int64) (Validation, error) {
	if amount <= 0 {
		return Validation{}, domain.ErrInvalidAmount
	}
	if amount < MinAmount {
		return Validation{}, domain.ErrBelowMinimum
	}

	inv, err := a.ledger.InvestmentByUser(ctx, userID)
	if err != nil {
		return Validation{}, err
	}
	if amount > inv.CurrentValue {
		return Validation{}, domain.ErrExceedsBalance
	}
	if amount > inv.CurrentValue-ReserveBuffer {
		return Validation{}, domain.ErrBreachesReserve
	}

	return Validation{
		InvestmentID:    inv.ID,
		Amount:          amount,
		PreviousBalance: inv.CurrentValue,
		NewBalance:      inv.CurrentValue - amount,
	}, nil
}

// ExecuteParams carries an execution request. RequestID is the
// client-supplied idempotency key; Confirmed must be set by the explicit
// user confirmation step.
type ExecuteParams struct {
	UserID    string
	Amount    int64
	RequestID string
	Confirmed bool
}

// ConfirmAndExecute re-validates under the user's serialization lock, asks
// the ledger to record the withdrawal and persists the request record. A
// balance failure at this stage is a lost race: the request is recorded as
// rejected and reported as ExceedsBalance even when an earlier Validate
// passed. Replaying a request id returns the recorded outcome without
// executing again.
func (a *Authorizer) ConfirmAndExecute(ctx context.Context, p ExecuteParams) (domain.WithdrawalRequest, error) {
	if _, err := uuid.Parse(p.RequestID); err != nil {
		return domain.WithdrawalRequest{}, domain.ErrInvalidRequestID
	}
	if !p.Confirmed {
		return domain.WithdrawalRequest{}, domain.ErrNotConfirmed
	}

	mu := a.lockFor(p.UserID)
	mu.Lock()
	defer mu.Unlock()

	if prior, err := a.store.GetWithdrawalByRequestID(ctx, p.RequestID); err == nil {
		if prior.Status == domain.WithdrawalRejected {
			return prior, domain.ErrExceedsBalance
		}
		return prior, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.WithdrawalRequest{}, fmt.Errorf("check request id: %w", err)
	}

	v, err := a.Validate(ctx, p.UserID, p.Amount)
	if err != nil {
		if errors.Is(err, domain.ErrExceedsBalance) || errors.Is(err, domain.ErrBreachesReserve) {
			return a.reject(ctx, p, err)
		}
		return domain.WithdrawalRequest{}, err
	}

	if _, err := a.ledger.RecordWithdrawal(ctx, v.InvestmentID, p.Amount); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			return a.reject(ctx, p, err)
		}
		return domain.WithdrawalRequest{}, err
	}

	req := domain.WithdrawalRequest{
		ReferenceID:     a.refFn(),
		RequestID:       p.RequestID,
		UserID:          p.UserID,
		InvestmentID:    v.InvestmentID,
		Amount:          p.Amount,
		PreviousBalance: v.PreviousBalance,
		NewBalance:      v.NewBalance,
		Status:          domain.WithdrawalProcessed,
		CreatedAt:       a.nowFn().UTC(),
	}
	if err := a.store.CreateWithdrawalRequest(ctx, req); err != nil {
		return domain.WithdrawalRequest{}, fmt.Errorf("persist withdrawal request: %w", err)
	}

	a.notifyRequested(ctx, req)
	a.logger.Info("withdrawal processed",
		"referenceId", req.ReferenceID, "userId", req.UserID, "amount", req.Amount)
	return req, nil
}

// reject records an execution-time loss and reports it as ExceedsBalance,
// distinct from the pure pre-check failure, so the caller can explain the
// discrepancy to the user.
func (a *Authorizer) reject(ctx context.Context, p ExecuteParams, cause error) (domain.WithdrawalRequest, error) {
	inv, err := a.ledger.InvestmentByUser(ctx, p.UserID)
	if err != nil {
		return domain.WithdrawalRequest{}, err
	}

	req := domain.WithdrawalRequest{
		ReferenceID:     a.refFn(),
		RequestID:       p.RequestID,
		UserID:          p.UserID,
		InvestmentID:    inv.ID,
		Amount:          p.Amount,
		PreviousBalance: inv.CurrentValue,
		NewBalance:      inv.CurrentValue,
		Status:          domain.WithdrawalRejected,
		CreatedAt:       a.nowFn().UTC(),
	}
	if err := a.store.CreateWithdrawalRequest(ctx, req); err != nil {
		return domain.WithdrawalRequest{}, fmt.Errorf("persist rejected request: %w", err)
	}

	a.logger.Info("withdrawal rejected at execution",
		"referenceId", req.ReferenceID, "userId", req.UserID, "amount", req.Amount, "cause", cause)
	return req, domain.ErrExceedsBalance
}

func (a *Authorizer) notifyRequested(ctx context.Context, req domain.WithdrawalRequest) {
	user, err := a.store.GetUser(ctx, req.UserID)
	if err != nil {
		a.logger.Warn("notification lookup failed", "userId", req.UserID, "error", err)
	}

	a.dispatcher.Enqueue(notify.Event{
		Type:      notify.EventWithdrawalRequested,
		UserID:    req.UserID,
		UserName:  user.FullName,
		UserEmail: user.Email,
		Payload: map[string]any{
			"referenceId":     req.ReferenceID,
			"amount":          req.Amount,
			"previousBalance": req.PreviousBalance,
			"newBalance":      req.NewBalance,
		},
		CreatedAt: req.CreatedAt,
	})
}

func (a *Authorizer) lockFor(userID string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	mu, ok := a.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		a.userLocks[userID] = mu
	}
	return mu
}
