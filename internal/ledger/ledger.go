// Package ledger owns the authoritative investment record. Every mutation
// of an investment's current value and transaction sequence happens here,
// serialized per investment, with the transaction fold re-checked after
// every write.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/returns"
	"github.com/twopc/savings/backend/internal/store"
)

// lockStripes bounds the per-investment mutex table. Operations on
// different investments proceed in parallel unless they hash to the same
// stripe.
const lockStripes = 64

// Ledger is the single writer for investments and their transactions.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
	nowFn  func() time.Time
	idFn   func() string
	locks  [lockStripes]sync.Mutex
}

// New constructs a Ledger over the given store.
func New(st store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  st,
		logger: logger,
		nowFn:  time.Now,
		idFn:   func() string { return ulid.Make().String() },
	}
}

// WithClock overrides the time source, for tests.
func (l *Ledger) WithClock(nowFn func() time.Time) *Ledger {
	l.nowFn = nowFn
	return l
}

// Summary is the dashboard view of a user's position.
type Summary struct {
	UserID          string                  `json:"userId"`
	InvestmentID    string                  `json:"investmentId"`
	Principal       int64                   `json:"principal"`
	CurrentValue    int64                   `json:"currentValue"`
	InterestEarned  int64                   `json:"interestEarned"`
	NextAccrualDate time.Time               `json:"nextAccrualDate"`
	PlanType        domain.Cadence          `json:"planType"`
	Status          domain.InvestmentStatus `json:"status"`
}

// Activate turns a verified payment submission into an active investment
// worth its principal, appending the opening transaction. It is the only
// creation path for an investment. The whole check-and-create runs under a
// lock keyed by the payment id so one submission can never mint two
// principals, however many retries race.
func (l *Ledger) Activate(ctx context.Context, paymentID string, principal int64) (domain.Investment, error) {
	if principal <= 0 {
		return domain.Investment{}, domain.ErrInvalidAmount
	}

	mu := l.lockFor(paymentID)
	mu.Lock()
	defer mu.Unlock()

	sub, err := l.store.GetSubmission(ctx, paymentID)
	if err != nil {
		return domain.Investment{}, fmt.Errorf("load submission: %w", err)
	}

	if _, err := l.store.GetInvestmentByPayment(ctx, paymentID); err == nil {
		return domain.Investment{}, domain.ErrAlreadyActivated
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.Investment{}, fmt.Errorf("check activation: %w", err)
	}

	planType := domain.CadenceOneTime
	if goal, err := l.store.GetGoal(ctx, sub.UserID); err == nil {
		planType = goal.Cadence
	}

	now := l.nowFn()
	inv, err := domain.NewInvestment(l.idFn(), sub.UserID, paymentID, principal, planType, now)
	if err != nil {
		return domain.Investment{}, err
	}
	opening := domain.Transaction{
		ID:           l.idFn(),
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		Type:         domain.TransactionInvestment,
		Amount:       principal,
		Description:  "Initial Investment",
		Timestamp:    now.UTC(),
	}

	if err := l.store.CreateInvestment(ctx, inv, opening); err != nil {
		return domain.Investment{}, fmt.Errorf("persist investment: %w", err)
	}
	if err := l.store.UpdateSubmissionStatus(ctx, paymentID, domain.SubmissionVerified); err != nil {
		return domain.Investment{}, fmt.Errorf("mark submission verified: %w", err)
	}
	if err := l.verifyFold(ctx, inv); err != nil {
		return domain.Investment{}, err
	}

	l.logger.Info("investment activated",
		"investmentId", inv.ID, "userId", inv.UserID, "principal", principal)
	return inv, nil
}

// AccrueInterest posts one interest transaction per whole month elapsed
// since activation that has not been posted yet. Each month's amount is 2%
// of the running current value, so interest compounds on the prior month's
// post-interest value. Calling it twice within the same elapsed month is a
// no-op.
func (l *Ledger) AccrueInterest(ctx context.Context, investmentID string, asOf time.Time) (domain.Investment, error) {
	mu := l.lockFor(investmentID)
	mu.Lock()
	defer mu.Unlock()

	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	if inv.Status != domain.InvestmentActive {
		return inv, nil
	}

	elapsed := wholeMonthsBetween(inv.ActivatedAt, asOf.UTC())
	for inv.MonthsAccrued < elapsed {
		amount, err := returns.SimpleInterest(inv.CurrentValue)
		if err != nil {
			return domain.Investment{}, err
		}

		inv.MonthsAccrued++
		inv.CurrentValue += amount
		inv.InterestEarned += amount
		inv.LastAccrualAt = addMonthsClamped(inv.ActivatedAt, inv.MonthsAccrued)

		entry := domain.Transaction{
			ID:           l.idFn(),
			InvestmentID: inv.ID,
			UserID:       inv.UserID,
			Type:         domain.TransactionInterest,
			Amount:       amount,
			Description:  "Monthly Interest Update",
			Timestamp:    inv.LastAccrualAt,
		}
		if err := l.store.ApplyLedgerEntry(ctx, inv, entry); err != nil {
			return domain.Investment{}, fmt.Errorf("persist accrual: %w", err)
		}

		l.logger.Info("interest accrued",
			"investmentId", inv.ID, "month", inv.MonthsAccrued, "amount", amount, "currentValue", inv.CurrentValue)
	}

	if err := l.verifyFold(ctx, inv); err != nil {
		return domain.Investment{}, err
	}
	return inv, nil
}

// CurrentValue returns the ledger's current value for an investment.
func (l *Ledger) CurrentValue(ctx context.Context, investmentID string) (int64, error) {
	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return 0, err
	}
	return inv.CurrentValue, nil
}

// RecordWithdrawal appends a negative withdrawal transaction and decreases
// the current value. The sufficiency re-check here is the final guard: the
// ledger never trusts the caller's prior validation.
func (l *Ledger) RecordWithdrawal(ctx context.Context, investmentID string, amount int64) (domain.Investment, error) {
	if amount <= 0 {
		return domain.Investment{}, domain.ErrInvalidAmount
	}

	mu := l.lockFor(investmentID)
	mu.Lock()
	defer mu.Unlock()

	inv, err := l.store.GetInvestment(ctx, investmentID)
	if err != nil {
		return domain.Investment{}, err
	}
	if amount > inv.CurrentValue {
		return domain.Investment{}, domain.ErrInsufficientFunds
	}

	inv.CurrentValue -= amount
	inv.Withdrawn += amount

	entry := domain.Transaction{
		ID:           l.idFn(),
		InvestmentID: inv.ID,
		UserID:       inv.UserID,
		Type:         domain.TransactionWithdrawal,
		Amount:       -amount,
		Description:  "Withdrawal",
		Timestamp:    l.nowFn().UTC(),
	}
	if err := l.store.ApplyLedgerEntry(ctx, inv, entry); err != nil {
		return domain.Investment{}, fmt.Errorf("persist withdrawal: %w", err)
	}
	if err := l.verifyFold(ctx, inv); err != nil {
		return domain.Investment{}, err
	}

	l.logger.Info("withdrawal recorded",
		"investmentId", inv.ID, "amount", amount, "currentValue", inv.CurrentValue)
	return inv, nil
}

// Summary builds the dashboard view for a user's investment.
func (l *Ledger) Summary(ctx context.Context, userID string) (Summary, error) {
	inv, err := l.store.GetInvestmentByUser(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		UserID:          inv.UserID,
		InvestmentID:    inv.ID,
		Principal:       inv.Principal,
		CurrentValue:    inv.CurrentValue,
		InterestEarned:  inv.InterestEarned,
		NextAccrualDate: addMonthsClamped(inv.ActivatedAt, inv.MonthsAccrued+1),
		PlanType:        inv.PlanType,
		Status:          inv.Status,
	}, nil
}

// TransactionHistory returns a user's ledger entries oldest first,
// replayable for auditing.
func (l *Ledger) TransactionHistory(ctx context.Context, userID string) ([]domain.Transaction, error) {
	inv, err := l.store.GetInvestmentByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, inv.ID)
}

// InvestmentByUser exposes the current investment snapshot for a user.
func (l *Ledger) InvestmentByUser(ctx context.Context, userID string) (domain.Investment, error) {
	return l.store.GetInvestmentByUser(ctx, userID)
}

// verifyFold re-derives the current value from the transaction sequence.
// A divergence is a broken invariant, reported as an internal error and
// never corrected silently.
func (l *Ledger) verifyFold(ctx context.Context, inv domain.Investment) error {
	txs, err := l.store.ListTransactions(ctx, inv.ID)
	if err != nil {
		return fmt.Errorf("load transactions for fold check: %w", err)
	}
	folded := domain.FoldTransactions(txs)
	if folded != inv.CurrentValue || !inv.Consistent() {
		l.logger.Error("ledger fold mismatch",
			"investmentId", inv.ID,
			"currentValue", inv.CurrentValue,
			"folded", folded,
			"principal", inv.Principal,
			"interestEarned", inv.InterestEarned,
			"withdrawn", inv.Withdrawn,
		)
		return fmt.Errorf("investment %s: %w", inv.ID, domain.ErrLedgerInconsistent)
	}
	return nil
}

func (l *Ledger) lockFor(investmentID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(investmentID))
	return &l.locks[h.Sum32()%lockStripes]
}

// wholeMonthsBetween counts full calendar months from a to b, never
// negative. The anniversary day must be reached for a month to count; in a
// month too short to hold it, the anniversary clamps to the month's last
// day, so a Jan 31 start completes its first month on Feb 28/29.
func wholeMonthsBetween(a, b time.Time) int {
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	anniversary := a.Day()
	if last := daysInMonth(b.Year(), b.Month()); anniversary > last {
		anniversary = last
	}
	if b.Day() < anniversary {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// addMonthsClamped advances t by whole months, clamping to the last day of
// the target month instead of letting the date normalize past it. Accrual
// timestamps and the next-accrual date use the same convention as
// wholeMonthsBetween.
func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := t.Day()
	if last := daysInMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	hour, minute, sec := t.Clock()
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
