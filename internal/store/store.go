// Package store defines the persistence contract for the savings ledger and
// provides an in-memory implementation for tests plus a Postgres
// implementation for durable runs.
package store

import (
	"context"

	"github.com/twopc/savings/backend/internal/domain"
)

// Store is the minimal persistence contract required by the services. All
// mutation of investments and their transaction sequences goes through the
// ledger, which is the only caller of the ledger-entry methods.
type Store interface {
	CreateUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (domain.User, error)

	SaveGoal(ctx context.Context, userID string, goal domain.GoalSpec) error
	GetGoal(ctx context.Context, userID string) (domain.GoalSpec, error)

	AppendSubmission(ctx context.Context, sub domain.PaymentSubmission) error
	GetSubmission(ctx context.Context, id string) (domain.PaymentSubmission, error)
	// ListSubmissionsByUser returns a user's submissions newest first.
	ListSubmissionsByUser(ctx context.Context, userID string) ([]domain.PaymentSubmission, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status domain.SubmissionStatus) error

	// CreateInvestment persists a new investment together with its opening
	// transaction as one atomic write.
	CreateInvestment(ctx context.Context, inv domain.Investment, opening domain.Transaction) error
	GetInvestment(ctx context.Context, id string) (domain.Investment, error)
	GetInvestmentByUser(ctx context.Context, userID string) (domain.Investment, error)
	GetInvestmentByPayment(ctx context.Context, paymentID string) (domain.Investment, error)

	// ApplyLedgerEntry persists the updated investment snapshot and appends
	// the transaction as one atomic write.
	ApplyLedgerEntry(ctx context.Context, inv domain.Investment, tx domain.Transaction) error
	// ListTransactions returns an investment's transactions oldest first.
	ListTransactions(ctx context.Context, investmentID string) ([]domain.Transaction, error)

	CreateWithdrawalRequest(ctx context.Context, req domain.WithdrawalRequest) error
	GetWithdrawalByRequestID(ctx context.Context, requestID string) (domain.WithdrawalRequest, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
	Close()
}
