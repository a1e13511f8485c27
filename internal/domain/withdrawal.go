package domain

import "time"

// WithdrawalStatus tracks an accepted withdrawal request.
type WithdrawalStatus string

const (
	WithdrawalPending   WithdrawalStatus = "pending"
	WithdrawalProcessed WithdrawalStatus = "processed"
	WithdrawalRejected  WithdrawalStatus = "rejected"
)

// WithdrawalRequest is created only after the authorizer accepts a request.
// Once created it is immutable except for status. PreviousBalance and
// NewBalance snapshot the ledger at request time.
type WithdrawalRequest struct {
	ReferenceID     string           `json:"referenceId"`
	RequestID       string           `json:"requestId"`
	UserID          string           `json:"userId"`
	InvestmentID    string           `json:"investmentId"`
	Amount          int64            `json:"amount"`
	PreviousBalance int64            `json:"previousBalance"`
	NewBalance      int64            `json:"newBalance"`
	Status          WithdrawalStatus `json:"status"`
	CreatedAt       time.Time        `json:"createdAt"`
}
