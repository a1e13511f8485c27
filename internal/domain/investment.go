package domain

import "time"

// InvestmentStatus marks whether an investment still accrues interest.
type InvestmentStatus string

const (
	InvestmentActive InvestmentStatus = "active"
	InvestmentClosed InvestmentStatus = "closed"
)

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionInvestment TransactionType = "investment"
	TransactionInterest   TransactionType = "interest"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Investment is the authoritative ledger record for one activated payment.
//
// Principal is fixed at activation. CurrentValue is mutated only by the
// ledger's accrual and withdrawal operations and must always equal
// Principal + InterestEarned - Withdrawn, which in turn must equal the fold
// of the investment's transaction sequence.
type Investment struct {
	ID             string           `json:"id"`
	UserID         string           `json:"userId"`
	PaymentID      string           `json:"paymentId"`
	Principal      int64            `json:"principal"`
	CurrentValue   int64            `json:"currentValue"`
	InterestEarned int64            `json:"interestEarned"`
	Withdrawn      int64            `json:"withdrawn"`
	PlanType       Cadence          `json:"planType"`
	Status         InvestmentStatus `json:"status"`
	ActivatedAt    time.Time        `json:"activatedAt"`
	// MonthsAccrued counts the whole months of interest already posted.
	// It is the idempotency guard for accrual: a month is never posted twice.
	MonthsAccrued int       `json:"monthsAccrued"`
	LastAccrualAt time.Time `json:"lastAccrualAt"`
}

// NewInvestment builds an active investment worth exactly its principal.
func NewInvestment(id, userID, paymentID string, principal int64, planType Cadence, activatedAt time.Time) (Investment, error) {
	if principal <= 0 {
		return Investment{}, ErrInvalidAmount
	}
	if planType == "" {
		planType = CadenceOneTime
	}
	return Investment{
		ID:            id,
		UserID:        userID,
		PaymentID:     paymentID,
		Principal:     principal,
		CurrentValue:  principal,
		PlanType:      planType,
		Status:        InvestmentActive,
		ActivatedAt:   activatedAt.UTC(),
		LastAccrualAt: activatedAt.UTC(),
	}, nil
}

// Consistent reports whether the identity invariant between the balance
// fields still holds.
func (inv Investment) Consistent() bool {
	return inv.CurrentValue == inv.Principal+inv.InterestEarned-inv.Withdrawn && inv.CurrentValue >= 0
}

// Transaction is an immutable, append-only ledger entry. Withdrawals carry a
// negative amount so that summing a sequence of transactions reproduces the
// investment's current value.
type Transaction struct {
	ID           string          `json:"id"`
	InvestmentID string          `json:"investmentId"`
	UserID       string          `json:"userId"`
	Type         TransactionType `json:"type"`
	Amount       int64           `json:"amount"`
	Description  string          `json:"description"`
	Timestamp    time.Time       `json:"timestamp"`
}

// FoldTransactions sums a transaction sequence from zero. The result must
// reproduce the owning investment's current value exactly.
func FoldTransactions(txs []Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}
