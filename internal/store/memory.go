package store

import (
	"context"
	"sort"
	"sync"

	"github.com/twopc/savings/backend/internal/domain"
)

// MemoryStore is a mutex-guarded in-memory Store used for unit tests and
// local runs without a database. All returned records are copies so callers
// can never reach internal state directly.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]domain.User
	goals        map[string]domain.GoalSpec
	submissions  map[string]domain.PaymentSubmission
	subOrder     []string
	investments  map[string]domain.Investment
	transactions map[string][]domain.Transaction
	withdrawals  map[string]domain.WithdrawalRequest
}

// NewMemoryStore instantiates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]domain.User),
		goals:        make(map[string]domain.GoalSpec),
		submissions:  make(map[string]domain.PaymentSubmission),
		investments:  make(map[string]domain.Investment),
		transactions: make(map[string][]domain.Transaction),
		withdrawals:  make(map[string]domain.WithdrawalRequest),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return user, nil
}

func (m *MemoryStore) SaveGoal(_ context.Context, userID string, goal domain.GoalSpec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.goals[userID] = goal
	return nil
}

func (m *MemoryStore) GetGoal(_ context.Context, userID string) (domain.GoalSpec, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	goal, ok := m.goals[userID]
	if !ok {
		return domain.GoalSpec{}, domain.ErrNotFound
	}
	return goal, nil
}

func (m *MemoryStore) AppendSubmission(_ context.Context, sub domain.PaymentSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.submissions[sub.ID]; !exists {
		m.subOrder = append(m.subOrder, sub.ID)
	}
	m.submissions[sub.ID] = sub
	return nil
}

func (m *MemoryStore) GetSubmission(_ context.Context, id string) (domain.PaymentSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return domain.PaymentSubmission{}, domain.ErrNotFound
	}
	return sub, nil
}

func (m *MemoryStore) ListSubmissionsByUser(_ context.Context, userID string) ([]domain.PaymentSubmission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.PaymentSubmission
	for _, id := range m.subOrder {
		if sub := m.submissions[id]; sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *MemoryStore) UpdateSubmissionStatus(_ context.Context, id string, status domain.SubmissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return domain.ErrNotFound
	}
	sub.Status = status
	m.submissions[id] = sub
	return nil
}

func (m *MemoryStore) CreateInvestment(_ context.Context, inv domain.Investment, opening domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// One investment per payment submission, matching the durable schema's
	// uniqueness constraint.
	for _, existing := range m.investments {
		if existing.PaymentID == inv.PaymentID {
			return domain.ErrAlreadyActivated
		}
	}
	m.investments[inv.ID] = inv
	m.transactions[inv.ID] = append(m.transactions[inv.ID], opening)
	return nil
}

func (m *MemoryStore) GetInvestment(_ context.Context, id string) (domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.investments[id]
	if !ok {
		return domain.Investment{}, domain.ErrNotFound
	}
	return inv, nil
}

func (m *MemoryStore) GetInvestmentByUser(_ context.Context, userID string) (domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.investments {
		if inv.UserID == userID {
			return inv, nil
		}
	}
	return domain.Investment{}, domain.ErrNotFound
}

func (m *MemoryStore) GetInvestmentByPayment(_ context.Context, paymentID string) (domain.Investment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, inv := range m.investments {
		if inv.PaymentID == paymentID {
			return inv, nil
		}
	}
	return domain.Investment{}, domain.ErrNotFound
}

func (m *MemoryStore) ApplyLedgerEntry(_ context.Context, inv domain.Investment, tx domain.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.investments[inv.ID]; !ok {
		return domain.ErrNotFound
	}
	m.investments[inv.ID] = inv
	m.transactions[inv.ID] = append(m.transactions[inv.ID], tx)
	return nil
}

func (m *MemoryStore) ListTransactions(_ context.Context, investmentID string) ([]domain.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	txs := m.transactions[investmentID]
	out := make([]domain.Transaction, len(txs))
	copy(out, txs)
	return out, nil
}

func (m *MemoryStore) CreateWithdrawalRequest(_ context.Context, req domain.WithdrawalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.withdrawals[req.RequestID] = req
	return nil
}

func (m *MemoryStore) GetWithdrawalByRequestID(_ context.Context, requestID string) (domain.WithdrawalRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.withdrawals[requestID]
	if !ok {
		return domain.WithdrawalRequest{}, domain.ErrNotFound
	}
	return req, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) Close() {}
