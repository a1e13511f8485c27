package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/twopc/savings/backend/internal/domain"
)

func TestMemoryStoreSubmissionsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	user, err := domain.NewUser("USR-1", "Jane Doe", "jane@example.com", time.Now())
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"PAY-1", "PAY-2", "PAY-3"} {
		sub, err := domain.NewPaymentSubmission(id, user, 5000,
			domain.PaymentProof{TransactionID: "TXN-" + id}, base.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("NewPaymentSubmission returned error: %v", err)
		}
		if err := s.AppendSubmission(ctx, sub); err != nil {
			t.Fatalf("AppendSubmission returned error: %v", err)
		}
	}

	subs, err := s.ListSubmissionsByUser(ctx, "USR-1")
	if err != nil {
		t.Fatalf("ListSubmissionsByUser returned error: %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(subs))
	}
	if subs[0].ID != "PAY-3" || subs[2].ID != "PAY-1" {
		t.Fatalf("expected newest first ordering, got %s..%s", subs[0].ID, subs[2].ID)
	}
}

func TestMemoryStoreLedgerEntryKeepsTransactionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	activated := time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)
	inv, err := domain.NewInvestment("INV-1", "USR-1", "PAY-1", 15000, domain.CadenceOneTime, activated)
	if err != nil {
		t.Fatalf("NewInvestment returned error: %v", err)
	}
	opening := domain.Transaction{
		ID: "TX-1", InvestmentID: "INV-1", UserID: "USR-1",
		Type: domain.TransactionInvestment, Amount: 15000, Timestamp: activated,
	}
	if err := s.CreateInvestment(ctx, inv, opening); err != nil {
		t.Fatalf("CreateInvestment returned error: %v", err)
	}

	inv.CurrentValue += 300
	inv.InterestEarned += 300
	interest := domain.Transaction{
		ID: "TX-2", InvestmentID: "INV-1", UserID: "USR-1",
		Type: domain.TransactionInterest, Amount: 300, Timestamp: activated.AddDate(0, 1, 0),
	}
	if err := s.ApplyLedgerEntry(ctx, inv, interest); err != nil {
		t.Fatalf("ApplyLedgerEntry returned error: %v", err)
	}

	txs, err := s.ListTransactions(ctx, "INV-1")
	if err != nil {
		t.Fatalf("ListTransactions returned error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Type != domain.TransactionInvestment || txs[1].Type != domain.TransactionInterest {
		t.Fatalf("unexpected transaction order: %s, %s", txs[0].Type, txs[1].Type)
	}
	if got := domain.FoldTransactions(txs); got != inv.CurrentValue {
		t.Fatalf("fold = %d, want %d", got, inv.CurrentValue)
	}
}

func TestMemoryStoreRejectsSecondInvestmentForPayment(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	activated := time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)
	first, err := domain.NewInvestment("INV-1", "USR-1", "PAY-1", 15000, domain.CadenceOneTime, activated)
	if err != nil {
		t.Fatalf("NewInvestment returned error: %v", err)
	}
	opening := domain.Transaction{
		ID: "TX-1", InvestmentID: "INV-1", UserID: "USR-1",
		Type: domain.TransactionInvestment, Amount: 15000, Timestamp: activated,
	}
	if err := s.CreateInvestment(ctx, first, opening); err != nil {
		t.Fatalf("CreateInvestment returned error: %v", err)
	}

	dup, err := domain.NewInvestment("INV-2", "USR-1", "PAY-1", 15000, domain.CadenceOneTime, activated)
	if err != nil {
		t.Fatalf("NewInvestment returned error: %v", err)
	}
	opening.ID = "TX-2"
	opening.InvestmentID = "INV-2"
	if err := s.CreateInvestment(ctx, dup, opening); !errors.Is(err, domain.ErrAlreadyActivated) {
		t.Fatalf("expected ErrAlreadyActivated for duplicate payment, got %v", err)
	}
	if _, err := s.GetInvestment(ctx, "INV-2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("duplicate investment must not be stored, got %v", err)
	}
}

func TestMemoryStoreMissingRecords(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for user, got %v", err)
	}
	if _, err := s.GetInvestment(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for investment, got %v", err)
	}
	if err := s.UpdateSubmissionStatus(ctx, "missing", domain.SubmissionVerified); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for submission update, got %v", err)
	}
	if _, err := s.GetWithdrawalByRequestID(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for withdrawal, got %v", err)
	}
}
