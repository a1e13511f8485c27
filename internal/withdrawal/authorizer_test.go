package withdrawal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/ledger"
	"github.com/twopc/savings/backend/internal/notify"
	"github.com/twopc/savings/backend/internal/store"
)

var activatedAt = time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)

type captureNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (c *captureNotifier) Notify(_ context.Context, ev notify.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *captureNotifier) all() []notify.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]notify.Event, len(c.events))
	copy(out, c.events)
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAuthorizer seeds a user with an activated investment accrued one
// month: principal 15000, current value 15300.
func newTestAuthorizer(t *testing.T) (*Authorizer, *ledger.Ledger, *captureNotifier) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()

	user, err := domain.NewUser("USR-1", "Jane Doe", "jane@example.com", activatedAt)
	if err != nil {
		t.Fatalf("NewUser returned error: %v", err)
	}
	if err := st.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser returned error: %v", err)
	}
	sub, err := domain.NewPaymentSubmission("PAY-1", user, 15000,
		domain.PaymentProof{TransactionID: "TXN-1"}, activatedAt)
	if err != nil {
		t.Fatalf("NewPaymentSubmission returned error: %v", err)
	}
	if err := st.AppendSubmission(ctx, sub); err != nil {
		t.Fatalf("AppendSubmission returned error: %v", err)
	}

	l := ledger.New(st, discardLogger()).WithClock(func() time.Time { return activatedAt })
	inv, err := l.Activate(ctx, "PAY-1", 15000)
	if err != nil {
		t.Fatalf("Activate returned error: %v", err)
	}
	if _, err := l.AccrueInterest(ctx, inv.ID, activatedAt.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("AccrueInterest returned error: %v", err)
	}

	sink := &captureNotifier{}
	dispatcher := notify.NewDispatcher(sink, discardLogger(), notify.DispatcherConfig{})
	dispatcher.Start()
	t.Cleanup(dispatcher.Close)

	a := New(l, st, dispatcher, discardLogger()).
		WithClock(func() time.Time { return activatedAt.AddDate(0, 1, 1) })
	return a, l, sink
}

func TestValidateSequence(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuthorizer(t)

	cases := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{name: "zero amount", amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", amount: -10, wantErr: domain.ErrInvalidAmount},
		{name: "below minimum", amount: 99, wantErr: domain.ErrBelowMinimum},
		{name: "exceeds balance", amount: 15301, wantErr: domain.ErrExceedsBalance},
		{name: "breaches reserve", amount: 15260, wantErr: domain.ErrBreachesReserve},
		{name: "at reserve boundary", amount: 15250, wantErr: nil},
		{name: "minimum allowed", amount: 100, wantErr: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Validate(ctx, "USR-1", tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Validate(%d) = %v, want %v", tc.amount, err, tc.wantErr)
			}
		})
	}
}

func TestValidateSnapshotsBalances(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuthorizer(t)

	v, err := a.Validate(ctx, "USR-1", 15250)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if v.PreviousBalance != 15300 || v.NewBalance != 50 {
		t.Fatalf("snapshot = %d -> %d, want 15300 -> 50", v.PreviousBalance, v.NewBalance)
	}
}

func TestConfirmAndExecuteHappyPath(t *testing.T) {
	ctx := context.Background()
	a, l, sink := newTestAuthorizer(t)

	req, err := a.ConfirmAndExecute(ctx, ExecuteParams{
		UserID:    "USR-1",
		Amount:    15250,
		RequestID: uuid.NewString(),
		Confirmed: true,
	})
	if err != nil {
		t.Fatalf("ConfirmAndExecute returned error: %v", err)
	}
	if req.Status != domain.WithdrawalProcessed {
		t.Fatalf("status = %s, want processed", req.Status)
	}
	if req.PreviousBalance != 15300 || req.NewBalance != 50 {
		t.Fatalf("snapshot = %d -> %d, want 15300 -> 50", req.PreviousBalance, req.NewBalance)
	}
	if len(req.ReferenceID) < 3 || req.ReferenceID[:2] != "WD" {
		t.Fatalf("reference id %q lacks WD prefix", req.ReferenceID)
	}

	inv, err := l.InvestmentByUser(ctx, "USR-1")
	if err != nil {
		t.Fatalf("InvestmentByUser returned error: %v", err)
	}
	if inv.CurrentValue != 50 {
		t.Fatalf("current value = %d, want 50", inv.CurrentValue)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sink.all()) == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	events := sink.all()
	if len(events) != 1 || events[0].Type != notify.EventWithdrawalRequested {
		t.Fatalf("expected one withdrawal_requested event, got %+v", events)
	}
	if events[0].Payload["previousBalance"] != int64(15300) || events[0].Payload["newBalance"] != int64(50) {
		t.Fatalf("event snapshot mismatch: %+v", events[0].Payload)
	}
}

func TestConfirmAndExecuteRequiresConfirmationAndRequestID(t *testing.T) {
	ctx := context.Background()
	a, _, _ := newTestAuthorizer(t)

	_, err := a.ConfirmAndExecute(ctx, ExecuteParams{
		UserID: "USR-1", Amount: 200, RequestID: "not-a-uuid", Confirmed: true,
	})
	if !errors.Is(err, domain.ErrInvalidRequestID) {
		t.Fatalf("expected ErrInvalidRequestID, got %v", err)
	}

	_, err = a.ConfirmAndExecute(ctx, ExecuteParams{
		UserID: "USR-1", Amount: 200, RequestID: uuid.NewString(), Confirmed: false,
	})
	if !errors.Is(err, domain.ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}
}

func TestConfirmAndExecuteIsIdempotentPerRequestID(t *testing.T) {
	ctx := context.Background()
	a, l, _ := newTestAuthorizer(t)

	requestID := uuid.NewString()
	params := ExecuteParams{UserID: "USR-1", Amount: 1000, RequestID: requestID, Confirmed: true}

	first, err := a.ConfirmAndExecute(ctx, params)
	if err != nil {
		t.Fatalf("first execution returned error: %v", err)
	}
	replay, err := a.ConfirmAndExecute(ctx, params)
	if err != nil {
		t.Fatalf("replayed execution returned error: %v", err)
	}
	if replay.ReferenceID != first.ReferenceID {
		t.Fatalf("replay returned a different record: %q vs %q", replay.ReferenceID, first.ReferenceID)
	}

	inv, err := l.InvestmentByUser(ctx, "USR-1")
	if err != nil {
		t.Fatalf("InvestmentByUser returned error: %v", err)
	}
	if inv.CurrentValue != 14300 {
		t.Fatalf("current value = %d, want 14300 (single withdrawal)", inv.CurrentValue)
	}
}

func TestConcurrentExecutionsNeverDoubleSpend(t *testing.T) {
	ctx := context.Background()
	a, l, _ := newTestAuthorizer(t)

	// Each request is individually valid against the starting 15300, but
	// together they exceed it.
	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = a.ConfirmAndExecute(ctx, ExecuteParams{
				UserID:    "USR-1",
				Amount:    10000,
				RequestID: uuid.NewString(),
				Confirmed: true,
			})
		}(i)
	}
	wg.Wait()

	var ok, exceeds int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrExceedsBalance):
			exceeds++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || exceeds != 1 {
		t.Fatalf("expected one success and one exceeds-balance, got %d/%d", ok, exceeds)
	}

	inv, err := l.InvestmentByUser(ctx, "USR-1")
	if err != nil {
		t.Fatalf("InvestmentByUser returned error: %v", err)
	}
	if inv.CurrentValue != 5300 {
		t.Fatalf("current value = %d, want 5300", inv.CurrentValue)
	}
}

func TestExecutionTimeLossIsRecordedAsRejected(t *testing.T) {
	ctx := context.Background()
	a, l, _ := newTestAuthorizer(t)

	// A pre-check passes for 15250 while the balance is 15300.
	if _, err := a.Validate(ctx, "USR-1", 15250); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	// A competing withdrawal lands before execution.
	inv, err := l.InvestmentByUser(ctx, "USR-1")
	if err != nil {
		t.Fatalf("InvestmentByUser returned error: %v", err)
	}
	if _, err := l.RecordWithdrawal(ctx, inv.ID, 10000); err != nil {
		t.Fatalf("RecordWithdrawal returned error: %v", err)
	}

	requestID := uuid.NewString()
	req, err := a.ConfirmAndExecute(ctx, ExecuteParams{
		UserID: "USR-1", Amount: 15250, RequestID: requestID, Confirmed: true,
	})
	if !errors.Is(err, domain.ErrExceedsBalance) {
		t.Fatalf("expected ErrExceedsBalance at execution, got %v", err)
	}
	if req.Status != domain.WithdrawalRejected {
		t.Fatalf("status = %s, want rejected", req.Status)
	}

	// Replaying the rejected request id reports the same outcome.
	replay, err := a.ConfirmAndExecute(ctx, ExecuteParams{
		UserID: "USR-1", Amount: 15250, RequestID: requestID, Confirmed: true,
	})
	if !errors.Is(err, domain.ErrExceedsBalance) {
		t.Fatalf("expected ErrExceedsBalance on replay, got %v", err)
	}
	if replay.ReferenceID != req.ReferenceID {
		t.Fatalf("replay returned a different record")
	}
}
