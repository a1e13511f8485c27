package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/twopc/savings/backend/internal/config"
	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/ledger"
	"github.com/twopc/savings/backend/internal/notify"
	"github.com/twopc/savings/backend/internal/onboarding"
	"github.com/twopc/savings/backend/internal/payments"
	"github.com/twopc/savings/backend/internal/store"
)

// seed walks one demo user through the full lifecycle: registration, goal,
// payment submission, activation and optional backdated interest accrual.
func main() {
	var (
		userID   = flag.String("user-id", "USR-DEMO", "id of the demo user")
		fullName = flag.String("name", "Demo Saver", "full name of the demo user")
		email    = flag.String("email", "demo@example.com", "contact email of the demo user")
		label    = flag.String("goal", "Emergency Fund", "goal label")
		amount   = flag.Int64("amount", 15000, "goal and payment amount in whole currency units")
		horizon  = flag.String("horizon", "12", "savings horizon: 3, 6, 12 or flexible")
		cadence  = flag.String("cadence", "one-time", "contribution cadence: daily, monthly or one-time")
		months   = flag.Int("accrue-months", 0, "backdate activation and accrue this many months of interest")
	)
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	st, err := buildStore(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	dispatcher := notify.NewDispatcher(notify.LogNotifier{Logger: logger}, logger, notify.DispatcherConfig{})
	dispatcher.Start()
	defer dispatcher.Close()

	activatedAt := time.Now().UTC().AddDate(0, -*months, 0)
	ledgerSvc := ledger.New(st, logger).WithClock(func() time.Time { return activatedAt })
	tracker := payments.NewTracker(st, nil, dispatcher, logger).
		WithClock(func() time.Time { return activatedAt })

	user, err := domain.NewUser(*userID, *fullName, *email, activatedAt)
	if err != nil {
		fail("build user", err)
	}
	if err := st.CreateUser(ctx, user); err != nil {
		fail("create user", err)
	}

	goal, err := onboarding.BuildGoal(*label, *amount, *horizon, domain.Cadence(*cadence), activatedAt)
	if err != nil {
		fail("build goal", err)
	}
	rec, err := onboarding.Recommend(goal)
	if err != nil {
		fail("derive recommendation", err)
	}
	if err := st.SaveGoal(ctx, user.ID, goal); err != nil {
		fail("save goal", err)
	}

	sub, err := tracker.Submit(ctx, user.ID, *amount, payments.ProofInput{
		TransactionID: fmt.Sprintf("SEED-%d", time.Now().Unix()),
	})
	if err != nil {
		fail("submit payment", err)
	}

	inv, err := ledgerSvc.Activate(ctx, sub.ID, *amount)
	if err != nil {
		fail("activate investment", err)
	}
	if *months > 0 {
		inv, err = ledgerSvc.AccrueInterest(ctx, inv.ID, time.Now().UTC())
		if err != nil {
			fail("accrue interest", err)
		}
	}

	out := map[string]any{
		"user":           user,
		"recommendation": rec,
		"submission":     sub,
		"investment":     inv,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fail("write output", err)
	}
}

func buildStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
