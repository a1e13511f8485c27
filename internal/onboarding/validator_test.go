package onboarding

import (
	"errors"
	"testing"
	"time"

	"github.com/twopc/savings/backend/internal/domain"
)

func TestValidateGoalAmount(t *testing.T) {
	cases := []struct {
		name    string
		amount  int64
		wantErr error
	}{
		{name: "below minimum", amount: 500, wantErr: domain.ErrAmountTooLow},
		{name: "just under minimum", amount: 999, wantErr: domain.ErrAmountTooLow},
		{name: "at minimum", amount: 1000, wantErr: nil},
		{name: "mid range", amount: 5000, wantErr: nil},
		{name: "at maximum", amount: 15000, wantErr: nil},
		{name: "above maximum", amount: 20000, wantErr: domain.ErrAmountTooHigh},
		{name: "zero", amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative", amount: -100, wantErr: domain.ErrInvalidAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateGoalAmount(tc.amount)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("ValidateGoalAmount(%d) = %v, want %v", tc.amount, err, tc.wantErr)
			}
		})
	}
}

func TestResolveHorizon(t *testing.T) {
	cases := []struct {
		selection    string
		wantMonths   int
		wantFlexible bool
	}{
		{selection: "3", wantMonths: 3},
		{selection: "6", wantMonths: 6},
		{selection: "12", wantMonths: 12},
		{selection: "flexible", wantMonths: 12, wantFlexible: true},
		{selection: " Flexible ", wantMonths: 12, wantFlexible: true},
	}

	for _, tc := range cases {
		months, flexible, err := ResolveHorizon(tc.selection)
		if err != nil {
			t.Fatalf("ResolveHorizon(%q) returned error: %v", tc.selection, err)
		}
		if months != tc.wantMonths || flexible != tc.wantFlexible {
			t.Fatalf("ResolveHorizon(%q) = (%d, %v), want (%d, %v)",
				tc.selection, months, flexible, tc.wantMonths, tc.wantFlexible)
		}
	}

	if _, _, err := ResolveHorizon("9"); !errors.Is(err, domain.ErrInvalidHorizon) {
		t.Fatalf("expected ErrInvalidHorizon for unsupported selection, got %v", err)
	}
}

func TestDeriveCadencePlan(t *testing.T) {
	// 5000 over 6 months daily: ceil(5000 / 180) = 28.
	plan, err := DeriveCadencePlan(5000, 6, domain.CadenceDaily)
	if err != nil {
		t.Fatalf("DeriveCadencePlan returned error: %v", err)
	}
	if plan.Installment != 28 {
		t.Fatalf("daily installment = %d, want 28", plan.Installment)
	}

	plan, err = DeriveCadencePlan(5000, 6, domain.CadenceMonthly)
	if err != nil {
		t.Fatalf("DeriveCadencePlan returned error: %v", err)
	}
	if plan.Installment != 834 {
		t.Fatalf("monthly installment = %d, want 834", plan.Installment)
	}

	plan, err = DeriveCadencePlan(5000, 6, domain.CadenceOneTime)
	if err != nil {
		t.Fatalf("DeriveCadencePlan returned error: %v", err)
	}
	if plan.Installment != 5000 {
		t.Fatalf("one-time installment = %d, want 5000", plan.Installment)
	}

	if _, err := DeriveCadencePlan(5000, 6, domain.Cadence("weekly")); !errors.Is(err, domain.ErrInvalidCadence) {
		t.Fatalf("expected ErrInvalidCadence, got %v", err)
	}
}

func TestBuildGoalNormalizesFlexibleHorizon(t *testing.T) {
	now := time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)

	goal, err := BuildGoal("Emergency fund", 5000, "flexible", domain.CadenceOneTime, now)
	if err != nil {
		t.Fatalf("BuildGoal returned error: %v", err)
	}
	if goal.HorizonMonths != FlexibleHorizonMonths {
		t.Fatalf("horizon = %d, want %d", goal.HorizonMonths, FlexibleHorizonMonths)
	}
	if !goal.Flexible {
		t.Fatal("expected flexible flag to be set")
	}

	if _, err := BuildGoal("Too small", 500, "6", domain.CadenceOneTime, now); !errors.Is(err, domain.ErrAmountTooLow) {
		t.Fatalf("expected ErrAmountTooLow, got %v", err)
	}
	if _, err := BuildGoal("Too big", 20000, "6", domain.CadenceOneTime, now); !errors.Is(err, domain.ErrAmountTooHigh) {
		t.Fatalf("expected ErrAmountTooHigh, got %v", err)
	}
}

func TestRecommendIncludesProjectionsAndTarget(t *testing.T) {
	now := time.Date(2025, 6, 17, 10, 0, 0, 0, time.UTC)
	goal, err := BuildGoal("Dream trip", 15000, "6", domain.CadenceOneTime, now)
	if err != nil {
		t.Fatalf("BuildGoal returned error: %v", err)
	}

	rec, err := Recommend(goal)
	if err != nil {
		t.Fatalf("Recommend returned error: %v", err)
	}
	if rec.ExpectedValue != 16800 {
		t.Fatalf("expected value = %d, want 16800", rec.ExpectedValue)
	}
	if len(rec.Projections) != 3 {
		t.Fatalf("expected 3 projections, got %d", len(rec.Projections))
	}
	if rec.Plan.Installment != 15000 {
		t.Fatalf("one-time plan installment = %d, want 15000", rec.Plan.Installment)
	}
}
