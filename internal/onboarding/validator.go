// Package onboarding validates declared savings goals against the program
// bounds and derives the recommended contribution plan. It emits an
// immutable goal specification and has no side effects.
package onboarding

import (
	"strings"
	"time"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/returns"
)

const (
	// MinGoalAmount and MaxGoalAmount bound a custom goal amount,
	// inclusive, in whole currency units.
	MinGoalAmount int64 = 1000
	MaxGoalAmount int64 = 15000

	// FlexibleHorizonMonths is what a "flexible" horizon normalizes to for
	// projection and cadence math. It is not a stop on interest accrual.
	FlexibleHorizonMonths = 12

	// daysPerMonth is the contribution-plan convention for daily cadences.
	daysPerMonth = 30
)

// HorizonFlexible is the non-numeric horizon selection.
const HorizonFlexible = "flexible"

// ValidateGoalAmount checks a goal amount against the program bounds.
func ValidateGoalAmount(amount int64) error {
	if amount <= 0 {
		return domain.ErrInvalidAmount
	}
	if amount < MinGoalAmount {
		return domain.ErrAmountTooLow
	}
	if amount > MaxGoalAmount {
		return domain.ErrAmountTooHigh
	}
	return nil
}

// ResolveHorizon maps a horizon selection to whole months. Fixed numeric
// selections pass through unchanged; "flexible" normalizes to
// FlexibleHorizonMonths.
func ResolveHorizon(selection string) (months int, flexible bool, err error) {
	switch strings.ToLower(strings.TrimSpace(selection)) {
	case "3":
		return 3, false, nil
	case "6":
		return 6, false, nil
	case "12":
		return 12, false, nil
	case HorizonFlexible:
		return FlexibleHorizonMonths, true, nil
	}
	return 0, false, domain.ErrInvalidHorizon
}

// CadencePlan is the contribution schedule derived for a goal. Installment
// is the per-period amount: per day for daily, per month for monthly, the
// full amount for one-time.
type CadencePlan struct {
	Cadence       domain.Cadence `json:"cadence"`
	HorizonMonths int            `json:"horizonMonths"`
	Installment   int64          `json:"installment"`
}

// DeriveCadencePlan computes the installment for the chosen cadence,
// rounding partial installments up so the goal is always reached within the
// horizon.
func DeriveCadencePlan(amount int64, horizonMonths int, cadence domain.Cadence) (CadencePlan, error) {
	if amount <= 0 {
		return CadencePlan{}, domain.ErrInvalidAmount
	}
	if horizonMonths <= 0 {
		return CadencePlan{}, domain.ErrInvalidHorizon
	}

	plan := CadencePlan{Cadence: cadence, HorizonMonths: horizonMonths}
	switch cadence {
	case domain.CadenceDaily:
		plan.Installment = ceilDiv(amount, int64(horizonMonths)*daysPerMonth)
	case domain.CadenceMonthly:
		plan.Installment = ceilDiv(amount, int64(horizonMonths))
	case domain.CadenceOneTime:
		plan.Installment = amount
	default:
		return CadencePlan{}, domain.ErrInvalidCadence
	}
	return plan, nil
}

// Recommendation is the full onboarding outcome: the goal specification,
// its contribution plan and the growth projections shown to the user.
type Recommendation struct {
	Goal          domain.GoalSpec             `json:"goal"`
	Plan          CadencePlan                 `json:"plan"`
	Projections   []returns.HorizonProjection `json:"projections"`
	ExpectedValue int64                       `json:"expectedValue"`
}

// BuildGoal validates every onboarding input and emits the goal
// specification.
func BuildGoal(label string, amount int64, horizonSelection string, cadence domain.Cadence, now time.Time) (domain.GoalSpec, error) {
	if err := ValidateGoalAmount(amount); err != nil {
		return domain.GoalSpec{}, err
	}
	months, flexible, err := ResolveHorizon(horizonSelection)
	if err != nil {
		return domain.GoalSpec{}, err
	}
	return domain.NewGoalSpec(label, amount, months, flexible, cadence, now)
}

// Recommend derives the contribution plan and projections for a validated
// goal.
func Recommend(goal domain.GoalSpec) (Recommendation, error) {
	plan, err := DeriveCadencePlan(goal.Amount, goal.HorizonMonths, goal.Cadence)
	if err != nil {
		return Recommendation{}, err
	}
	projections, err := returns.Projection(goal.Amount)
	if err != nil {
		return Recommendation{}, err
	}
	expected, err := returns.ExpectedValue(goal.Amount)
	if err != nil {
		return Recommendation{}, err
	}
	return Recommendation{
		Goal:          goal,
		Plan:          plan,
		Projections:   projections,
		ExpectedValue: expected,
	}, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
