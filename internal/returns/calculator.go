// Package returns implements the deterministic growth arithmetic: monthly
// compounding, fixed-horizon projections and the single-period interest
// figure shown on the dashboard. All functions are pure.
package returns

import (
	"math"

	"github.com/twopc/savings/backend/internal/domain"
)

// MonthlyRate is the fixed program rate: 2% per whole elapsed month.
const MonthlyRate = 0.02

// GrowthTarget is the flat six-month growth multiplier used for the
// goal-progress target value. It is intentionally distinct from the
// compounding formula.
const GrowthTarget = 1.12

// Horizons is the fixed projection horizon set, in months.
var Horizons = []int{3, 6, 12}

// HorizonProjection is the compounded value and incremental growth at one
// projection horizon.
type HorizonProjection struct {
	Months int   `json:"months"`
	Value  int64 `json:"value"`
	Growth int64 `json:"growth"`
}

// CompoundedValue returns round(principal * (1+MonthlyRate)^months) using
// round half-up. months zero returns the principal unchanged.
func CompoundedValue(principal int64, months int) (int64, error) {
	if principal <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	if months < 0 {
		return 0, domain.ErrInvalidAmount
	}
	if months == 0 {
		return principal, nil
	}
	return roundHalfUp(float64(principal) * math.Pow(1+MonthlyRate, float64(months))), nil
}

// SimpleInterest returns round(principal * MonthlyRate): the flat
// single-period figure used for the first-month interest display. It is not
// a substitute for the compounding formula beyond month one.
func SimpleInterest(principal int64) (int64, error) {
	if principal <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return roundHalfUp(float64(principal) * MonthlyRate), nil
}

// ExpectedValue returns ceil(principal * GrowthTarget), the display target
// a goal grows toward. GrowthTarget is exactly 112/100, so the ceiling is
// computed in integer arithmetic and never drifts with float rounding.
func ExpectedValue(principal int64) (int64, error) {
	if principal <= 0 {
		return 0, domain.ErrInvalidAmount
	}
	return (principal*112 + 99) / 100, nil
}

// Projection computes the compounded value and growth at each horizon. With
// no horizons supplied it uses the fixed Horizons set.
func Projection(principal int64, horizons ...int) ([]HorizonProjection, error) {
	if principal <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if len(horizons) == 0 {
		horizons = Horizons
	}
	out := make([]HorizonProjection, 0, len(horizons))
	for _, months := range horizons {
		value, err := CompoundedValue(principal, months)
		if err != nil {
			return nil, err
		}
		out = append(out, HorizonProjection{
			Months: months,
			Value:  value,
			Growth: value - principal,
		})
	}
	return out, nil
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}
