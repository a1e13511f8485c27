package domain

import (
	"strings"
	"time"
)

// Cadence is the contribution style chosen during onboarding.
type Cadence string

const (
	CadenceDaily   Cadence = "daily"
	CadenceMonthly Cadence = "monthly"
	CadenceOneTime Cadence = "one-time"
)

// ValidCadence reports whether c is one of the supported contribution styles.
func ValidCadence(c Cadence) bool {
	switch c {
	case CadenceDaily, CadenceMonthly, CadenceOneTime:
		return true
	}
	return false
}

// GoalSpec is the goal declared during onboarding. It is created once and
// treated as immutable input to every later stage.
//
// Amount is in whole currency units. HorizonMonths is already normalized:
// a "flexible" selection is stored as 12 months with Flexible set, so all
// downstream projection math reads HorizonMonths directly.
type GoalSpec struct {
	Label         string    `json:"label"`
	Amount        int64     `json:"amount"`
	HorizonMonths int       `json:"horizonMonths"`
	Flexible      bool      `json:"flexible"`
	Cadence       Cadence   `json:"cadence"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewGoalSpec validates the cadence and assembles the record. Amount and
// horizon bounds are enforced by the onboarding validator before this is
// called; the constructor only guards structural validity.
func NewGoalSpec(label string, amount int64, horizonMonths int, flexible bool, cadence Cadence, createdAt time.Time) (GoalSpec, error) {
	if amount <= 0 {
		return GoalSpec{}, ErrInvalidAmount
	}
	if horizonMonths <= 0 {
		return GoalSpec{}, ErrInvalidHorizon
	}
	if !ValidCadence(cadence) {
		return GoalSpec{}, ErrInvalidCadence
	}
	return GoalSpec{
		Label:         strings.TrimSpace(label),
		Amount:        amount,
		HorizonMonths: horizonMonths,
		Flexible:      flexible,
		Cadence:       cadence,
		CreatedAt:     createdAt.UTC(),
	}, nil
}
