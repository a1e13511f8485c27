package domain

import "errors"

// Input validation errors are reported directly to the caller and require a
// corrected request; they are never retried.
var (
	// ErrInvalidAmount indicates an amount that is missing, non-numeric,
	// zero or negative.
	ErrInvalidAmount = errors.New("amount must be a positive number")

	// ErrAmountTooLow indicates a goal amount below the program minimum.
	ErrAmountTooLow = errors.New("goal amount is below the program minimum")

	// ErrAmountTooHigh indicates a goal amount above the program maximum.
	ErrAmountTooHigh = errors.New("goal amount is above the program maximum")

	// ErrInvalidHorizon indicates a horizon selection outside the fixed set.
	ErrInvalidHorizon = errors.New("horizon must be 3, 6, 12 or flexible")

	// ErrInvalidCadence indicates an unsupported contribution cadence.
	ErrInvalidCadence = errors.New("cadence must be daily, monthly or one-time")

	// ErrMissingProof indicates a payment submission without a screenshot
	// reference or a transaction identifier.
	ErrMissingProof = errors.New("payment proof is required")

	// ErrMissingContact indicates a submitting user without a contact email.
	ErrMissingContact = errors.New("contact email is required")

	// ErrInvalidProofType indicates a proof upload that is not an image.
	ErrInvalidProofType = errors.New("proof must be an image")

	// ErrProofTooLarge indicates a proof upload above the size ceiling.
	ErrProofTooLarge = errors.New("proof image exceeds the size limit")

	// ErrBelowMinimum indicates a withdrawal under the minimum amount.
	ErrBelowMinimum = errors.New("withdrawal is below the minimum amount")

	// ErrExceedsBalance indicates a withdrawal above the current value.
	ErrExceedsBalance = errors.New("withdrawal exceeds the available balance")

	// ErrBreachesReserve indicates a withdrawal that would leave less than
	// the mandatory reserve buffer in the account.
	ErrBreachesReserve = errors.New("withdrawal breaches the reserve buffer")

	// ErrNotConfirmed indicates a withdrawal execution attempted without the
	// explicit user confirmation step.
	ErrNotConfirmed = errors.New("withdrawal requires explicit confirmation")

	// ErrInvalidRequestID indicates a malformed client idempotency key.
	ErrInvalidRequestID = errors.New("request id must be a valid UUID")
)

// Consistency errors indicate a broken invariant. They are logged and
// surfaced opaquely, never silently corrected.
var (
	// ErrAlreadyActivated indicates a second activation attempt for the
	// same payment submission.
	ErrAlreadyActivated = errors.New("payment submission already activated")

	// ErrInsufficientFunds is the ledger's final guard against a withdrawal
	// larger than the current value. Callers that already validated must
	// treat it as a lost race.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrLedgerInconsistent indicates the transaction fold no longer
	// reproduces the recorded current value.
	ErrLedgerInconsistent = errors.New("ledger transaction fold mismatch")
)

// ErrNotFound indicates a referenced record does not exist.
var ErrNotFound = errors.New("record not found")
