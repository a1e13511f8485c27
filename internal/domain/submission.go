package domain

import "time"

// SubmissionStatus tracks a payment claim through external verification.
type SubmissionStatus string

const (
	SubmissionSubmitted SubmissionStatus = "submitted"
	SubmissionVerified  SubmissionStatus = "verified"
	SubmissionRejected  SubmissionStatus = "rejected"
)

// PaymentProof carries the proof-of-payment artifact references. At least
// one of the two fields must be present; both may be.
type PaymentProof struct {
	ImageRef      string `json:"imageRef,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
}

// Present reports whether any proof artifact was supplied.
func (p PaymentProof) Present() bool {
	return p.ImageRef != "" || p.TransactionID != ""
}

// PaymentSubmission records a user's claim of payment. Status transitions
// happen only through external verification, never by program logic alone.
type PaymentSubmission struct {
	ID          string           `json:"id"`
	UserID      string           `json:"userId"`
	Email       string           `json:"email"`
	Amount      int64            `json:"amount"`
	Proof       PaymentProof     `json:"proof"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// NewPaymentSubmission enforces the submission invariants at creation time.
func NewPaymentSubmission(id string, user User, amount int64, proof PaymentProof, submittedAt time.Time) (PaymentSubmission, error) {
	if amount <= 0 {
		return PaymentSubmission{}, ErrInvalidAmount
	}
	if !user.HasContact() {
		return PaymentSubmission{}, ErrMissingContact
	}
	if !proof.Present() {
		return PaymentSubmission{}, ErrMissingProof
	}
	return PaymentSubmission{
		ID:          id,
		UserID:      user.ID,
		Email:       user.Email,
		Amount:      amount,
		Proof:       proof,
		Status:      SubmissionSubmitted,
		SubmittedAt: submittedAt.UTC(),
	}, nil
}
