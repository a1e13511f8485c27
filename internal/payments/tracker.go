// Package payments records a user's claim of payment and hands it to the
// external verification flow. It never mutates an investment and never
// auto-verifies: verification is a human act that later triggers activation
// through the ledger.
package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/notify"
	"github.com/twopc/savings/backend/internal/store"
)

// MaxProofImageBytes is the size ceiling for a proof screenshot.
const MaxProofImageBytes = 10 << 20

// BlobStore is the external blob-storage collaborator: it accepts an image
// and returns an opaque reference.
type BlobStore interface {
	Put(ctx context.Context, contentType string, data []byte) (string, error)
}

// ProofInput is what the user supplies as proof of payment. At least one of
// Image and TransactionID must be present.
type ProofInput struct {
	Image         *ImageUpload
	TransactionID string
}

// ImageUpload is a screenshot awaiting upload to blob storage.
type ImageUpload struct {
	ContentType string
	Data        []byte
}

// Tracker is the payment submission service.
type Tracker struct {
	store      store.Store
	blobs      BlobStore
	dispatcher *notify.Dispatcher
	logger     *slog.Logger
	nowFn      func() time.Time
	idFn       func() string
}

// NewTracker constructs a Tracker. blobs may be nil when screenshot upload
// is not configured; image submissions then fail validation upstream.
func NewTracker(st store.Store, blobs BlobStore, dispatcher *notify.Dispatcher, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:      st,
		blobs:      blobs,
		dispatcher: dispatcher,
		logger:     logger,
		nowFn:      time.Now,
		idFn:       func() string { return ulid.Make().String() },
	}
}

// WithClock overrides the time source, for tests.
func (t *Tracker) WithClock(nowFn func() time.Time) *Tracker {
	t.nowFn = nowFn
	return t
}

// Submit validates the claim, stores the proof image (if any) with the blob
// collaborator, appends the submission with status "submitted" and emits a
// payment_submitted event. The event carries a proof summary only: a
// screenshot presence flag and the transaction id, never image bytes.
func (t *Tracker) Submit(ctx context.Context, userID string, amount int64, proof ProofInput) (domain.PaymentSubmission, error) {
	if amount <= 0 {
		return domain.PaymentSubmission{}, domain.ErrInvalidAmount
	}

	user, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return domain.PaymentSubmission{}, fmt.Errorf("load user: %w", err)
	}
	if !user.HasContact() {
		return domain.PaymentSubmission{}, domain.ErrMissingContact
	}
	if proof.Image == nil && strings.TrimSpace(proof.TransactionID) == "" {
		return domain.PaymentSubmission{}, domain.ErrMissingProof
	}

	var imageRef string
	if proof.Image != nil {
		if err := validateImage(proof.Image); err != nil {
			return domain.PaymentSubmission{}, err
		}
		if t.blobs == nil {
			return domain.PaymentSubmission{}, fmt.Errorf("screenshot upload is not configured")
		}
		imageRef, err = t.blobs.Put(ctx, proof.Image.ContentType, proof.Image.Data)
		if err != nil {
			return domain.PaymentSubmission{}, fmt.Errorf("store proof image: %w", err)
		}
	}

	sub, err := domain.NewPaymentSubmission(t.idFn(), user, amount, domain.PaymentProof{
		ImageRef:      imageRef,
		TransactionID: strings.TrimSpace(proof.TransactionID),
	}, t.nowFn())
	if err != nil {
		return domain.PaymentSubmission{}, err
	}

	if err := t.store.AppendSubmission(ctx, sub); err != nil {
		return domain.PaymentSubmission{}, fmt.Errorf("append submission: %w", err)
	}

	t.dispatcher.Enqueue(notify.Event{
		Type:      notify.EventPaymentSubmitted,
		UserID:    user.ID,
		UserName:  user.FullName,
		UserEmail: user.Email,
		Payload: map[string]any{
			"submissionId":  sub.ID,
			"amount":        sub.Amount,
			"transactionId": sub.Proof.TransactionID,
			"hasScreenshot": sub.Proof.ImageRef != "",
		},
		CreatedAt: sub.SubmittedAt,
	})

	t.logger.Info("payment submitted",
		"submissionId", sub.ID, "userId", user.ID, "amount", amount)
	return sub, nil
}

// Submissions lists a user's payment submissions newest first.
func (t *Tracker) Submissions(ctx context.Context, userID string) ([]domain.PaymentSubmission, error) {
	return t.store.ListSubmissionsByUser(ctx, userID)
}

func validateImage(img *ImageUpload) error {
	if !strings.HasPrefix(strings.ToLower(img.ContentType), "image/") {
		return domain.ErrInvalidProofType
	}
	if len(img.Data) > MaxProofImageBytes {
		return domain.ErrProofTooLarge
	}
	return nil
}
