package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/twopc/savings/backend/internal/domain"
	"github.com/twopc/savings/backend/internal/ledger"
	"github.com/twopc/savings/backend/internal/onboarding"
	"github.com/twopc/savings/backend/internal/payments"
	"github.com/twopc/savings/backend/internal/store"
	"github.com/twopc/savings/backend/internal/withdrawal"
)

// APIHandlers exposes HTTP handlers for the REST API.
type APIHandlers struct {
	logger      *slog.Logger
	store       store.Store
	ledger      *ledger.Ledger
	payments    *payments.Tracker
	withdrawals *withdrawal.Authorizer
	nowFn       func() time.Time
	idFn        func() string
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, st store.Store, l *ledger.Ledger, tracker *payments.Tracker, auth *withdrawal.Authorizer) *APIHandlers {
	return &APIHandlers{
		logger:      logger,
		store:       st,
		ledger:      l,
		payments:    tracker,
		withdrawals: auth,
		nowFn:       time.Now,
		idFn:        func() string { return ulid.Make().String() },
	}
}

type registerUserRequest struct {
	ID       string `json:"id"`
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *APIHandlers) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.FullName) == "" {
		writeError(w, http.StatusBadRequest, "fullName is required")
		return
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = h.idFn()
	}
	user, err := domain.NewUser(id, req.FullName, req.Email, h.nowFn())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (h *APIHandlers) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type declareGoalRequest struct {
	UserID  string `json:"userId"`
	Label   string `json:"label"`
	Amount  int64  `json:"amount"`
	Horizon string `json:"horizon"`
	Cadence string `json:"cadence"`
}

func (h *APIHandlers) handleDeclareGoal(w http.ResponseWriter, r *http.Request) {
	var req declareGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		h.respondError(w, err)
		return
	}

	goal, err := onboarding.BuildGoal(req.Label, req.Amount, req.Horizon, domain.Cadence(req.Cadence), h.nowFn())
	if err != nil {
		h.respondError(w, err)
		return
	}
	rec, err := onboarding.Recommend(goal)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if err := h.store.SaveGoal(r.Context(), req.UserID, goal); err != nil {
		h.respondError(w, err)
		return
	}

	h.logger.Info("goal declared", "userId", req.UserID, "amount", goal.Amount, "horizonMonths", goal.HorizonMonths)
	respondJSON(w, http.StatusCreated, rec)
}

func (h *APIHandlers) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	goal, err := h.store.GetGoal(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	rec, err := onboarding.Recommend(goal)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

type submitPaymentRequest struct {
	UserID        string            `json:"userId"`
	Amount        int64             `json:"amount"`
	TransactionID string            `json:"transactionId"`
	Screenshot    *screenshotUpload `json:"screenshot"`
}

// screenshotUpload carries a proof image inline; Data is base64 on the wire.
type screenshotUpload struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

func (h *APIHandlers) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var req submitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	proof := payments.ProofInput{TransactionID: req.TransactionID}
	if req.Screenshot != nil {
		proof.Image = &payments.ImageUpload{
			ContentType: req.Screenshot.ContentType,
			Data:        req.Screenshot.Data,
		}
	}

	sub, err := h.payments.Submit(r.Context(), req.UserID, req.Amount, proof)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sub)
}

func (h *APIHandlers) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		h.respondError(w, err)
		return
	}
	subs, err := h.payments.Submissions(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if subs == nil {
		subs = []domain.PaymentSubmission{}
	}
	respondJSON(w, http.StatusOK, subs)
}

type activateInvestmentRequest struct {
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
}

func (h *APIHandlers) handleActivateInvestment(w http.ResponseWriter, r *http.Request) {
	var req activateInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, err := h.ledger.Activate(r.Context(), req.PaymentID, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, inv)
}

func (h *APIHandlers) handleAccrueInterest(w http.ResponseWriter, r *http.Request) {
	investmentID := chi.URLParam(r, "investmentID")

	asOf := h.nowFn()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "asOf must be RFC3339")
			return
		}
		asOf = parsed
	}

	inv, err := h.ledger.AccrueInterest(r.Context(), investmentID, asOf)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

func (h *APIHandlers) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	summary, err := h.ledger.Summary(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *APIHandlers) handleTransactionHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	txs, err := h.ledger.TransactionHistory(r.Context(), userID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	respondJSON(w, http.StatusOK, txs)
}

type validateWithdrawalRequest struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"`
}

func (h *APIHandlers) handleValidateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req validateWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	v, err := h.withdrawals.Validate(r.Context(), req.UserID, amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

type executeWithdrawalRequest struct {
	UserID    string `json:"userId"`
	Amount    string `json:"amount"`
	RequestID string `json:"requestId"`
	Confirmed bool   `json:"confirmed"`
}

func (h *APIHandlers) handleExecuteWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req executeWithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}

	record, err := h.withdrawals.ConfirmAndExecute(r.Context(), withdrawal.ExecuteParams{
		UserID:    req.UserID,
		Amount:    amount,
		RequestID: req.RequestID,
		Confirmed: req.Confirmed,
	})
	if err != nil {
		// A rejected request is still recorded; return the record so the
		// client can show the reference alongside the failure.
		if record.ReferenceID != "" {
			respondJSON(w, http.StatusConflict, map[string]any{
				"error":   err.Error(),
				"request": record,
			})
			return
		}
		h.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

// parseAmount reads a withdrawal amount sent as a string. Anything that is
// not a whole number of currency units is an invalid amount, matching the
// validation order of the authorizer.
func parseAmount(raw string) (int64, error) {
	amount, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidAmount
	}
	return amount, nil
}

func (h *APIHandlers) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrProofTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooLow),
		errors.Is(err, domain.ErrAmountTooHigh),
		errors.Is(err, domain.ErrInvalidHorizon),
		errors.Is(err, domain.ErrInvalidCadence),
		errors.Is(err, domain.ErrMissingProof),
		errors.Is(err, domain.ErrMissingContact),
		errors.Is(err, domain.ErrInvalidProofType),
		errors.Is(err, domain.ErrBelowMinimum),
		errors.Is(err, domain.ErrInvalidRequestID),
		errors.Is(err, domain.ErrNotConfirmed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrExceedsBalance),
		errors.Is(err, domain.ErrBreachesReserve),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrAlreadyActivated):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
