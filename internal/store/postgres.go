package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twopc/savings/backend/internal/domain"
)

// PostgresStore is the durable Store implementation backed by pgxpool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects a pool to the given DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// Migrate applies the ledger schema. Statements are idempotent.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	full_name     TEXT NOT NULL DEFAULT '',
	email         TEXT NOT NULL DEFAULT '',
	registered_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS onboarding_goals (
	user_id        TEXT PRIMARY KEY REFERENCES users(id),
	label          TEXT NOT NULL DEFAULT '',
	amount         BIGINT NOT NULL,
	horizon_months INT NOT NULL,
	flexible       BOOLEAN NOT NULL DEFAULT FALSE,
	cadence        TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS payments (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL REFERENCES users(id),
	email          TEXT NOT NULL,
	amount         BIGINT NOT NULL,
	screenshot_ref TEXT NOT NULL DEFAULT '',
	transaction_id TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL,
	submitted_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS investments (
	id              TEXT PRIMARY KEY,
	user_id         TEXT NOT NULL REFERENCES users(id),
	payment_id      TEXT NOT NULL UNIQUE REFERENCES payments(id),
	principal       BIGINT NOT NULL,
	current_value   BIGINT NOT NULL,
	interest_earned BIGINT NOT NULL DEFAULT 0,
	withdrawn       BIGINT NOT NULL DEFAULT 0,
	plan_type       TEXT NOT NULL,
	status          TEXT NOT NULL,
	activated_at    TIMESTAMPTZ NOT NULL,
	months_accrued  INT NOT NULL DEFAULT 0,
	last_accrual_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	id            TEXT PRIMARY KEY,
	investment_id TEXT NOT NULL REFERENCES investments(id),
	user_id       TEXT NOT NULL,
	tx_type       TEXT NOT NULL,
	amount        BIGINT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	ts            TIMESTAMPTZ NOT NULL,
	seq           BIGSERIAL
);

CREATE TABLE IF NOT EXISTS withdrawal_requests (
	reference_id     TEXT PRIMARY KEY,
	request_id       TEXT NOT NULL UNIQUE,
	user_id          TEXT NOT NULL,
	investment_id    TEXT NOT NULL,
	amount           BIGINT NOT NULL,
	previous_balance BIGINT NOT NULL,
	new_balance      BIGINT NOT NULL,
	status           TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);
`

func (p *PostgresStore) CreateUser(ctx context.Context, user domain.User) error {
	query := `
		INSERT INTO users (id, full_name, email, registered_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name, email = EXCLUDED.email
	`
	_, err := p.db.Exec(ctx, query, user.ID, user.FullName, user.Email, user.RegisteredAt)
	return err
}

func (p *PostgresStore) GetUser(ctx context.Context, id string) (domain.User, error) {
	query := `SELECT id, full_name, email, registered_at FROM users WHERE id = $1`

	var user domain.User
	err := p.db.QueryRow(ctx, query, id).Scan(&user.ID, &user.FullName, &user.Email, &user.RegisteredAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	return user, err
}

func (p *PostgresStore) SaveGoal(ctx context.Context, userID string, goal domain.GoalSpec) error {
	query := `
		INSERT INTO onboarding_goals (user_id, label, amount, horizon_months, flexible, cadence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO UPDATE SET
			label = EXCLUDED.label, amount = EXCLUDED.amount,
			horizon_months = EXCLUDED.horizon_months, flexible = EXCLUDED.flexible,
			cadence = EXCLUDED.cadence, created_at = EXCLUDED.created_at
	`
	_, err := p.db.Exec(ctx, query,
		userID, goal.Label, goal.Amount, goal.HorizonMonths, goal.Flexible, string(goal.Cadence), goal.CreatedAt)
	return err
}

func (p *PostgresStore) GetGoal(ctx context.Context, userID string) (domain.GoalSpec, error) {
	query := `
		SELECT label, amount, horizon_months, flexible, cadence, created_at
		FROM onboarding_goals WHERE user_id = $1
	`

	var goal domain.GoalSpec
	var cadence string
	err := p.db.QueryRow(ctx, query, userID).Scan(
		&goal.Label, &goal.Amount, &goal.HorizonMonths, &goal.Flexible, &cadence, &goal.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.GoalSpec{}, domain.ErrNotFound
	}
	goal.Cadence = domain.Cadence(cadence)
	return goal, err
}

func (p *PostgresStore) AppendSubmission(ctx context.Context, sub domain.PaymentSubmission) error {
	query := `
		INSERT INTO payments (id, user_id, email, amount, screenshot_ref, transaction_id, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := p.db.Exec(ctx, query,
		sub.ID, sub.UserID, sub.Email, sub.Amount,
		sub.Proof.ImageRef, sub.Proof.TransactionID, string(sub.Status), sub.SubmittedAt)
	return err
}

func (p *PostgresStore) GetSubmission(ctx context.Context, id string) (domain.PaymentSubmission, error) {
	query := `
		SELECT id, user_id, email, amount, screenshot_ref, transaction_id, status, submitted_at
		FROM payments WHERE id = $1
	`

	sub, err := scanSubmission(p.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PaymentSubmission{}, domain.ErrNotFound
	}
	return sub, err
}

func (p *PostgresStore) ListSubmissionsByUser(ctx context.Context, userID string) ([]domain.PaymentSubmission, error) {
	query := `
		SELECT id, user_id, email, amount, screenshot_ref, transaction_id, status, submitted_at
		FROM payments
		WHERE user_id = $1
		ORDER BY submitted_at DESC
	`

	rows, err := p.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []domain.PaymentSubmission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (p *PostgresStore) UpdateSubmissionStatus(ctx context.Context, id string, status domain.SubmissionStatus) error {
	tag, err := p.db.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (p *PostgresStore) CreateInvestment(ctx context.Context, inv domain.Investment, opening domain.Transaction) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			INSERT INTO investments (
				id, user_id, payment_id, principal, current_value, interest_earned,
				withdrawn, plan_type, status, activated_at, months_accrued, last_accrual_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		if _, err := tx.Exec(ctx, query,
			inv.ID, inv.UserID, inv.PaymentID, inv.Principal, inv.CurrentValue, inv.InterestEarned,
			inv.Withdrawn, string(inv.PlanType), string(inv.Status), inv.ActivatedAt,
			inv.MonthsAccrued, inv.LastAccrualAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return domain.ErrAlreadyActivated
			}
			return err
		}
		return insertTransaction(ctx, tx, opening)
	})
}

func (p *PostgresStore) GetInvestment(ctx context.Context, id string) (domain.Investment, error) {
	return p.getInvestment(ctx, `WHERE id = $1`, id)
}

func (p *PostgresStore) GetInvestmentByUser(ctx context.Context, userID string) (domain.Investment, error) {
	return p.getInvestment(ctx, `WHERE user_id = $1 ORDER BY activated_at DESC LIMIT 1`, userID)
}

func (p *PostgresStore) GetInvestmentByPayment(ctx context.Context, paymentID string) (domain.Investment, error) {
	return p.getInvestment(ctx, `WHERE payment_id = $1`, paymentID)
}

func (p *PostgresStore) getInvestment(ctx context.Context, where string, arg any) (domain.Investment, error) {
	query := `
		SELECT id, user_id, payment_id, principal, current_value, interest_earned,
		       withdrawn, plan_type, status, activated_at, months_accrued, last_accrual_at
		FROM investments ` + where

	var inv domain.Investment
	var planType, status string
	err := p.db.QueryRow(ctx, query, arg).Scan(
		&inv.ID, &inv.UserID, &inv.PaymentID, &inv.Principal, &inv.CurrentValue, &inv.InterestEarned,
		&inv.Withdrawn, &planType, &status, &inv.ActivatedAt, &inv.MonthsAccrued, &inv.LastAccrualAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Investment{}, domain.ErrNotFound
	}
	inv.PlanType = domain.Cadence(planType)
	inv.Status = domain.InvestmentStatus(status)
	return inv, err
}

func (p *PostgresStore) ApplyLedgerEntry(ctx context.Context, inv domain.Investment, entry domain.Transaction) error {
	return p.inTx(ctx, func(tx pgx.Tx) error {
		query := `
			UPDATE investments SET
				current_value = $2, interest_earned = $3, withdrawn = $4,
				status = $5, months_accrued = $6, last_accrual_at = $7
			WHERE id = $1
		`
		tag, err := tx.Exec(ctx, query,
			inv.ID, inv.CurrentValue, inv.InterestEarned, inv.Withdrawn,
			string(inv.Status), inv.MonthsAccrued, inv.LastAccrualAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return insertTransaction(ctx, tx, entry)
	})
}

func (p *PostgresStore) ListTransactions(ctx context.Context, investmentID string) ([]domain.Transaction, error) {
	query := `
		SELECT id, investment_id, user_id, tx_type, amount, description, ts
		FROM transactions
		WHERE investment_id = $1
		ORDER BY seq ASC
	`

	rows, err := p.db.Query(ctx, query, investmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.InvestmentID, &t.UserID, &txType, &t.Amount, &t.Description, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Type = domain.TransactionType(txType)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (p *PostgresStore) CreateWithdrawalRequest(ctx context.Context, req domain.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (
			reference_id, request_id, user_id, investment_id, amount,
			previous_balance, new_balance, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := p.db.Exec(ctx, query,
		req.ReferenceID, req.RequestID, req.UserID, req.InvestmentID, req.Amount,
		req.PreviousBalance, req.NewBalance, string(req.Status), req.CreatedAt)
	return err
}

func (p *PostgresStore) GetWithdrawalByRequestID(ctx context.Context, requestID string) (domain.WithdrawalRequest, error) {
	query := `
		SELECT reference_id, request_id, user_id, investment_id, amount,
		       previous_balance, new_balance, status, created_at
		FROM withdrawal_requests WHERE request_id = $1
	`

	var req domain.WithdrawalRequest
	var status string
	err := p.db.QueryRow(ctx, query, requestID).Scan(
		&req.ReferenceID, &req.RequestID, &req.UserID, &req.InvestmentID, &req.Amount,
		&req.PreviousBalance, &req.NewBalance, &status, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WithdrawalRequest{}, domain.ErrNotFound
	}
	req.Status = domain.WithdrawalStatus(status)
	return req, err
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PostgresStore) Close() {
	p.db.Close()
}

func (p *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t domain.Transaction) error {
	query := `
		INSERT INTO transactions (id, investment_id, user_id, tx_type, amount, description, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := tx.Exec(ctx, query,
		t.ID, t.InvestmentID, t.UserID, string(t.Type), t.Amount, t.Description, t.Timestamp)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (domain.PaymentSubmission, error) {
	var sub domain.PaymentSubmission
	var status string
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Email, &sub.Amount,
		&sub.Proof.ImageRef, &sub.Proof.TransactionID, &status, &sub.SubmittedAt)
	if err != nil {
		return domain.PaymentSubmission{}, err
	}
	sub.Status = domain.SubmissionStatus(status)
	return sub, nil
}
