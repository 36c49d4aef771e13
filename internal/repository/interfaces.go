package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/domain"
)

// RequestRepository defines the interface for financing request persistence
type RequestRepository interface {
	// Create persists a newly submitted request
	Create(ctx context.Context, request *domain.FinancingRequest) error

	// GetByID retrieves a request by its identifier
	GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancingRequest, error)

	// SetScores writes the full ScoreSet in a single update; scores are never
	// partially persisted and never recomputed
	SetScores(ctx context.Context, id uuid.UUID, scores domain.ScoreSet) error

	// SetDecision records a status, its justification and the repayment plan.
	// The write only lands on undecided rows; losing the race to a concurrent
	// decision surfaces as InvalidTransition
	SetDecision(ctx context.Context, id uuid.UUID, status, reason string, plan *string, reviewerID *string) error

	// CreateInstallments persists the computed schedule
	CreateInstallments(ctx context.Context, installments []*domain.Installment) error

	// GetInstallments retrieves the schedule ordered by sequence number
	GetInstallments(ctx context.Context, requestID uuid.UUID) ([]*domain.Installment, error)

	// ListByApplicant retrieves all requests submitted by an applicant
	ListByApplicant(ctx context.Context, applicantID string) ([]*domain.FinancingRequest, error)

	// ListByStatus retrieves requests in a given status (committee queue)
	ListByStatus(ctx context.Context, status string) ([]*domain.FinancingRequest, error)

	// ListApprovedUnapplied retrieves approved requests whose ledger credit
	// has not landed yet (reconciler input)
	ListApprovedUnapplied(ctx context.Context) ([]*domain.FinancingRequest, error)

	// ListUndecided retrieves submitted requests that never reached a
	// decision, scored or not (reconciler input)
	ListUndecided(ctx context.Context) ([]*domain.FinancingRequest, error)
}

// AccountRepository is the account directory the snapshot builder reads from
type AccountRepository interface {
	// GetAccount resolves an account by its identifier
	GetAccount(ctx context.Context, id string) (*domain.Account, error)

	// GetRecentTransactions returns the account's transactions most-recent-first,
	// bounded to the snapshot window
	GetRecentTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error)
}

// LedgerRepository performs the engine's two money mutations. Both are single
// database transactions so the balance, the request row and the audit record
// move together or not at all.
type LedgerRepository interface {
	// ApplyApprovalCredit posts the one-time approval credit. It flips
	// ledger_effect_applied with a check-and-set and inserts the idempotency
	// key in the same transaction as the balance update and the audit record.
	// Returns false without side effects when the effect was already applied.
	ApplyApprovalCredit(ctx context.Context, requestID uuid.UUID, accountID string, amount decimal.Decimal, idempotencyKey string, record domain.TransactionRecord) (bool, error)

	// ApplyRepayment debits the applicant and increments repaid_amount
	// atomically. Fails with ExcessiveRepayment or InsufficientFunds leaving
	// both untouched.
	ApplyRepayment(ctx context.Context, requestID uuid.UUID, accountID string, amount decimal.Decimal, record domain.TransactionRecord) error
}
