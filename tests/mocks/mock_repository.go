package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/midipay/financing-engine/internal/domain"
)

type MockRequestRepository struct {
	mock.Mock
}

func (m *MockRequestRepository) Create(ctx context.Context, request *domain.FinancingRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FinancingRequest), args.Error(1)
}

func (m *MockRequestRepository) SetScores(ctx context.Context, id uuid.UUID, scores domain.ScoreSet) error {
	args := m.Called(ctx, id, scores)
	return args.Error(0)
}

func (m *MockRequestRepository) SetDecision(ctx context.Context, id uuid.UUID, status, reason string, plan *string, reviewerID *string) error {
	args := m.Called(ctx, id, status, reason, plan, reviewerID)
	return args.Error(0)
}

func (m *MockRequestRepository) CreateInstallments(ctx context.Context, installments []*domain.Installment) error {
	args := m.Called(ctx, installments)
	return args.Error(0)
}

func (m *MockRequestRepository) GetInstallments(ctx context.Context, requestID uuid.UUID) ([]*domain.Installment, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Installment), args.Error(1)
}

func (m *MockRequestRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.FinancingRequest, error) {
	args := m.Called(ctx, applicantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FinancingRequest), args.Error(1)
}

func (m *MockRequestRepository) ListByStatus(ctx context.Context, status string) ([]*domain.FinancingRequest, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FinancingRequest), args.Error(1)
}

func (m *MockRequestRepository) ListApprovedUnapplied(ctx context.Context) ([]*domain.FinancingRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FinancingRequest), args.Error(1)
}

func (m *MockRequestRepository) ListUndecided(ctx context.Context) ([]*domain.FinancingRequest, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FinancingRequest), args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountRepository) GetRecentTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	args := m.Called(ctx, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) ApplyApprovalCredit(ctx context.Context, requestID uuid.UUID, accountID string, amount decimal.Decimal, idempotencyKey string, record domain.TransactionRecord) (bool, error) {
	args := m.Called(ctx, requestID, accountID, amount, idempotencyKey, record)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) ApplyRepayment(ctx context.Context, requestID uuid.UUID, accountID string, amount decimal.Decimal, record domain.TransactionRecord) error {
	args := m.Called(ctx, requestID, accountID, amount, record)
	return args.Error(0)
}

type MockScoringSource struct {
	mock.Mock
}

func (m *MockScoringSource) Score(ctx context.Context, snapshot domain.ApplicantSnapshot, params domain.ScoringParams) (domain.ScoreSet, error) {
	args := m.Called(ctx, snapshot, params)
	if args.Get(0) == nil {
		return domain.ScoreSet{}, args.Error(1)
	}
	return args.Get(0).(domain.ScoreSet), args.Error(1)
}
