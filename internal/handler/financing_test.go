package handler_test

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/domain"
	"github.com/midipay/financing-engine/internal/handler"
	"github.com/midipay/financing-engine/internal/service"
	customError "github.com/midipay/financing-engine/pkg/errors"
	"github.com/midipay/financing-engine/tests/mocks"
)

type handlerFixture struct {
	requests *mocks.MockRequestRepository
	accounts *mocks.MockAccountRepository
	ledger   *mocks.MockLedgerRepository
	scorer   *mocks.MockScoringSource
	router   *mux.Router
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	f := &handlerFixture{
		requests: new(mocks.MockRequestRepository),
		accounts: new(mocks.MockAccountRepository),
		ledger:   new(mocks.MockLedgerRepository),
		scorer:   new(mocks.MockScoringSource),
	}

	cfg := &config.Config{
		Redis:   config.RedisConfig{LockTTL: time.Second},
		Scoring: config.ScoringConfig{Source: "rules", Timeout: 5 * time.Second},
		Policy: config.PolicyConfig{
			ApproveBelow:       40,
			RejectAbove:        70,
			ActivityWeight:     35,
			BehavioralWeight:   35,
			SocioWeight:        30,
			DownPaymentRelief:  "0.20",
			SnapshotWindow:     10,
			CurrencyScale:      0,
			PurchaseCeiling:    "100000",
			PurchaseHighAmount: "150000",
			IslamicCeiling:     "300000",
			IslamicHighAmount:  "500000",
			ProhibitedPurposes: "alcohol,gambling",
			MinPurposeWords:    3,
		},
	}

	svc := service.NewFinancingService(
		f.requests,
		f.ledger,
		service.NewSnapshotBuilder(f.accounts, cfg.Policy.SnapshotWindow),
		f.scorer,
		nil,
		cfg,
		zap.NewNop(),
	)

	financingHandler := handler.NewFinancingHandler(svc, zap.NewNop())

	f.router = mux.NewRouter()
	api := f.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/financing/requests", financingHandler.SubmitRequest).Methods("POST")
	api.HandleFunc("/financing/requests", financingHandler.ListRequests).Methods("GET")
	api.HandleFunc("/financing/requests/{id}", financingHandler.GetRequest).Methods("GET")
	api.HandleFunc("/financing/requests/{id}/schedule", financingHandler.GetSchedule).Methods("GET")
	api.HandleFunc("/financing/requests/{id}/decision", financingHandler.ReviewDecision).Methods("POST")
	api.HandleFunc("/financing/requests/{id}/repayments", financingHandler.ApplyRepayment).Methods("POST")

	return f
}

func (f *handlerFixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func approvedRequest(id uuid.UUID) *domain.FinancingRequest {
	return &domain.FinancingRequest{
		ID:              id,
		ApplicantID:     "acct-1",
		ProductType:     domain.ProductPurchaseCredit,
		RequestedAmount: decimal.NewFromInt(90000),
		Status:          domain.StatusApproved,
		RepaidAmount:    decimal.Zero,
	}
}

func TestGetRequestNotFound(t *testing.T) {
	f := newHandlerFixture(t)
	requestID := uuid.New()

	f.requests.On("GetByID", mock.Anything, requestID).Return(nil, sql.ErrNoRows)

	rec := f.do(t, http.MethodGet, "/api/v1/financing/requests/"+requestID.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeRequestNotFound)
}

func TestGetRequestBadID(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/financing/requests/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeValidation)
}

func TestGetRequestWithSchedule(t *testing.T) {
	f := newHandlerFixture(t)
	requestID := uuid.New()

	installments := []*domain.Installment{
		{RequestID: requestID, SequenceNumber: 1, TotalDue: decimal.NewFromInt(31800)},
	}
	f.requests.On("GetByID", mock.Anything, requestID).Return(approvedRequest(requestID), nil)
	f.requests.On("GetInstallments", mock.Anything, requestID).Return(installments, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/financing/requests/"+requestID.String(), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Success bool                             `json:"success"`
		Data    domain.FinancingRequestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.True(t, envelope.Success)
	assert.Equal(t, requestID, envelope.Data.Request.ID)
	assert.Len(t, envelope.Data.Schedule, 1)
}

func TestSubmitRequestRejectsBadJSON(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/financing/requests", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRequestRejectsUnknownProduct(t *testing.T) {
	f := newHandlerFixture(t)

	body := `{"applicant_id":"acct-1","product_type":"payday_loan","installments_count":3,` +
		`"repayment_frequency":"monthly","first_installment_date":"2026-10-01T00:00:00Z","requested_amount":"1000"}`
	rec := f.do(t, http.MethodPost, "/api/v1/financing/requests", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeValidation)
}

func TestSubmitRequestScoringUnavailableMapsTo503(t *testing.T) {
	f := newHandlerFixture(t)

	f.accounts.On("GetAccount", mock.Anything, "acct-1").Return(&domain.Account{
		ID:      "acct-1",
		Alias:   "Awa's shop",
		Balance: decimal.NewFromInt(200000),
	}, nil)
	f.accounts.On("GetRecentTransactions", mock.Anything, "acct-1", 10).
		Return([]domain.Transaction{}, nil)
	f.requests.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.scorer.On("Score", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, customError.WrapScoringUnavailable(errors.New("endpoint down")))

	body := `{"applicant_id":"acct-1","product_type":"purchase_credit","counterparty_id":"merchant-9",` +
		`"requested_amount":"90000","installments_count":3,"repayment_frequency":"monthly",` +
		`"first_installment_date":"2026-10-01T00:00:00Z","margin_rate":"0.02"}`
	rec := f.do(t, http.MethodPost, "/api/v1/financing/requests", body)

	// the request is durable but the caller must be told to retry
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeScoringUnavailable)

	var envelope struct {
		Success bool                            `json:"success"`
		Data    domain.FinancingRequestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Data.Request)
	assert.Equal(t, domain.StatusSubmitted, envelope.Data.Request.Status)
}

func TestReviewDecisionConflictMapsTo409(t *testing.T) {
	f := newHandlerFixture(t)
	requestID := uuid.New()

	stored := approvedRequest(requestID)
	stored.LedgerEffectApplied = true
	f.requests.On("GetByID", mock.Anything, requestID).Return(stored, nil)

	body := `{"decision":"rejected","reviewer_id":"reviewer-1"}`
	rec := f.do(t, http.MethodPost, "/api/v1/financing/requests/"+requestID.String()+"/decision", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeInvalidTransition)
}

func TestApplyRepaymentErrorsMapTo422(t *testing.T) {
	f := newHandlerFixture(t)
	requestID := uuid.New()

	f.requests.On("GetByID", mock.Anything, requestID).Return(approvedRequest(requestID), nil)
	f.ledger.On("ApplyRepayment", mock.Anything, requestID, "acct-1",
		decimal.NewFromInt(500000), mock.Anything).
		Return(customError.WrapExcessiveRepayment(requestID.String()))

	rec := f.do(t, http.MethodPost,
		"/api/v1/financing/requests/"+requestID.String()+"/repayments",
		`{"amount":"500000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), customError.ErrCodeExcessiveRepayment)
}

func TestListRequestsRequiresFilter(t *testing.T) {
	f := newHandlerFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/financing/requests", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRequestsByApplicant(t *testing.T) {
	f := newHandlerFixture(t)
	requestID := uuid.New()

	f.requests.On("ListByApplicant", mock.Anything, "acct-1").
		Return([]*domain.FinancingRequest{approvedRequest(requestID)}, nil)

	rec := f.do(t, http.MethodGet, "/api/v1/financing/requests?applicant_id=acct-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), requestID.String())
}
