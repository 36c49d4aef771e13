package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/domain"
	"github.com/midipay/financing-engine/internal/metrics"
	"github.com/midipay/financing-engine/internal/policy"
	"github.com/midipay/financing-engine/internal/repository"
	"github.com/midipay/financing-engine/internal/schedule"
	"github.com/midipay/financing-engine/internal/scoring"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

// FinancingService is the request lifecycle manager: it persists requests,
// drives the snapshot-score-decide pipeline and owns the exactly-once ledger
// mutation on approval.
type FinancingService struct {
	requests  repository.RequestRepository
	ledger    repository.LedgerRepository
	snapshots *SnapshotBuilder
	scorer    scoring.ScoringSource
	redis     *redis.Client
	cfg       *config.Config
	log       *zap.Logger
}

func NewFinancingService(
	requests repository.RequestRepository,
	ledger repository.LedgerRepository,
	snapshots *SnapshotBuilder,
	scorer scoring.ScoringSource,
	redisClient *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) *FinancingService {
	return &FinancingService{
		requests:  requests,
		ledger:    ledger,
		snapshots: snapshots,
		scorer:    scorer,
		redis:     redisClient,
		cfg:       cfg,
		log:       log,
	}
}

// SubmitRequest runs the full pipeline: validate, snapshot, score, decide,
// persist, and apply the ledger effect when the decision is a final approval.
// A scoring failure leaves the request persisted in submitted with no score.
func (s *FinancingService) SubmitRequest(ctx context.Context, payload *domain.SubmitFinancingRequest) (*domain.FinancingRequest, error) {
	if err := validateSubmit(payload); err != nil {
		return nil, err
	}

	snapshot, err := s.snapshots.Build(ctx, payload.ApplicantID)
	if err != nil {
		return nil, err
	}
	if snapshot.Suspended {
		return nil, customError.WrapValidation("applicant account is suspended")
	}

	request := newRequest(payload)
	if err := s.requests.Create(ctx, request); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	if err := s.scoreAndDecide(ctx, request, snapshot); err != nil {
		if errors.Is(err, customError.ErrScoringUnavailable) {
			// The request stays in submitted; the reconciler or a retry
			// picks it up. Never guess a score.
			return request, err
		}
		return nil, err
	}

	return s.reload(ctx, request.ID)
}

// ReviewDecision applies a committee decision to a request awaiting review.
// Repeating the decision a terminal request already holds is a no-op that
// returns the stored result; a conflicting decision fails InvalidTransition.
func (s *FinancingService) ReviewDecision(ctx context.Context, requestID uuid.UUID, payload *domain.ReviewDecisionRequest) (*domain.FinancingRequest, error) {
	request, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}

	switch request.Status {
	case domain.StatusReview:
		// proceed below
	case domain.StatusApproved:
		if payload.Decision != domain.StatusApproved {
			return nil, customError.WrapInvalidTransition(requestID.String(), request.Status, payload.Decision)
		}
		if request.LedgerEffectApplied {
			return request, nil
		}
		// Decision already durable but the credit has not landed; retry it.
		if err := s.finalizeApproval(ctx, request, nil, nil); err != nil {
			return nil, err
		}
		return s.reload(ctx, requestID)
	case domain.StatusRejected:
		if payload.Decision != domain.StatusRejected {
			return nil, customError.WrapInvalidTransition(requestID.String(), request.Status, payload.Decision)
		}
		return request, nil
	default:
		return nil, customError.WrapInvalidTransition(requestID.String(), request.Status, payload.Decision)
	}

	reviewer := payload.ReviewerID
	switch payload.Decision {
	case domain.StatusApproved:
		reason := fmt.Sprintf("approved by committee review (reviewer %s)", reviewer)
		if err := s.finalizeApproval(ctx, request, &reason, &reviewer); err != nil {
			return nil, err
		}
	case domain.StatusRejected:
		reason := fmt.Sprintf("rejected by committee review (reviewer %s)", reviewer)
		err := s.withRequestLock(ctx, "financing:finalize:"+requestID.String(), func() error {
			return s.requests.SetDecision(ctx, requestID, domain.StatusRejected, reason, nil, &reviewer)
		})
		if err != nil {
			return nil, decisionErr(err)
		}
		metrics.DecisionsTotal.WithLabelValues(request.ProductType, domain.StatusRejected).Inc()
	}

	return s.reload(ctx, requestID)
}

// ApplyRepayment debits the applicant's balance and increments the running
// repaid total. Only approved requests accept repayments; status never
// changes here, full repayment is a fact, not a status.
func (s *FinancingService) ApplyRepayment(ctx context.Context, requestID uuid.UUID, amount decimal.Decimal) (*domain.FinancingRequest, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapValidation("repayment amount must be greater than zero")
	}

	request, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if request.Status != domain.StatusApproved {
		return nil, customError.WrapInvalidTransition(requestID.String(), request.Status, "repayment")
	}

	record := domain.TransactionRecord{
		Type:         domain.TransactionSent,
		Counterparty: productLabel(request.ProductType),
		Reason:       fmt.Sprintf("Repayment on financing request %s", requestID),
		Amount:       amount,
		Status:       domain.TransactionCompleted,
	}

	err = s.withRequestLock(ctx, "financing:repay:"+requestID.String(), func() error {
		return s.ledger.ApplyRepayment(ctx, requestID, request.ApplicantID, amount, record)
	})
	if err != nil {
		metrics.RepaymentsTotal.WithLabelValues(customError.CodeOf(err)).Inc()
		return nil, err
	}

	metrics.RepaymentsTotal.WithLabelValues("applied").Inc()
	return s.reload(ctx, requestID)
}

// GetRequest returns a request with its schedule, when one exists.
func (s *FinancingService) GetRequest(ctx context.Context, requestID uuid.UUID) (*domain.FinancingRequest, []*domain.Installment, error) {
	request, err := s.load(ctx, requestID)
	if err != nil {
		return nil, nil, err
	}

	installments, err := s.requests.GetInstallments(ctx, requestID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	return request, installments, nil
}

// ListByApplicant returns an applicant's requests, newest first.
func (s *FinancingService) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.FinancingRequest, error) {
	requests, err := s.requests.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return requests, nil
}

// ListPendingReview returns the committee queue, oldest first.
func (s *FinancingService) ListPendingReview(ctx context.Context) ([]*domain.FinancingRequest, error) {
	requests, err := s.requests.ListByStatus(ctx, domain.StatusReview)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return requests, nil
}

// FinalizePending retries the ledger credit of approved requests whose
// effect has not been applied. Each retry reuses the stored idempotency key,
// so a credit that actually landed is never posted twice.
func (s *FinancingService) FinalizePending(ctx context.Context) (int, error) {
	pending, err := s.requests.ListApprovedUnapplied(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	applied := 0
	for _, request := range pending {
		metrics.LedgerCreditRetriesTotal.Inc()
		if err := s.finalizeApproval(ctx, request, nil, nil); err != nil {
			s.log.Error("ledger credit retry failed",
				zap.String("request_id", request.ID.String()),
				zap.Error(err))
			continue
		}
		applied++
	}

	return applied, nil
}

// ScorePending advances submitted requests that never reached a decision:
// unscored ones are scored first, already-scored ones (crash between the
// score write and the decision write) go straight to the decision bands.
func (s *FinancingService) ScorePending(ctx context.Context) (int, error) {
	pending, err := s.requests.ListUndecided(ctx)
	if err != nil {
		return 0, customError.WrapDatabaseError(err)
	}

	scored := 0
	for _, request := range pending {
		snapshot, err := s.snapshots.Build(ctx, request.ApplicantID)
		if err != nil {
			s.log.Error("snapshot rebuild failed",
				zap.String("request_id", request.ID.String()),
				zap.Error(err))
			continue
		}

		if err := s.scoreAndDecide(ctx, request, snapshot); err != nil {
			s.log.Warn("scoring retry failed",
				zap.String("request_id", request.ID.String()),
				zap.Error(err))
			continue
		}
		scored++
	}

	return scored, nil
}

// scoreAndDecide runs the bounded scoring call, persists the ScoreSet
// all-or-nothing, and applies the decision bands. A request that already
// carries scores skips straight to the decision.
func (s *FinancingService) scoreAndDecide(ctx context.Context, request *domain.FinancingRequest, snapshot domain.ApplicantSnapshot) error {
	var scores domain.ScoreSet
	if request.Scores != nil {
		scores = *request.Scores
	} else {
		scoreCtx, cancel := context.WithTimeout(ctx, s.cfg.Scoring.Timeout)
		defer cancel()

		started := time.Now()
		scored, err := s.scorer.Score(scoreCtx, snapshot, request.ScoringParams())
		metrics.ScoringDuration.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.ScoringFailuresTotal.Inc()
			if errors.Is(err, customError.ErrScoringUnavailable) {
				return err
			}
			return customError.WrapScoringUnavailable(err)
		}

		if err := s.requests.SetScores(ctx, request.ID, scored); err != nil {
			return customError.WrapDatabaseError(err)
		}
		scores = scored
		request.Scores = &scores
	}

	decision := policy.Decide(
		scores,
		request.RequestedAmount,
		s.cfg.ProductPolicyFor(request.ProductType),
		len(snapshot.RecentTransactions),
		policy.BandsFrom(s.cfg),
	)
	metrics.DecisionsTotal.WithLabelValues(request.ProductType, decision.Status).Inc()

	if decision.Status == domain.StatusApproved {
		return s.finalizeApproval(ctx, request, &decision.Reason, nil)
	}

	if err := s.requests.SetDecision(ctx, request.ID, decision.Status, decision.Reason, nil, nil); err != nil {
		return decisionErr(err)
	}
	request.Status = decision.Status
	request.Reason = decision.Reason

	return nil
}

// finalizeApproval makes an approval durable and posts its one-time ledger
// credit. A nil reason means the approval is already recorded and only the
// credit is being retried. A credit failure after the decision is durable is
// logged, not surfaced: the reconciler keeps retrying with the same
// idempotency key until it lands.
func (s *FinancingService) finalizeApproval(ctx context.Context, request *domain.FinancingRequest, reason *string, reviewerID *string) error {
	return s.withRequestLock(ctx, "financing:finalize:"+request.ID.String(), func() error {
		installments, err := s.requests.GetInstallments(ctx, request.ID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		if len(installments) == 0 {
			installments, err = schedule.Build(
				request.Principal(),
				request.MarginRate,
				request.InstallmentsCount,
				request.RepaymentFrequency,
				request.FirstInstallmentDate,
				s.cfg.Policy.CurrencyScale,
			)
			if err != nil {
				return err
			}
			for _, installment := range installments {
				installment.RequestID = request.ID
			}
			if err := s.requests.CreateInstallments(ctx, installments); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}

		if reason != nil {
			plan := schedule.Summary(installments, request.RepaymentFrequency)
			if err := s.requests.SetDecision(ctx, request.ID, domain.StatusApproved, *reason, &plan, reviewerID); err != nil {
				return decisionErr(err)
			}
			request.Status = domain.StatusApproved
			request.Reason = *reason
		}

		record := domain.TransactionRecord{
			Type:         domain.TransactionReceived,
			Counterparty: productLabel(request.ProductType),
			Reason:       approvalReason(request),
			Amount:       request.RequestedAmount,
			Status:       domain.TransactionCompleted,
		}

		applied, err := s.ledger.ApplyApprovalCredit(
			ctx,
			request.ID,
			request.ApplicantID,
			request.RequestedAmount,
			request.CreditIdempotencyKey(),
			record,
		)
		if err != nil {
			// The approval itself is durable; losing its financial effect is
			// not an option, so the reconciler retries with the same key.
			s.log.Error("approval credit failed, left for reconciler",
				zap.String("request_id", request.ID.String()),
				zap.Error(err))
			return nil
		}

		if applied {
			metrics.LedgerCreditsTotal.Inc()
			request.LedgerEffectApplied = true
			s.log.Info("approval credit posted",
				zap.String("request_id", request.ID.String()),
				zap.String("applicant_id", request.ApplicantID),
				zap.String("amount", request.RequestedAmount.String()))
		}

		return nil
	})
}

// withRequestLock serializes work on one request via a redis SETNX lock.
// The lock is an optimization against duplicate work; the database
// check-and-set remains the source of truth for exactly-once semantics.
func (s *FinancingService) withRequestLock(ctx context.Context, key string, fn func() error) error {
	if s.redis != nil {
		if ok, err := s.redis.SetNX(ctx, key, "1", s.cfg.Redis.LockTTL).Result(); err == nil && ok {
			defer s.redis.Del(context.WithoutCancel(ctx), key)
		}
	}
	return fn()
}

// decisionErr keeps a lost decision race distinguishable from a plain
// database failure.
func decisionErr(err error) error {
	if errors.Is(err, customError.ErrInvalidTransition) {
		return err
	}
	return customError.WrapDatabaseError(err)
}

func (s *FinancingService) load(ctx context.Context, requestID uuid.UUID) (*domain.FinancingRequest, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapRequestNotFound(requestID.String())
		}
		return nil, customError.WrapDatabaseError(err)
	}
	return request, nil
}

func (s *FinancingService) reload(ctx context.Context, requestID uuid.UUID) (*domain.FinancingRequest, error) {
	return s.load(ctx, requestID)
}

func newRequest(payload *domain.SubmitFinancingRequest) *domain.FinancingRequest {
	request := &domain.FinancingRequest{
		ID:                   uuid.New(),
		ApplicantID:          payload.ApplicantID,
		ProductType:          payload.ProductType,
		RequestedAmount:      payload.RequestedAmount,
		DownPayment:          payload.DownPayment,
		InstallmentsCount:    payload.InstallmentsCount,
		RepaymentFrequency:   payload.RepaymentFrequency,
		FirstInstallmentDate: payload.FirstInstallmentDate,
		MarginRate:           payload.MarginRate,
		Status:               domain.StatusSubmitted,
		RepaidAmount:         decimal.Zero,
		RequestDate:          time.Now().UTC(),
	}

	if payload.ProductType == domain.ProductPurchaseCredit {
		counterparty := payload.CounterpartyID
		request.CounterpartyID = &counterparty
	}
	if payload.ProductType == domain.ProductIslamicFinancing {
		purpose := payload.Purpose
		request.Purpose = &purpose
	}

	return request
}

func validateSubmit(payload *domain.SubmitFinancingRequest) error {
	switch {
	case payload.ApplicantID == "":
		return customError.WrapValidation("applicant id is required")
	case payload.RequestedAmount.LessThanOrEqual(decimal.Zero):
		return customError.WrapValidation("requested amount must be greater than zero")
	case payload.DownPayment.IsNegative():
		return customError.WrapValidation("down payment must not be negative")
	case payload.DownPayment.GreaterThanOrEqual(payload.RequestedAmount):
		return customError.WrapValidation("down payment must be lower than the requested amount")
	case payload.MarginRate.IsNegative():
		return customError.WrapValidation("margin rate must not be negative")
	case payload.InstallmentsCount < 1:
		return customError.WrapValidation("installments count must be at least 1")
	case payload.FirstInstallmentDate.IsZero():
		return customError.WrapValidation("first installment date is required")
	}

	switch payload.RepaymentFrequency {
	case domain.FrequencyDaily, domain.FrequencyWeekly, domain.FrequencyMonthly:
	default:
		return customError.WrapValidation(fmt.Sprintf("unknown repayment frequency %q", payload.RepaymentFrequency))
	}

	switch payload.ProductType {
	case domain.ProductPurchaseCredit:
		if payload.CounterpartyID == "" {
			return customError.WrapValidation("counterparty id is required for purchase credit")
		}
	case domain.ProductIslamicFinancing:
		if payload.Purpose == "" {
			return customError.WrapValidation("purpose is required for islamic financing")
		}
	default:
		return customError.WrapValidation(fmt.Sprintf("unknown product type %q", payload.ProductType))
	}

	return nil
}

func productLabel(productType string) string {
	if productType == domain.ProductIslamicFinancing {
		return "Islamic Financing"
	}
	return "Merchant Credit"
}

func approvalReason(request *domain.FinancingRequest) string {
	if request.Purpose != nil {
		return fmt.Sprintf("Financing approved for: %s", *request.Purpose)
	}
	return fmt.Sprintf("Financing approved for purchase request %s", request.ID)
}
