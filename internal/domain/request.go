package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProductPurchaseCredit   = "purchase_credit"
	ProductIslamicFinancing = "islamic_financing"
)

const (
	// StatusSubmitted is the persisted pre-decision state: the request exists
	// but has no score yet (e.g. the scoring source was unavailable).
	StatusSubmitted = "submitted"
	StatusReview    = "review"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
)

// ScoreDetail is one component of the Score-360: a 0-100 value plus the
// explanation that feeds the decision record.
type ScoreDetail struct {
	Value       decimal.Decimal `json:"value" db:"value"`
	Explanation string          `json:"explanation" db:"explanation"`
}

// ScoreSet holds the four scores computed exactly once per request.
type ScoreSet struct {
	Activity          ScoreDetail `json:"activity"`
	Behavioral        ScoreDetail `json:"behavioral"`
	SocioProfessional ScoreDetail `json:"socio_professional"`
	Risk              ScoreDetail `json:"risk"`
}

// FinancingRequest represents a financing request entity in one of its two
// product variants. CounterpartyID is set only for purchase credit, Purpose
// only for Islamic financing.
type FinancingRequest struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	ApplicantID          string          `json:"applicant_id" db:"applicant_id"`
	CounterpartyID       *string         `json:"counterparty_id,omitempty" db:"counterparty_id"`
	ProductType          string          `json:"product_type" db:"product_type"`
	RequestedAmount      decimal.Decimal `json:"requested_amount" db:"requested_amount"`
	DownPayment          decimal.Decimal `json:"down_payment" db:"down_payment"`
	InstallmentsCount    int             `json:"installments_count" db:"installments_count"`
	RepaymentFrequency   string          `json:"repayment_frequency" db:"repayment_frequency"`
	FirstInstallmentDate time.Time       `json:"first_installment_date" db:"first_installment_date"`
	MarginRate           decimal.Decimal `json:"margin_rate" db:"margin_rate"`
	Purpose              *string         `json:"purpose,omitempty" db:"purpose"`
	Status               string          `json:"status" db:"status"`
	Reason               string          `json:"reason" db:"reason"`
	RepaymentPlan        *string         `json:"repayment_plan,omitempty" db:"repayment_plan"`
	RepaidAmount         decimal.Decimal `json:"repaid_amount" db:"repaid_amount"`
	LedgerEffectApplied  bool            `json:"ledger_effect_applied" db:"ledger_effect_applied"`
	Scores               *ScoreSet       `json:"scores,omitempty" db:"-"`
	ReviewerID           *string         `json:"reviewer_id,omitempty" db:"reviewer_id"`
	RequestDate          time.Time       `json:"request_date" db:"request_date"`
	DecidedAt            *time.Time      `json:"decided_at,omitempty" db:"decided_at"`
}

// Principal is the financed amount: requested amount minus down payment.
func (r *FinancingRequest) Principal() decimal.Decimal {
	return r.RequestedAmount.Sub(r.DownPayment)
}

// Outstanding is the amount still owed against the requested amount.
func (r *FinancingRequest) Outstanding() decimal.Decimal {
	return r.RequestedAmount.Sub(r.RepaidAmount)
}

// IsTerminal reports whether the request reached a final decision.
func (r *FinancingRequest) IsTerminal() bool {
	return r.Status == StatusApproved || r.Status == StatusRejected
}

// CreditIdempotencyKey is the stable key guarding the one-time approval
// credit. Deriving it from the request id keeps retries exactly-once.
func (r *FinancingRequest) CreditIdempotencyKey() string {
	return "approval-" + r.ID.String()
}

// ScoringParams are the request-side inputs to the scoring source.
type ScoringParams struct {
	ProductType     string
	RequestedAmount decimal.Decimal
	DownPayment     decimal.Decimal
	Purpose         string
}

// ScoringParams extracts the scorer inputs from the request.
func (r *FinancingRequest) ScoringParams() ScoringParams {
	p := ScoringParams{
		ProductType:     r.ProductType,
		RequestedAmount: r.RequestedAmount,
		DownPayment:     r.DownPayment,
	}
	if r.Purpose != nil {
		p.Purpose = *r.Purpose
	}
	return p
}

// DTOs for requests and responses

type SubmitFinancingRequest struct {
	ApplicantID          string          `json:"applicant_id" validate:"required"`
	ProductType          string          `json:"product_type" validate:"required,oneof=purchase_credit islamic_financing"`
	CounterpartyID       string          `json:"counterparty_id,omitempty"`
	RequestedAmount      decimal.Decimal `json:"requested_amount"`
	DownPayment          decimal.Decimal `json:"down_payment"`
	InstallmentsCount    int             `json:"installments_count" validate:"required,gte=1"`
	RepaymentFrequency   string          `json:"repayment_frequency" validate:"required,oneof=daily weekly monthly"`
	FirstInstallmentDate time.Time       `json:"first_installment_date" validate:"required"`
	MarginRate           decimal.Decimal `json:"margin_rate"`
	Purpose              string          `json:"purpose,omitempty"`
}

type ReviewDecisionRequest struct {
	Decision   string `json:"decision" validate:"required,oneof=approved rejected"`
	ReviewerID string `json:"reviewer_id" validate:"required"`
}

type RepaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type FinancingRequestResponse struct {
	Request  *FinancingRequest `json:"request"`
	Schedule []*Installment    `json:"schedule,omitempty"`
}

type ScheduleResponse struct {
	RequestID string         `json:"request_id"`
	Schedule  []*Installment `json:"schedule"`
}
