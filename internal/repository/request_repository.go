package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/domain"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

// requestRow mirrors the financing_requests table; scores live in flat
// nullable columns and fold back into the domain ScoreSet on read.
type requestRow struct {
	ID                   uuid.UUID        `db:"id"`
	ApplicantID          string           `db:"applicant_id"`
	CounterpartyID       *string          `db:"counterparty_id"`
	ProductType          string           `db:"product_type"`
	RequestedAmount      decimal.Decimal  `db:"requested_amount"`
	DownPayment          decimal.Decimal  `db:"down_payment"`
	InstallmentsCount    int              `db:"installments_count"`
	RepaymentFrequency   string           `db:"repayment_frequency"`
	FirstInstallmentDate time.Time        `db:"first_installment_date"`
	MarginRate           decimal.Decimal  `db:"margin_rate"`
	Purpose              *string          `db:"purpose"`
	Status               string           `db:"status"`
	Reason               string           `db:"reason"`
	RepaymentPlan        *string          `db:"repayment_plan"`
	RepaidAmount         decimal.Decimal  `db:"repaid_amount"`
	LedgerEffectApplied  bool             `db:"ledger_effect_applied"`
	ScoreActivity        *decimal.Decimal `db:"score_activity"`
	ScoreActivityExpl    *string          `db:"score_activity_expl"`
	ScoreBehavioral      *decimal.Decimal `db:"score_behavioral"`
	ScoreBehavioralExpl  *string          `db:"score_behavioral_expl"`
	ScoreSocio           *decimal.Decimal `db:"score_socio"`
	ScoreSocioExpl       *string          `db:"score_socio_expl"`
	ScoreRisk            *decimal.Decimal `db:"score_risk"`
	ScoreRiskExpl        *string          `db:"score_risk_expl"`
	ReviewerID           *string          `db:"reviewer_id"`
	RequestDate          time.Time        `db:"request_date"`
	DecidedAt            *time.Time       `db:"decided_at"`
}

const requestColumns = `
	id, applicant_id, counterparty_id, product_type, requested_amount, down_payment,
	installments_count, repayment_frequency, first_installment_date, margin_rate,
	purpose, status, reason, repayment_plan, repaid_amount, ledger_effect_applied,
	score_activity, score_activity_expl, score_behavioral, score_behavioral_expl,
	score_socio, score_socio_expl, score_risk, score_risk_expl,
	reviewer_id, request_date, decided_at
`

func (row *requestRow) toDomain() *domain.FinancingRequest {
	request := &domain.FinancingRequest{
		ID:                   row.ID,
		ApplicantID:          row.ApplicantID,
		CounterpartyID:       row.CounterpartyID,
		ProductType:          row.ProductType,
		RequestedAmount:      row.RequestedAmount,
		DownPayment:          row.DownPayment,
		InstallmentsCount:    row.InstallmentsCount,
		RepaymentFrequency:   row.RepaymentFrequency,
		FirstInstallmentDate: row.FirstInstallmentDate,
		MarginRate:           row.MarginRate,
		Purpose:              row.Purpose,
		Status:               row.Status,
		Reason:               row.Reason,
		RepaymentPlan:        row.RepaymentPlan,
		RepaidAmount:         row.RepaidAmount,
		LedgerEffectApplied:  row.LedgerEffectApplied,
		ReviewerID:           row.ReviewerID,
		RequestDate:          row.RequestDate,
		DecidedAt:            row.DecidedAt,
	}

	if row.ScoreRisk != nil {
		request.Scores = &domain.ScoreSet{
			Activity:          scoreDetail(row.ScoreActivity, row.ScoreActivityExpl),
			Behavioral:        scoreDetail(row.ScoreBehavioral, row.ScoreBehavioralExpl),
			SocioProfessional: scoreDetail(row.ScoreSocio, row.ScoreSocioExpl),
			Risk:              scoreDetail(row.ScoreRisk, row.ScoreRiskExpl),
		}
	}

	return request
}

func scoreDetail(value *decimal.Decimal, explanation *string) domain.ScoreDetail {
	detail := domain.ScoreDetail{}
	if value != nil {
		detail.Value = *value
	}
	if explanation != nil {
		detail.Explanation = *explanation
	}
	return detail
}

func (r *requestRepository) Create(ctx context.Context, request *domain.FinancingRequest) error {
	query := `
		INSERT INTO financing_requests (
			id, applicant_id, counterparty_id, product_type, requested_amount, down_payment,
			installments_count, repayment_frequency, first_installment_date, margin_rate,
			purpose, status, reason, repaid_amount, ledger_effect_applied, request_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.ExecContext(ctx, query,
		request.ID,
		request.ApplicantID,
		request.CounterpartyID,
		request.ProductType,
		request.RequestedAmount,
		request.DownPayment,
		request.InstallmentsCount,
		request.RepaymentFrequency,
		request.FirstInstallmentDate,
		request.MarginRate,
		request.Purpose,
		request.Status,
		request.Reason,
		request.RepaidAmount,
		request.LedgerEffectApplied,
		request.RequestDate,
	)

	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE id = $1`

	var row requestRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}

	return row.toDomain(), nil
}

func (r *requestRepository) SetScores(ctx context.Context, id uuid.UUID, scores domain.ScoreSet) error {
	query := `
		UPDATE financing_requests
		SET score_activity = $2, score_activity_expl = $3,
		    score_behavioral = $4, score_behavioral_expl = $5,
		    score_socio = $6, score_socio_expl = $7,
		    score_risk = $8, score_risk_expl = $9
		WHERE id = $1 AND score_risk IS NULL
	`

	_, err := r.db.ExecContext(ctx, query, id,
		scores.Activity.Value, scores.Activity.Explanation,
		scores.Behavioral.Value, scores.Behavioral.Explanation,
		scores.SocioProfessional.Value, scores.SocioProfessional.Explanation,
		scores.Risk.Value, scores.Risk.Explanation,
	)

	return err
}

// SetDecision writes the status with a check-and-set: only non-terminal rows
// accept a decision, so two concurrent conflicting reviews cannot both land.
func (r *requestRepository) SetDecision(ctx context.Context, id uuid.UUID, status, reason string, plan *string, reviewerID *string) error {
	query := `
		UPDATE financing_requests
		SET status = $2, reason = $3,
		    repayment_plan = COALESCE($4, repayment_plan),
		    reviewer_id = COALESCE($5, reviewer_id),
		    decided_at = CASE WHEN $2 IN ('approved', 'rejected') THEN NOW() ELSE decided_at END
		WHERE id = $1 AND status IN ('submitted', 'review')
	`

	result, err := r.db.ExecContext(ctx, query, id, status, reason, plan, reviewerID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Lost the race to a concurrent decision, or the row is gone.
		return customError.WrapInvalidTransition(id.String(), "a decided status", status)
	}

	return nil
}

func (r *requestRepository) CreateInstallments(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (id, request_id, sequence_number, due_date, principal_portion, margin_portion, total_due, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id, sequence_number) DO NOTHING
	`

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, installment := range installments {
		_, err = tx.ExecContext(ctx, query,
			installment.ID,
			installment.RequestID,
			installment.SequenceNumber,
			installment.DueDate,
			installment.PrincipalPortion,
			installment.MarginPortion,
			installment.TotalDue,
			now,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *requestRepository) GetInstallments(ctx context.Context, requestID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT id, request_id, sequence_number, due_date, principal_portion, margin_portion, total_due, created_at
		FROM installments
		WHERE request_id = $1
		ORDER BY sequence_number
	`

	var installments []*domain.Installment
	if err := r.db.SelectContext(ctx, &installments, query, requestID); err != nil {
		return nil, err
	}

	return installments, nil
}

func (r *requestRepository) ListByApplicant(ctx context.Context, applicantID string) ([]*domain.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE applicant_id = $1 ORDER BY request_date DESC`
	return r.list(ctx, query, applicantID)
}

func (r *requestRepository) ListByStatus(ctx context.Context, status string) ([]*domain.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE status = $1 ORDER BY request_date`
	return r.list(ctx, query, status)
}

func (r *requestRepository) ListApprovedUnapplied(ctx context.Context) ([]*domain.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE status = 'approved' AND ledger_effect_applied = FALSE ORDER BY request_date`
	return r.list(ctx, query)
}

// ListUndecided deliberately ignores whether scores exist: a crash between
// the score write and the decision write leaves a scored submitted row that
// still needs a decision.
func (r *requestRepository) ListUndecided(ctx context.Context) ([]*domain.FinancingRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM financing_requests WHERE status = 'submitted' ORDER BY request_date`
	return r.list(ctx, query)
}

func (r *requestRepository) list(ctx context.Context, query string, args ...interface{}) ([]*domain.FinancingRequest, error) {
	var rows []requestRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	requests := make([]*domain.FinancingRequest, 0, len(rows))
	for i := range rows {
		requests = append(requests, rows[i].toDomain())
	}

	return requests, nil
}
