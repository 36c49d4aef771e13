package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/domain"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

// Build computes a repayment schedule with a flat per-period margin rate.
//
// The margin portion is principal * marginRate, identical on every
// installment. The principal portion is principal/installmentsCount rounded
// down to the currency scale, with the last installment absorbing the
// rounding residual so the totals reconcile exactly:
//
//	sum(principalPortion) == principal
//	sum(totalDue)         == principal + count * principal * marginRate
func Build(
	principal decimal.Decimal,
	marginRate decimal.Decimal,
	count int,
	frequency string,
	firstDue time.Time,
	currencyScale int32,
) ([]*domain.Installment, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, customError.WrapValidation("principal must be greater than zero")
	}
	if count < 1 {
		return nil, customError.WrapValidation("installments count must be at least 1")
	}
	if marginRate.IsNegative() {
		return nil, customError.WrapValidation("margin rate must not be negative")
	}
	if firstDue.IsZero() {
		return nil, customError.WrapValidation("first installment date is required")
	}
	if frequency != domain.FrequencyDaily && frequency != domain.FrequencyWeekly && frequency != domain.FrequencyMonthly {
		return nil, customError.WrapValidation(fmt.Sprintf("unknown repayment frequency %q", frequency))
	}

	n := decimal.NewFromInt(int64(count))
	basePrincipal := principal.Div(n).RoundDown(currencyScale)
	marginPortion := principal.Mul(marginRate)

	installments := make([]*domain.Installment, 0, count)
	for seq := 1; seq <= count; seq++ {
		principalPortion := basePrincipal
		if seq == count {
			// The principal rounding residual lands on the last installment.
			principalPortion = principal.Sub(basePrincipal.Mul(decimal.NewFromInt(int64(count - 1))))
		}

		installments = append(installments, &domain.Installment{
			ID:               uuid.New(),
			SequenceNumber:   seq,
			DueDate:          dueDate(firstDue, frequency, seq-1),
			PrincipalPortion: principalPortion,
			MarginPortion:    marginPortion,
			TotalDue:         principalPortion.Add(marginPortion),
		})
	}

	return installments, nil
}

func dueDate(first time.Time, frequency string, periods int) time.Time {
	switch frequency {
	case domain.FrequencyDaily:
		return first.AddDate(0, 0, periods)
	case domain.FrequencyWeekly:
		return first.AddDate(0, 0, 7*periods)
	default:
		return first.AddDate(0, periods, 0)
	}
}

// Summary renders the human-readable repayment plan stored on the request.
func Summary(installments []*domain.Installment, frequency string) string {
	if len(installments) == 0 {
		return ""
	}

	total := decimal.Zero
	for _, inst := range installments {
		total = total.Add(inst.TotalDue)
	}

	first := installments[0]
	return fmt.Sprintf("%d %s installments of %s starting %s, total %s",
		len(installments),
		frequency,
		first.TotalDue.String(),
		first.DueDate.Format("2006-01-02"),
		total.String(),
	)
}
