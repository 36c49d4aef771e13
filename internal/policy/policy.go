package policy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/domain"
)

// Decision is the outcome of the decision bands. Final decisions are applied
// immediately; non-final ones wait for a committee reviewer.
type Decision struct {
	Status string
	Final  bool
	Reason string
}

// Bands holds the risk thresholds. Values come from configuration, never from
// constants in this package.
type Bands struct {
	ApproveBelow decimal.Decimal
	RejectAbove  decimal.Decimal
}

// BandsFrom extracts the decision bands from the policy configuration.
func BandsFrom(cfg *config.Config) Bands {
	return Bands{
		ApproveBelow: decimal.NewFromInt(int64(cfg.Policy.ApproveBelow)),
		RejectAbove:  decimal.NewFromInt(int64(cfg.Policy.RejectAbove)),
	}
}

// Decide maps a computed risk score, the requested amount and the product
// policy onto a status.
//
// Risk below the approval band approves, above the rejection band rejects,
// anything between goes to committee review. Two overrides apply: an amount
// above the product ceiling downgrades a low-risk approval to review, and an
// applicant with no transaction history never gets an automatic approval --
// review at best, rejected outright when the amount also exceeds the ceiling.
// An amount exactly at the ceiling does not exceed it.
func Decide(
	scores domain.ScoreSet,
	requestedAmount decimal.Decimal,
	product config.ProductPolicy,
	historyCount int,
	bands Bands,
) Decision {
	risk := scores.Risk.Value
	overCeiling := requestedAmount.GreaterThan(product.AmountCeiling)

	if historyCount == 0 {
		if overCeiling {
			return Decision{
				Status: domain.StatusRejected,
				Final:  true,
				Reason: fmt.Sprintf("rejected: no transaction history and requested amount %s exceeds the %s ceiling of %s. %s",
					requestedAmount, product.ProductType, product.AmountCeiling, scoreDigest(scores)),
			}
		}
		return Decision{
			Status: domain.StatusReview,
			Final:  false,
			Reason: fmt.Sprintf("review required: no transaction history to support an automatic decision. %s", scoreDigest(scores)),
		}
	}

	switch {
	case risk.LessThan(bands.ApproveBelow):
		if overCeiling {
			return Decision{
				Status: domain.StatusReview,
				Final:  false,
				Reason: fmt.Sprintf("review required: risk score %s is low but requested amount %s exceeds the %s ceiling of %s. %s",
					risk, requestedAmount, product.ProductType, product.AmountCeiling, scoreDigest(scores)),
			}
		}
		return Decision{
			Status: domain.StatusApproved,
			Final:  true,
			Reason: fmt.Sprintf("approved: risk score %s is below the approval threshold %s. %s",
				risk, bands.ApproveBelow, scoreDigest(scores)),
		}
	case risk.GreaterThan(bands.RejectAbove):
		return Decision{
			Status: domain.StatusRejected,
			Final:  true,
			Reason: fmt.Sprintf("rejected: risk score %s is above the rejection threshold %s. %s",
				risk, bands.RejectAbove, scoreDigest(scores)),
		}
	default:
		return Decision{
			Status: domain.StatusReview,
			Final:  false,
			Reason: fmt.Sprintf("review required: risk score %s falls in the committee band %s-%s. %s",
				risk, bands.ApproveBelow, bands.RejectAbove, scoreDigest(scores)),
		}
	}
}

// scoreDigest summarizes the score explanations for the decision record.
func scoreDigest(scores domain.ScoreSet) string {
	return fmt.Sprintf("Activity: %s. Behavioral: %s. Socio-professional: %s.",
		scores.Activity.Explanation,
		scores.Behavioral.Explanation,
		scores.SocioProfessional.Explanation,
	)
}
