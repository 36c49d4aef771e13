package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/domain"
)

// ScoringSource produces the Score-360 for a request. The engine does not
// care whether the implementation is a rule table or an external inference
// service; both sit behind this interface and a caller-side timeout.
type ScoringSource interface {
	Score(ctx context.Context, snapshot domain.ApplicantSnapshot, params domain.ScoringParams) (domain.ScoreSet, error)
}

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// RuleScorer is the deterministic default scoring source. Same snapshot and
// parameters always produce the same ScoreSet.
type RuleScorer struct {
	cfg *config.Config
}

func NewRuleScorer(cfg *config.Config) *RuleScorer {
	return &RuleScorer{cfg: cfg}
}

func (s *RuleScorer) Score(_ context.Context, snapshot domain.ApplicantSnapshot, params domain.ScoringParams) (domain.ScoreSet, error) {
	activity := s.activityScore(snapshot)
	behavioral := s.behavioralScore(snapshot, params)
	socio := s.socioProfessionalScore(snapshot, params)
	risk := s.riskScore(activity, behavioral, socio)

	return domain.ScoreSet{
		Activity:          activity,
		Behavioral:        behavioral,
		SocioProfessional: socio,
		Risk:              risk,
	}, nil
}

// activityScore reflects regularity and volume of incoming transactions in
// the snapshot window. No history at all means high risk.
func (s *RuleScorer) activityScore(snapshot domain.ApplicantSnapshot) domain.ScoreDetail {
	if len(snapshot.RecentTransactions) == 0 {
		return domain.ScoreDetail{
			Value:       decimal.NewFromInt(5),
			Explanation: "no transaction history in the snapshot window",
		}
	}

	received, volume := snapshot.ReceivedActivity()
	score := decimal.NewFromInt(int64(30 + received*7))

	// Steady incoming volume relative to the balance is the strongest signal.
	switch {
	case volume.GreaterThanOrEqual(snapshot.Balance):
		score = score.Add(decimal.NewFromInt(20))
	case volume.GreaterThanOrEqual(snapshot.Balance.Div(two)):
		score = score.Add(decimal.NewFromInt(10))
	}

	return domain.ScoreDetail{
		Value: clamp(score),
		Explanation: fmt.Sprintf("%d incoming transactions totalling %s over the last %d movements",
			received, volume, len(snapshot.RecentTransactions)),
	}
}

// behavioralScore weighs the requested amount against the balance and the
// product's high-amount threshold. A down payment at or above the configured
// relief ratio lowers the risk contribution.
func (s *RuleScorer) behavioralScore(snapshot domain.ApplicantSnapshot, params domain.ScoringParams) domain.ScoreDetail {
	product := s.cfg.ProductPolicyFor(params.ProductType)
	score := decimal.NewFromInt(70)
	notes := make([]string, 0, 3)

	switch {
	case snapshot.Balance.LessThanOrEqual(decimal.Zero):
		score = score.Sub(decimal.NewFromInt(40))
		notes = append(notes, "no balance to absorb the exposure")
	case params.RequestedAmount.GreaterThan(snapshot.Balance.Mul(two)):
		score = score.Sub(decimal.NewFromInt(30))
		notes = append(notes, "requested amount is more than twice the current balance")
	case params.RequestedAmount.GreaterThan(snapshot.Balance):
		score = score.Sub(decimal.NewFromInt(15))
		notes = append(notes, "requested amount exceeds the current balance")
	default:
		notes = append(notes, "requested amount is covered by the current balance")
	}

	if params.RequestedAmount.GreaterThan(product.HighAmountThreshold) {
		score = score.Sub(decimal.NewFromInt(20))
		notes = append(notes, fmt.Sprintf("amount above the %s high-amount mark of %s",
			params.ProductType, product.HighAmountThreshold))
	}

	if params.RequestedAmount.IsPositive() && !params.DownPayment.IsZero() {
		ratio := params.DownPayment.Div(params.RequestedAmount)
		if ratio.GreaterThanOrEqual(s.cfg.DownPaymentRelief()) {
			score = score.Add(decimal.NewFromInt(15))
			notes = append(notes, fmt.Sprintf("down payment covers %s%% of the purchase",
				ratio.Mul(hundred).Round(0)))
		}
	}

	return domain.ScoreDetail{
		Value:       clamp(score),
		Explanation: strings.Join(notes, "; "),
	}
}

// socioProfessionalScore is a bounded heuristic: a personalized alias is a
// small positive signal; for Islamic financing the stated purpose must be
// concrete and outside the prohibited categories.
func (s *RuleScorer) socioProfessionalScore(snapshot domain.ApplicantSnapshot, params domain.ScoringParams) domain.ScoreDetail {
	score := decimal.NewFromInt(50)
	notes := make([]string, 0, 3)

	if snapshot.AliasIsPersonalized {
		score = score.Add(decimal.NewFromInt(10))
		notes = append(notes, "personalized account alias")
	} else {
		notes = append(notes, "alias is a bare phone number, neutral signal")
	}

	if params.ProductType == domain.ProductIslamicFinancing {
		purpose := strings.ToLower(strings.TrimSpace(params.Purpose))
		switch {
		case prohibited(purpose, s.cfg.ProhibitedPurposeList()):
			score = score.Sub(decimal.NewFromInt(40))
			notes = append(notes, "financing purpose falls in a prohibited category")
		case len(strings.Fields(purpose)) < s.cfg.Policy.MinPurposeWords:
			score = score.Sub(decimal.NewFromInt(20))
			notes = append(notes, "financing purpose is too vague to assess")
		default:
			score = score.Add(decimal.NewFromInt(15))
			notes = append(notes, "financing purpose is concrete and admissible")
		}
	}

	return domain.ScoreDetail{
		Value:       clamp(score),
		Explanation: strings.Join(notes, "; "),
	}
}

// riskScore blends the complements of the three sub-scores, weighted per the
// configured split. Higher sub-scores mean lower risk.
func (s *RuleScorer) riskScore(activity, behavioral, socio domain.ScoreDetail) domain.ScoreDetail {
	wa := decimal.NewFromInt(int64(s.cfg.Policy.ActivityWeight))
	wb := decimal.NewFromInt(int64(s.cfg.Policy.BehavioralWeight))
	ws := decimal.NewFromInt(int64(s.cfg.Policy.SocioWeight))

	risk := hundred.Sub(activity.Value).Mul(wa).
		Add(hundred.Sub(behavioral.Value).Mul(wb)).
		Add(hundred.Sub(socio.Value).Mul(ws)).
		Div(hundred).
		Round(0)

	return domain.ScoreDetail{
		Value: clamp(risk),
		Explanation: fmt.Sprintf("weighted risk blend (%s/%s/%s) of activity %s, behavioral %s, socio-professional %s",
			wa, wb, ws, activity.Value, behavioral.Value, socio.Value),
	}
}

func prohibited(purpose string, categories []string) bool {
	for _, category := range categories {
		if category != "" && strings.Contains(purpose, category) {
			return true
		}
	}
	return false
}

func clamp(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(decimal.Zero) {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}
