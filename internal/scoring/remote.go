package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/midipay/financing-engine/internal/config"
	"github.com/midipay/financing-engine/internal/domain"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

// RemoteScorer delegates scoring to an external inference endpoint. Calls are
// bounded by the configured timeout and retried a bounded number of times;
// anything else surfaces as ScoringUnavailable so the engine never guesses a
// score.
type RemoteScorer struct {
	url        string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
}

type remoteScoreRequest struct {
	Snapshot domain.ApplicantSnapshot `json:"snapshot"`
	Params   remoteScoreParams        `json:"params"`
}

type remoteScoreParams struct {
	ProductType     string `json:"product_type"`
	RequestedAmount string `json:"requested_amount"`
	DownPayment     string `json:"down_payment"`
	Purpose         string `json:"purpose,omitempty"`
}

func NewRemoteScorer(cfg *config.Config) *RemoteScorer {
	return &RemoteScorer{
		url:        cfg.Scoring.RemoteURL,
		client:     &http.Client{Timeout: cfg.Scoring.Timeout},
		maxRetries: cfg.Scoring.MaxRetries,
		retryDelay: cfg.Scoring.RetryDelay,
	}
}

func (s *RemoteScorer) Score(ctx context.Context, snapshot domain.ApplicantSnapshot, params domain.ScoringParams) (domain.ScoreSet, error) {
	payload, err := json.Marshal(remoteScoreRequest{
		Snapshot: snapshot,
		Params: remoteScoreParams{
			ProductType:     params.ProductType,
			RequestedAmount: params.RequestedAmount.String(),
			DownPayment:     params.DownPayment.String(),
			Purpose:         params.Purpose,
		},
	})
	if err != nil {
		return domain.ScoreSet{}, customError.WrapScoringUnavailable(err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.ScoreSet{}, customError.WrapScoringUnavailable(ctx.Err())
			case <-time.After(s.retryDelay * time.Duration(attempt)):
			}
		}

		scores, err := s.call(ctx, payload)
		if err == nil {
			return scores, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}

	return domain.ScoreSet{}, customError.WrapScoringUnavailable(lastErr)
}

func (s *RemoteScorer) call(ctx context.Context, payload []byte) (domain.ScoreSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return domain.ScoreSet{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.ScoreSet{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.ScoreSet{}, fmt.Errorf("scoring endpoint returned status %d", resp.StatusCode)
	}

	var scores domain.ScoreSet
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return domain.ScoreSet{}, fmt.Errorf("malformed scoring response: %w", err)
	}

	for _, detail := range []domain.ScoreDetail{scores.Activity, scores.Behavioral, scores.SocioProfessional, scores.Risk} {
		if detail.Value.IsNegative() || detail.Value.GreaterThan(hundred) {
			return domain.ScoreSet{}, fmt.Errorf("score value %s out of the 0-100 range", detail.Value)
		}
	}

	return scores, nil
}
