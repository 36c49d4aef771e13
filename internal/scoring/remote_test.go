package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midipay/financing-engine/internal/domain"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

func remoteScorerFor(t *testing.T, handler http.HandlerFunc) (*RemoteScorer, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := testConfig()
	cfg.Scoring.Source = "remote"
	cfg.Scoring.RemoteURL = server.URL

	return NewRemoteScorer(cfg), server
}

func validScoreSet() domain.ScoreSet {
	return domain.ScoreSet{
		Activity:          domain.ScoreDetail{Value: decimal.NewFromInt(60), Explanation: "steady activity"},
		Behavioral:        domain.ScoreDetail{Value: decimal.NewFromInt(70), Explanation: "covered"},
		SocioProfessional: domain.ScoreDetail{Value: decimal.NewFromInt(55), Explanation: "neutral"},
		Risk:              domain.ScoreDetail{Value: decimal.NewFromInt(38), Explanation: "blend"},
	}
}

func TestRemoteScorerSuccess(t *testing.T) {
	var gotRequest remoteScoreRequest

	scorer, _ := remoteScorerFor(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))
		require.NoError(t, json.NewEncoder(w).Encode(validScoreSet()))
	})

	snapshot := snapshotWith(2000, true, receivedTx(500))
	scores, err := scorer.Score(context.Background(), snapshot, purchaseParams(5000, 1000))
	require.NoError(t, err)

	assert.True(t, scores.Risk.Value.Equal(decimal.NewFromInt(38)))
	assert.Equal(t, "acct-1", gotRequest.Snapshot.ApplicantID)
	assert.Equal(t, "5000", gotRequest.Params.RequestedAmount)
	assert.Equal(t, "1000", gotRequest.Params.DownPayment)
}

func TestRemoteScorerRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32

	scorer, _ := remoteScorerFor(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		require.NoError(t, json.NewEncoder(w).Encode(validScoreSet()))
	})

	scores, err := scorer.Score(context.Background(), snapshotWith(2000, false), purchaseParams(5000, 0))
	require.NoError(t, err)
	assert.True(t, scores.Risk.Value.Equal(decimal.NewFromInt(38)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteScorerExhaustsRetries(t *testing.T) {
	var calls atomic.Int32

	scorer, _ := remoteScorerFor(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := scorer.Score(context.Background(), snapshotWith(2000, false), purchaseParams(5000, 0))
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeScoringUnavailable, customError.CodeOf(err))
	// initial attempt plus the configured retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemoteScorerRejectsOutOfRangeScores(t *testing.T) {
	scorer, _ := remoteScorerFor(t, func(w http.ResponseWriter, r *http.Request) {
		scores := validScoreSet()
		scores.Risk.Value = decimal.NewFromInt(140)
		require.NoError(t, json.NewEncoder(w).Encode(scores))
	})

	_, err := scorer.Score(context.Background(), snapshotWith(2000, false), purchaseParams(5000, 0))
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeScoringUnavailable, customError.CodeOf(err))
	assert.Contains(t, err.Error(), "out of the 0-100 range")
}

func TestRemoteScorerHonorsContextCancellation(t *testing.T) {
	scorer, _ := remoteScorerFor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scorer.Score(ctx, snapshotWith(2000, false), purchaseParams(5000, 0))
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeScoringUnavailable, customError.CodeOf(err))
}
