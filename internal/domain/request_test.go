package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFinancingRequestAmounts(t *testing.T) {
	request := &FinancingRequest{
		RequestedAmount: decimal.NewFromInt(90000),
		DownPayment:     decimal.NewFromInt(18000),
		RepaidAmount:    decimal.NewFromInt(30000),
	}

	assert.True(t, request.Principal().Equal(decimal.NewFromInt(72000)))
	assert.True(t, request.Outstanding().Equal(decimal.NewFromInt(60000)))
}

func TestFinancingRequestIsTerminal(t *testing.T) {
	tests := []struct {
		status   string
		terminal bool
	}{
		{StatusSubmitted, false},
		{StatusReview, false},
		{StatusApproved, true},
		{StatusRejected, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			request := &FinancingRequest{Status: tt.status}
			assert.Equal(t, tt.terminal, request.IsTerminal())
		})
	}
}

func TestCreditIdempotencyKeyIsStable(t *testing.T) {
	id := uuid.New()
	request := &FinancingRequest{ID: id}

	assert.Equal(t, "approval-"+id.String(), request.CreditIdempotencyKey())
	assert.Equal(t, request.CreditIdempotencyKey(), request.CreditIdempotencyKey())
}

func TestScoringParamsExtraction(t *testing.T) {
	purpose := "buy a sewing machine"
	request := &FinancingRequest{
		ProductType:     ProductIslamicFinancing,
		RequestedAmount: decimal.NewFromInt(50000),
		DownPayment:     decimal.NewFromInt(10000),
		Purpose:         &purpose,
	}

	params := request.ScoringParams()
	assert.Equal(t, ProductIslamicFinancing, params.ProductType)
	assert.Equal(t, purpose, params.Purpose)

	noPurpose := &FinancingRequest{ProductType: ProductPurchaseCredit}
	assert.Equal(t, "", noPurpose.ScoringParams().Purpose)
}

func TestAliasIsPersonalized(t *testing.T) {
	tests := []struct {
		alias        string
		personalized bool
	}{
		{"+221 77 123 45 67", false},
		{"771234567", false},
		{"", false},
		{"Awa's shop", true},
		{"quincaillerie 77", true},
	}

	for _, tt := range tests {
		t.Run(tt.alias, func(t *testing.T) {
			account := &Account{Alias: tt.alias}
			assert.Equal(t, tt.personalized, account.AliasIsPersonalized())
		})
	}
}

func TestReceivedActivity(t *testing.T) {
	snapshot := ApplicantSnapshot{
		RecentTransactions: []Transaction{
			{Type: TransactionReceived, Amount: decimal.NewFromInt(1000)},
			{Type: TransactionDeposit, Amount: decimal.NewFromInt(500)},
			{Type: TransactionSent, Amount: decimal.NewFromInt(700)},
		},
	}

	count, volume := snapshot.ReceivedActivity()
	assert.Equal(t, 2, count)
	assert.True(t, volume.Equal(decimal.NewFromInt(1500)))
}
