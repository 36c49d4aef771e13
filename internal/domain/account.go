package domain

import (
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

const (
	TransactionReceived = "received"
	TransactionSent     = "sent"
	TransactionDeposit  = "deposit"
)

const (
	TransactionCompleted = "completed"
	TransactionPending   = "pending"
	TransactionFailed    = "failed"
)

// Account is the engine's view of an account in the directory.
type Account struct {
	ID          string          `json:"id" db:"id"`
	Alias       string          `json:"alias" db:"alias"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	IsSuspended bool            `json:"is_suspended" db:"is_suspended"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// AliasIsPersonalized reports whether the alias is something other than a
// bare phone number. A chosen alias is a weak positive signal for the
// socio-professional score.
func (a *Account) AliasIsPersonalized() bool {
	for _, r := range a.Alias {
		if !unicode.IsDigit(r) && r != '+' && r != ' ' {
			return true
		}
	}
	return false
}

// Transaction is one entry of the append-only transaction log.
type Transaction struct {
	ID           string          `json:"id" db:"id"`
	AccountID    string          `json:"account_id" db:"account_id"`
	Type         string          `json:"type" db:"type"`
	Counterparty string          `json:"counterparty" db:"counterparty"`
	Reason       string          `json:"reason" db:"reason"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Status       string          `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// TransactionRecord is the payload appended to the transaction log when the
// engine moves money. The log is audit-only: the engine never reads it back.
type TransactionRecord struct {
	Type         string
	Counterparty string
	Reason       string
	Amount       decimal.Decimal
	Status       string
}

// ApplicantSnapshot is the fact set handed to the scoring source. It is
// assembled by the snapshot builder and carries no business judgement.
type ApplicantSnapshot struct {
	ApplicantID         string          `json:"applicant_id"`
	Balance             decimal.Decimal `json:"balance"`
	RecentTransactions  []Transaction   `json:"recent_transactions"`
	AliasIsPersonalized bool            `json:"alias_is_personalized"`
	Suspended           bool            `json:"suspended"`
}

// ReceivedActivity sums the count and volume of incoming transactions in the
// snapshot window.
func (s *ApplicantSnapshot) ReceivedActivity() (count int, volume decimal.Decimal) {
	volume = decimal.Zero
	for _, tx := range s.RecentTransactions {
		if tx.Type == TransactionReceived || tx.Type == TransactionDeposit {
			count++
			volume = volume.Add(tx.Amount)
		}
	}
	return count, volume
}
