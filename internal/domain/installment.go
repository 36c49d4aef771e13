package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Installment is one line of a repayment schedule. The schedule is computed
// once at approval and never recomputed.
type Installment struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	RequestID        uuid.UUID       `json:"request_id" db:"request_id"`
	SequenceNumber   int             `json:"sequence_number" db:"sequence_number"`
	DueDate          time.Time       `json:"due_date" db:"due_date"`
	PrincipalPortion decimal.Decimal `json:"principal_portion" db:"principal_portion"`
	MarginPortion    decimal.Decimal `json:"margin_portion" db:"margin_portion"`
	TotalDue         decimal.Decimal `json:"total_due" db:"total_due"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}
