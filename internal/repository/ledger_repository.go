package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/midipay/financing-engine/internal/domain"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

type ledgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

// ApplyApprovalCredit posts the one-time approval credit inside a single
// transaction. The check-and-set on ledger_effect_applied decides the race:
// whichever caller flips the flag performs the credit, every other caller
// gets false and must read the stored result instead.
func (r *ledgerRepository) ApplyApprovalCredit(
	ctx context.Context,
	requestID uuid.UUID,
	accountID string,
	amount decimal.Decimal,
	idempotencyKey string,
	record domain.TransactionRecord,
) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, customError.WrapLedgerError(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE financing_requests
		SET ledger_effect_applied = TRUE
		WHERE id = $1 AND ledger_effect_applied = FALSE
	`, requestID)
	if err != nil {
		return false, customError.WrapLedgerError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, customError.WrapLedgerError(err)
	}
	if affected == 0 {
		// Effect already applied; nothing to do, nothing written.
		return false, nil
	}

	// The idempotency key guards the credit even across out-of-band replays
	// of the same request id.
	result, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_credits (idempotency_key, account_id, amount, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`, idempotencyKey, accountID, amount)
	if err != nil {
		return false, customError.WrapLedgerError(err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, customError.WrapLedgerError(err)
	}

	if inserted == 1 {
		if _, err = tx.ExecContext(ctx, `
			UPDATE accounts SET balance = balance + $2 WHERE id = $1
		`, accountID, amount); err != nil {
			return false, customError.WrapLedgerError(err)
		}

		if err = appendRecord(ctx, tx, accountID, record); err != nil {
			return false, customError.WrapLedgerError(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, customError.WrapLedgerError(err)
	}

	return true, nil
}

// ApplyRepayment moves repaid_amount and the balance together. Conditional
// updates keep concurrent repayments from losing increments or overdrawing.
func (r *ledgerRepository) ApplyRepayment(
	ctx context.Context,
	requestID uuid.UUID,
	accountID string,
	amount decimal.Decimal,
	record domain.TransactionRecord,
) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return customError.WrapLedgerError(err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE financing_requests
		SET repaid_amount = repaid_amount + $2
		WHERE id = $1 AND repaid_amount + $2 <= requested_amount
	`, requestID, amount)
	if err != nil {
		return customError.WrapLedgerError(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return customError.WrapLedgerError(err)
	}
	if affected == 0 {
		return customError.WrapExcessiveRepayment(requestID.String())
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance - $2
		WHERE id = $1 AND balance >= $2
	`, accountID, amount)
	if err != nil {
		return customError.WrapLedgerError(err)
	}

	affected, err = result.RowsAffected()
	if err != nil {
		return customError.WrapLedgerError(err)
	}
	if affected == 0 {
		return customError.WrapInsufficientFunds(accountID)
	}

	if err = appendRecord(ctx, tx, accountID, record); err != nil {
		return customError.WrapLedgerError(err)
	}

	return tx.Commit()
}

// appendRecord writes one audit entry to the transaction log. The log is
// append-only; the engine never reads it back.
func appendRecord(ctx context.Context, tx *sqlx.Tx, accountID string, record domain.TransactionRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, account_id, type, counterparty, reason, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, uuid.New().String(), accountID, record.Type, record.Counterparty, record.Reason, record.Amount, record.Status)
	return err
}
