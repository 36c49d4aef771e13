package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/midipay/financing-engine/internal/domain"
)

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	query := `
		SELECT id, alias, balance, is_suspended, created_at
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		return nil, err
	}

	return &account, nil
}

func (r *accountRepository) GetRecentTransactions(ctx context.Context, accountID string, limit int) ([]domain.Transaction, error) {
	query := `
		SELECT id, account_id, type, counterparty, reason, amount, status, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	var transactions []domain.Transaction
	if err := r.db.SelectContext(ctx, &transactions, query, accountID, limit); err != nil {
		return nil, err
	}

	return transactions, nil
}
