package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/midipay/financing-engine/internal/domain"
	"github.com/midipay/financing-engine/internal/repository"
	customError "github.com/midipay/financing-engine/pkg/errors"
)

// SnapshotBuilder assembles the fact set the scoring source consumes. It is
// a read adapter over the account directory and applies no business rules.
type SnapshotBuilder struct {
	accounts repository.AccountRepository
	window   int
}

func NewSnapshotBuilder(accounts repository.AccountRepository, window int) *SnapshotBuilder {
	return &SnapshotBuilder{accounts: accounts, window: window}
}

func (b *SnapshotBuilder) Build(ctx context.Context, applicantID string) (domain.ApplicantSnapshot, error) {
	account, err := b.accounts.GetAccount(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ApplicantSnapshot{}, customError.WrapApplicantNotFound(applicantID)
		}
		return domain.ApplicantSnapshot{}, customError.WrapDatabaseError(err)
	}

	transactions, err := b.accounts.GetRecentTransactions(ctx, applicantID, b.window)
	if err != nil {
		return domain.ApplicantSnapshot{}, customError.WrapDatabaseError(err)
	}

	return domain.ApplicantSnapshot{
		ApplicantID:         applicantID,
		Balance:             account.Balance,
		RecentTransactions:  transactions,
		AliasIsPersonalized: account.AliasIsPersonalized(),
		Suspended:           account.IsSuspended,
	}, nil
}
