package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/recruitflow/unipile-sync/internal/domain"
)

// UpsertAccountStatus applies a status observation keyed by payload
// timestamp. A row is only overwritten by a strictly newer observation,
// so out-of-order and duplicate deliveries converge on the newest payload
// regardless of arrival order. Returns false when the observation was
// stale and discarded.
func (s *PostgresStore) UpsertAccountStatus(ctx context.Context, acct domain.ExternalAccount) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO external_accounts (account_id, provider, status, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id) DO UPDATE
		SET status = EXCLUDED.status, last_updated = EXCLUDED.last_updated
		WHERE external_accounts.last_updated < EXCLUDED.last_updated
	`, acct.AccountID, acct.Provider, acct.Status, acct.LastUpdated)
	if err != nil {
		return false, fmt.Errorf("upserting account status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, accountID string) (*domain.ExternalAccount, error) {
	var acct domain.ExternalAccount
	err := s.pool.QueryRow(ctx, `
		SELECT account_id, provider, status, last_updated
		FROM external_accounts WHERE account_id = $1
	`, accountID).Scan(&acct.AccountID, &acct.Provider, &acct.Status, &acct.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying account: %w", err)
	}
	return &acct, nil
}
