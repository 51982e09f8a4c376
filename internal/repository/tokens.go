package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

const (
	insertActionTokenSQL = `
INSERT INTO action_tokens (token, order_id, user_id, action, expires_at)
VALUES ($1, $2, $3, $4, $5);`

	// The whole single-use contract is this one statement: flip is_used
	// exactly once, with expiry and binding checks folded into the WHERE
	// clause so no caller can observe which check failed.
	consumeActionTokenSQL = `
UPDATE action_tokens
SET is_used = TRUE, used_at = NOW()
WHERE token = $1
  AND is_used = FALSE
  AND (expires_at IS NULL OR expires_at > NOW())
RETURNING order_id, user_id, action;`

	insertBulkTokenSQL = `
INSERT INTO bulk_action_tokens (token, user_id, order_ids, action, expires_at)
VALUES ($1, $2, $3, $4, $5);`

	selectBulkTokenSQL = `
SELECT token, user_id, order_ids, action, expires_at, created_at
FROM bulk_action_tokens
WHERE token = $1
  AND (expires_at IS NULL OR expires_at > NOW());`

	deleteSpentActionTokensSQL = `
DELETE FROM action_tokens
WHERE (is_used = TRUE AND used_at < $1)
   OR (expires_at IS NOT NULL AND expires_at < $1);`

	deleteExpiredBulkTokensSQL = `
DELETE FROM bulk_action_tokens
WHERE expires_at IS NOT NULL AND expires_at < $1;`
)

// TokenRepository stores email-action tokens. Individual tokens are
// single-use; bulk tokens stay valid until expiry.
type TokenRepository struct {
	db Querier
}

// NewTokenRepository creates a token repository.
func NewTokenRepository(db Querier) *TokenRepository {
	return &TokenRepository{db: db}
}

// InsertAction stores a freshly minted individual token.
func (r *TokenRepository) InsertAction(ctx context.Context, t domain.ActionToken) error {
	if _, err := r.db.Exec(ctx, insertActionTokenSQL,
		t.Token, t.OrderID, t.UserID, t.Action, t.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert action token for order %d: %w", t.OrderID, err)
	}
	return nil
}

// ConsumeAction atomically marks the token used and returns its binding.
// Unknown, replayed and expired tokens are indistinguishable to the caller:
// all collapse to ErrTokenInvalid. Once consumed a token stays consumed,
// even if the transition it authorizes later fails.
func (r *TokenRepository) ConsumeAction(ctx context.Context, token string) (*domain.ActionToken, error) {
	t := domain.ActionToken{Token: token, IsUsed: true}
	err := r.db.QueryRow(ctx, consumeActionTokenSQL, token).Scan(&t.OrderID, &t.UserID, &t.Action)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("consume action token: %w", err)
	}
	return &t, nil
}

// InsertBulk stores a bulk token covering a set of orders.
func (r *TokenRepository) InsertBulk(ctx context.Context, t domain.BulkActionToken) error {
	if _, err := r.db.Exec(ctx, insertBulkTokenSQL,
		t.Token, t.UserID, t.OrderIDs, t.Action, t.ExpiresAt,
	); err != nil {
		return fmt.Errorf("insert bulk action token: %w", err)
	}
	return nil
}

// GetBulk loads a live bulk token. No used flag is read or written here:
// replay protection for bulk actions is each order's terminal state.
func (r *TokenRepository) GetBulk(ctx context.Context, token string) (*domain.BulkActionToken, error) {
	var t domain.BulkActionToken
	err := r.db.QueryRow(ctx, selectBulkTokenSQL, token).Scan(
		&t.Token, &t.UserID, &t.OrderIDs, &t.Action, &t.ExpiresAt, &t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perrors.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("select bulk action token: %w", err)
	}
	return &t, nil
}

// PurgeExpired removes spent and expired tokens older than cutoff.
// Returns the number of rows removed across both tables.
func (r *TokenRepository) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteSpentActionTokensSQL, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("purge action tokens: %w", err)
	}
	removed := tag.RowsAffected()

	tag, err = r.db.Exec(ctx, deleteExpiredBulkTokensSQL, cutoff.UTC())
	if err != nil {
		return removed, fmt.Errorf("purge bulk action tokens: %w", err)
	}
	return removed + tag.RowsAffected(), nil
}
