package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"premium-freight.io/freight/internal/domain"
)

const (
	insertHistorySQL = `
INSERT INTO approval_history (id, order_id, user_id, action, level, comment)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING created_at;`

	listHistorySQL = `
SELECT id, order_id, user_id, action, level, COALESCE(comment, ''), created_at
FROM approval_history
WHERE order_id = $1
ORDER BY created_at, id;`
)

// HistoryRepository appends to and reads the approval audit trail.
// There are deliberately no update or delete statements in this file.
type HistoryRepository struct {
	db Querier
}

// NewHistoryRepository creates a history repository over a pool or transaction.
func NewHistoryRepository(db Querier) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *HistoryRepository) WithTx(tx pgx.Tx) *HistoryRepository {
	return &HistoryRepository{db: tx}
}

// Append records one action. A missing ID is assigned a UUIDv7 so entries
// sort by creation order even at identical timestamps.
func (r *HistoryRepository) Append(ctx context.Context, e *domain.HistoryEntry) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate history id: %w", err)
		}
		e.ID = id.String()
	}
	err := r.db.QueryRow(ctx, insertHistorySQL,
		e.ID, e.OrderID, e.UserID, string(e.Action), e.Level, e.Comment,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append history for order %d: %w", e.OrderID, err)
	}
	return nil
}

// ListByOrder returns the full trail of one order, oldest first.
func (r *HistoryRepository) ListByOrder(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error) {
	rows, err := r.db.Query(ctx, listHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("list history for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var action string
		if err := rows.Scan(&e.ID, &e.OrderID, &e.UserID, &action, &e.Level, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Action = domain.ActionType(action)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return out, nil
}
