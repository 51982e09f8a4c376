package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

const (
	insertOrderSQL = `
INSERT INTO orders (creator_id, plant, cost_eur, description, required_auth_level)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, created_at;`

	insertApprovalStateSQL = `
INSERT INTO approval_states (order_id, act_approv)
VALUES ($1, 0);`

	selectOrderSQL = `
SELECT id, creator_id, plant, cost_eur, description, required_auth_level, created_at
FROM orders
WHERE id = $1;`

	selectApprovalStateSQL = `
SELECT order_id, act_approv, updated_at
FROM approval_states
WHERE order_id = $1;`

	listOrdersSQL = `
SELECT o.id, o.creator_id, o.plant, o.cost_eur, o.description,
       o.required_auth_level, o.created_at, s.act_approv, s.updated_at
FROM orders o
JOIN approval_states s ON s.order_id = o.id
WHERE ($1 = '' OR o.plant = $1)
ORDER BY o.created_at DESC, o.id DESC
LIMIT $2 OFFSET $3;`

	// Awaiting orders for one approver: pending, and the next level matches
	// the approver's level with plant scope honored (NULL plant = regional).
	listAwaitingForApproverSQL = `
SELECT o.id, o.creator_id, o.plant, o.cost_eur, o.description,
       o.required_auth_level, o.created_at, s.act_approv, s.updated_at
FROM orders o
JOIN approval_states s ON s.order_id = o.id
JOIN approvers a ON a.approval_level = s.act_approv + 1
               AND (a.plant IS NULL OR a.plant = o.plant)
WHERE a.user_id = $1
  AND s.act_approv <> 99
  AND s.act_approv < o.required_auth_level
ORDER BY o.created_at, o.id;`

	updateStateGuardedSQL = `
UPDATE approval_states
SET act_approv = $3, updated_at = NOW()
WHERE order_id = $1 AND act_approv = $2;`
)

// OrderRow pairs an order with its current approval state for listings.
type OrderRow struct {
	Order domain.Order
	State domain.ApprovalState
}

// OrderRepository persists orders and their 1:1 approval state records.
type OrderRepository struct {
	db Querier
}

// NewOrderRepository creates an order repository over a pool or transaction.
func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// WithTx returns a copy of the repository bound to tx.
func (r *OrderRepository) WithTx(tx pgx.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

// Insert stores a new order and its zero approval state. The caller is
// expected to run this inside a transaction together with the CREATED
// history entry. ID and CreatedAt are filled in on the passed order.
func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	err := r.db.QueryRow(ctx, insertOrderSQL,
		o.CreatorID, o.Plant, o.CostEUR, o.Description, o.RequiredAuthLevel,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if _, err := r.db.Exec(ctx, insertApprovalStateSQL, o.ID); err != nil {
		return fmt.Errorf("insert approval state for order %d: %w", o.ID, err)
	}
	return nil
}

// Get loads one order by id.
func (r *OrderRepository) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.QueryRow(ctx, selectOrderSQL, orderID).Scan(
		&o.ID, &o.CreatorID, &o.Plant, &o.CostEUR, &o.Description,
		&o.RequiredAuthLevel, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select order %d: %w", orderID, err)
	}
	return &o, nil
}

// GetState reads the current approval state of an order. Always reads from
// the database; transition checks must never trust cached state.
func (r *OrderRepository) GetState(ctx context.Context, orderID int64) (*domain.ApprovalState, error) {
	var s domain.ApprovalState
	err := r.db.QueryRow(ctx, selectApprovalStateSQL, orderID).Scan(
		&s.OrderID, &s.ActApprov, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, perrors.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select approval state for order %d: %w", orderID, err)
	}
	return &s, nil
}

// List returns orders with their states, newest first. An empty plant
// returns all plants.
func (r *OrderRepository) List(ctx context.Context, plant string, limit, offset int) ([]OrderRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, listOrdersSQL, plant, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// ListAwaitingForApprover returns the pending orders whose next approval
// level the given user may act on. Used by the weekly digest.
func (r *OrderRepository) ListAwaitingForApprover(ctx context.Context, userID string) ([]OrderRow, error) {
	rows, err := r.db.Query(ctx, listAwaitingForApproverSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list awaiting orders for %s: %w", userID, err)
	}
	defer rows.Close()
	return scanOrderRows(rows)
}

// AdvanceStateGuarded performs the conditional transition
// act_approv: expected -> next. It returns false without error when the
// guard did not match, meaning another actor moved the order first.
func (r *OrderRepository) AdvanceStateGuarded(ctx context.Context, orderID int64, expected, next int) (bool, error) {
	tag, err := r.db.Exec(ctx, updateStateGuardedSQL, orderID, expected, next)
	if err != nil {
		return false, fmt.Errorf("advance order %d state %d->%d: %w", orderID, expected, next, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanOrderRows(rows pgx.Rows) ([]OrderRow, error) {
	var out []OrderRow
	for rows.Next() {
		var row OrderRow
		if err := rows.Scan(
			&row.Order.ID, &row.Order.CreatorID, &row.Order.Plant,
			&row.Order.CostEUR, &row.Order.Description,
			&row.Order.RequiredAuthLevel, &row.Order.CreatedAt,
			&row.State.ActApprov, &row.State.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		row.State.OrderID = row.Order.ID
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}
	return out, nil
}
