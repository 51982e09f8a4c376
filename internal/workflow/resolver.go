// Package workflow implements the multi-level approval state machine:
// the transition engine, the plant-scoped approver resolver and the bulk
// action coordinator.
package workflow

import (
	"context"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

// OrderStore reads orders and their approval state. State reads always hit
// the database; the engine never caches act_approv between steps.
type OrderStore interface {
	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	GetState(ctx context.Context, orderID int64) (*domain.ApprovalState, error)
}

// ApproverStore answers plant-scoped approver lookups.
type ApproverStore interface {
	FindForLevel(ctx context.Context, level int, plant string) ([]domain.User, error)
	Exists(ctx context.Context, userID string, level int, plant string) (bool, error)
}

// UserStore loads identity records for notification routing.
type UserStore interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// Resolver routes orders to the people allowed to act on them.
type Resolver struct {
	orders    OrderStore
	approvers ApproverStore
}

// NewResolver creates a resolver.
func NewResolver(orders OrderStore, approvers ApproverStore) *Resolver {
	return &Resolver{orders: orders, approvers: approvers}
}

// ResolveNextApprovers returns who may act on the order's next level.
// An empty set is a configuration defect and reported loudly, never
// silently skipped.
func (r *Resolver) ResolveNextApprovers(ctx context.Context, orderID int64) ([]domain.User, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	state, err := r.orders.GetState(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if state.IsTerminal(o.RequiredAuthLevel) {
		return nil, perrors.ErrAlreadyTerminal
	}
	return r.approversForLevel(ctx, state.NextLevel(), o.Plant)
}

// IsAuthorizedApprover reports whether userID may act at targetLevel for
// the order's plant. The same check guards token-originated and
// session-originated actions.
func (r *Resolver) IsAuthorizedApprover(ctx context.Context, userID string, orderID int64, targetLevel int) (bool, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return false, err
	}
	return r.approvers.Exists(ctx, userID, targetLevel, o.Plant)
}

func (r *Resolver) approversForLevel(ctx context.Context, level int, plant string) ([]domain.User, error) {
	users, err := r.approvers.FindForLevel(ctx, level, plant)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, perrors.ErrNoApproverConfigured
	}
	return users, nil
}
