package handlers

import (
	"errors"
	"time"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
	"premium-freight.io/freight/internal/repository"
)

// CreateOrderRequest is the order intake payload. RequiredLevel zero means
// derive the level from the configured cost bands.
type CreateOrderRequest struct {
	Plant         string `json:"plant" binding:"required"`
	CostEUR       int64  `json:"cost_eur" binding:"required"`
	Description   string `json:"description"`
	RequiredLevel int    `json:"required_level"`
}

// DecisionRequest carries an approval decision body.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// BulkRequest applies one action to many orders.
type BulkRequest struct {
	OrderIDs []int64 `json:"order_ids" binding:"required"`
	Action   string  `json:"action" binding:"required"`
	Reason   string  `json:"reason"`
}

// OrderResponse is the wire form of an order with its current state.
type OrderResponse struct {
	ID                int64     `json:"id"`
	CreatorID         string    `json:"creator_id"`
	Plant             string    `json:"plant"`
	CostEUR           int64     `json:"cost_eur"`
	Description       string    `json:"description"`
	RequiredAuthLevel int       `json:"required_auth_level"`
	CurrentLevel      int       `json:"current_level"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HistoryResponse is one audit trail entry on the wire.
type HistoryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Level     int       `json:"level"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toOrderResponse(o *domain.Order, s *domain.ApprovalState) OrderResponse {
	return OrderResponse{
		ID:                o.ID,
		CreatorID:         o.CreatorID,
		Plant:             o.Plant,
		CostEUR:           o.CostEUR,
		Description:       o.Description,
		RequiredAuthLevel: o.RequiredAuthLevel,
		CurrentLevel:      s.ActApprov,
		Status:            string(s.DeriveStatus(o.RequiredAuthLevel)),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toOrderResponses(rows []repository.OrderRow) []OrderResponse {
	out := make([]OrderResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toOrderResponse(&rows[i].Order, &rows[i].State))
	}
	return out
}

func toHistoryResponses(entries []domain.HistoryEntry) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryResponse{
			ID:        e.ID,
			UserID:    e.UserID,
			Action:    string(e.Action),
			Level:     e.Level,
			Comment:   e.Comment,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// mapDomainError turns workflow sentinels into structured API errors.
// UI callers get specific codes; the public token endpoints never use
// this mapping and collapse everything to the generic unavailable page.
func mapDomainError(err error) *perrors.AppError {
	var appErr *perrors.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, perrors.ErrOrderNotFound):
		return perrors.New(perrors.CodeOrderNotFound, "order not found", 404)
	case errors.Is(err, perrors.ErrInvalidActor):
		return perrors.Forbidden(perrors.CodeNotAuthorized, "actor is not authorized for this approval level")
	case errors.Is(err, perrors.ErrAlreadyTerminal):
		return perrors.ErrAlreadyProcessedf()
	case errors.Is(err, perrors.ErrReasonMissing):
		return perrors.BadRequest(perrors.CodeReasonRequired, "a rejection reason is required")
	case errors.Is(err, perrors.ErrNoApproverConfigured):
		return perrors.Internal(perrors.CodeNoApproverConfigured, "no approver configured for the next level")
	case errors.Is(err, perrors.ErrConcurrentModification):
		// The engine already retried once against fresh state; a guard
		// that still fails means someone else decided the order.
		return perrors.ErrAlreadyProcessedf()
	case errors.Is(err, perrors.ErrTokenInvalid):
		return perrors.ErrTokenInvalidf()
	default:
		return perrors.Wrap(err, perrors.CodeInternal, "internal error", 500)
	}
}
