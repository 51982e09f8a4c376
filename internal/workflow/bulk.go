package workflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
	"premium-freight.io/freight/internal/pkg/logger"
)

// BulkFailure records why one order of a bulk action was skipped.
type BulkFailure struct {
	OrderID int64  `json:"order_id"`
	Code    string `json:"code"`
}

// BulkResult is the per-order outcome of a bulk action.
type BulkResult struct {
	Succeeded []int64       `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// Coordinator applies one action to many orders sequentially. Expected
// per-order conditions (already terminal, actor not authorized) are
// recorded and the batch continues; systemic store failures abort.
type Coordinator struct {
	engine *Engine
}

// NewCoordinator creates a bulk coordinator over the engine.
func NewCoordinator(engine *Engine) *Coordinator {
	return &Coordinator{engine: engine}
}

// ApplyBulkAction runs action for actorID over orderIDs in order.
func (c *Coordinator) ApplyBulkAction(ctx context.Context, orderIDs []int64, actorID string, action domain.Action) (*BulkResult, error) {
	result := &BulkResult{}
	for _, orderID := range orderIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		_, err := c.engine.Submit(ctx, orderID, actorID, action)
		if err == nil {
			result.Succeeded = append(result.Succeeded, orderID)
			continue
		}

		code, expected := classifyBulkError(err)
		if !expected {
			return nil, err
		}
		logger.Info("bulk action skipped order",
			zap.Int64("order_id", orderID),
			zap.String("actor_id", actorID),
			zap.String("code", code),
		)
		result.Failed = append(result.Failed, BulkFailure{OrderID: orderID, Code: code})
	}
	return result, nil
}

// classifyBulkError maps expected per-order failures to result codes.
// Anything else is systemic and aborts the batch.
func classifyBulkError(err error) (string, bool) {
	switch {
	case errors.Is(err, perrors.ErrAlreadyTerminal):
		return perrors.CodeAlreadyProcessed, true
	case errors.Is(err, perrors.ErrInvalidActor):
		return perrors.CodeNotAuthorized, true
	case errors.Is(err, perrors.ErrOrderNotFound):
		return perrors.CodeOrderNotFound, true
	case errors.Is(err, perrors.ErrNoApproverConfigured):
		return perrors.CodeNoApproverConfigured, true
	case errors.Is(err, perrors.ErrConcurrentModification):
		// Post-retry guard failure collapses into already-processed.
		return perrors.CodeAlreadyProcessed, true
	default:
		return "", false
	}
}
