package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"premium-freight.io/freight/internal/domain"
	perrors "premium-freight.io/freight/internal/pkg/errors"
)

// ApproveOrder handles POST /orders/:id/approve. The actor comes from the
// session; authorization against the approver matrix happens in the
// engine, exactly as for token-originated actions.
func (s *Server) ApproveOrder(c *gin.Context) {
	orderID, ok := s.orderIDParam(c)
	if !ok {
		return
	}

	res, err := s.engine.Approve(c.Request.Context(), orderID, actorFromCtx(c))
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":  orderID,
		"new_level": res.NewLevel,
		"status":    res.Status,
	})
}

// RejectOrder handles POST /orders/:id/reject.
func (s *Server) RejectOrder(c *gin.Context) {
	orderID, ok := s.orderIDParam(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(perrors.BadRequest(perrors.CodeReasonRequired, "a rejection reason is required"))
		return
	}

	res, err := s.engine.Reject(c.Request.Context(), orderID, actorFromCtx(c), req.Reason)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_id":  orderID,
		"new_level": res.NewLevel,
		"status":    res.Status,
	})
}

// BulkAction handles POST /orders/bulk: one action applied sequentially
// to a set of orders, with per-order outcomes in the response.
func (s *Server) BulkAction(c *gin.Context) {
	var req BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(perrors.BadRequest(perrors.CodeValidationFailed, err.Error()))
		return
	}

	action, err := domain.ParseAction(req.Action, req.Reason)
	if err != nil {
		_ = c.Error(perrors.BadRequest(perrors.CodeValidationFailed, err.Error()))
		return
	}

	result, err := s.coordinator.ApplyBulkAction(c.Request.Context(), req.OrderIDs, actorFromCtx(c), action)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, result)
}
