package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/pkg/logger"
)

// actionUnavailable is the only failure text the public endpoints emit.
// Unknown, replayed, expired and mismatched tokens must be
// indistinguishable to the caller; the detail goes to the log.
const actionUnavailable = "This action is no longer available."

// HandleAction handles GET /actions — the individual email-link endpoint.
// The actor and the order come from the consumed token, never from the
// request; the query parameters only have to match the token's binding.
func (s *Server) HandleAction(c *gin.Context) {
	ctx := c.Request.Context()
	orderID, _ := strconv.ParseInt(c.Query("order_id"), 10, 64)

	token, err := s.tokens.Consume(ctx, c.Query("token"), orderID)
	if err != nil {
		s.renderUnavailable(c, "consume action token", err)
		return
	}

	requested := c.Query("action")
	if requested != "" && requested != token.Action {
		// The token is already spent; a tampered action parameter does
		// not get a second chance.
		s.renderUnavailable(c, "action parameter mismatch",
			fmt.Errorf("token action %q, requested %q", token.Action, requested))
		return
	}

	action, err := domain.ParseAction(token.Action, c.Query("reason"))
	if err != nil {
		if token.Action == "reject" {
			c.String(http.StatusBadRequest, "A rejection reason is required. Please add &reason=... to the link.")
			return
		}
		s.renderUnavailable(c, "parse token action", err)
		return
	}

	res, err := s.engine.Submit(ctx, token.OrderID, token.UserID, action)
	if err != nil {
		s.renderUnavailable(c, "apply token action", err)
		return
	}

	c.String(http.StatusOK, "Order #%d %s. Thank you.", token.OrderID, pastTense(res.Status))
}

// HandleBulkAction handles GET /actions/bulk — the digest-link endpoint.
// Bulk tokens stay valid after use: the per-order terminal state is the
// replay guard, so re-clicking a digest link is benign.
func (s *Server) HandleBulkAction(c *gin.Context) {
	ctx := c.Request.Context()
	specificOrderID, _ := strconv.ParseInt(c.Query("order_id"), 10, 64)

	token, orderIDs, err := s.tokens.ResolveBulk(ctx, c.Query("token"), specificOrderID)
	if err != nil {
		s.renderUnavailable(c, "resolve bulk token", err)
		return
	}

	requested := c.Query("action")
	if requested != "" && requested != token.Action {
		s.renderUnavailable(c, "bulk action parameter mismatch",
			fmt.Errorf("token action %q, requested %q", token.Action, requested))
		return
	}

	action, err := domain.ParseAction(token.Action, c.Query("reason"))
	if err != nil {
		if token.Action == "reject" {
			c.String(http.StatusBadRequest, "A rejection reason is required. Please add &reason=... to the link.")
			return
		}
		s.renderUnavailable(c, "parse bulk token action", err)
		return
	}

	result, err := s.coordinator.ApplyBulkAction(ctx, orderIDs, token.UserID, action)
	if err != nil {
		s.renderUnavailable(c, "apply bulk action", err)
		return
	}

	c.String(http.StatusOK, "Processed %d order(s): %d applied, %d skipped (already decided or not eligible).",
		len(orderIDs), len(result.Succeeded), len(result.Failed))
}

func (s *Server) renderUnavailable(c *gin.Context, stage string, err error) {
	logger.Info("public action rejected",
		zap.String("stage", stage),
		zap.String("remote_addr", c.ClientIP()),
		zap.Error(err),
	)
	c.String(http.StatusGone, actionUnavailable)
}

func pastTense(status domain.Status) string {
	if status == domain.StatusRejected {
		return "rejected"
	}
	if status == domain.StatusApproved {
		return "approved"
	}
	return "updated"
}
