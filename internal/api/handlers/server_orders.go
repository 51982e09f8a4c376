package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	perrors "premium-freight.io/freight/internal/pkg/errors"
)

// CreateOrder handles POST /orders.
func (s *Server) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(perrors.BadRequest(perrors.CodeValidationFailed, err.Error()))
		return
	}

	o, err := s.intake.CreateOrder(c.Request.Context(), actorFromCtx(c), req.Plant, req.Description, req.CostEUR, req.RequiredLevel)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}

	state, err := s.orders.GetState(c.Request.Context(), o.ID)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(o, state))
}

// ListOrders handles GET /orders. An optional plant query narrows the
// listing; limit/offset paginate.
func (s *Server) ListOrders(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rows, err := s.orders.List(c.Request.Context(), c.Query("plant"), limit, offset)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderResponses(rows)})
}

// GetOrder handles GET /orders/:id.
func (s *Server) GetOrder(c *gin.Context) {
	orderID, ok := s.orderIDParam(c)
	if !ok {
		return
	}

	o, err := s.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	state, err := s.orders.GetState(c.Request.Context(), orderID)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(o, state))
}

// GetOrderHistory handles GET /orders/:id/history.
func (s *Server) GetOrderHistory(c *gin.Context) {
	orderID, ok := s.orderIDParam(c)
	if !ok {
		return
	}

	// 404 for unknown orders, empty trail for known ones.
	if _, err := s.orders.Get(c.Request.Context(), orderID); err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	entries, err := s.history.ListByOrder(c.Request.Context(), orderID)
	if err != nil {
		_ = c.Error(mapDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": toHistoryResponses(entries)})
}

func (s *Server) orderIDParam(c *gin.Context) (int64, bool) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || orderID <= 0 {
		_ = c.Error(perrors.BadRequest(perrors.CodeValidationFailed, "invalid order id"))
		return 0, false
	}
	return orderID, true
}
