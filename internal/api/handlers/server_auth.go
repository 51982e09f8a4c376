package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"premium-freight.io/freight/internal/api/middleware"
	perrors "premium-freight.io/freight/internal/pkg/errors"
	"premium-freight.io/freight/internal/pkg/logger"
)

// LoginRequest carries UI credentials.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse returns the session token and the identity the UI renders.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Plant     string    `json:"plant"`
	Role      string    `json:"role"`
}

// Login handles POST /auth/login. Unknown email and wrong password both
// come back as AUTH_FAILED; the distinction stays in the server log.
func (s *Server) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(perrors.BadRequest(perrors.CodeValidationFailed, "email and password are required"))
		return
	}

	user, hash, role, err := s.creds.Credentials(c.Request.Context(), req.Email)
	if err == nil {
		err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password))
	}
	if err != nil {
		logger.Info("login rejected",
			zap.String("email", req.Email),
			zap.String("remote_addr", c.ClientIP()),
			zap.Error(err),
		)
		_ = c.Error(perrors.Unauthorized(perrors.CodeAuthFailed, "invalid credentials"))
		return
	}

	token, expiresAt, err := middleware.GenerateToken(s.jwtCfg, user.ID, user.Name, user.Plant, role)
	if err != nil {
		_ = c.Error(perrors.Wrap(err, perrors.CodeInternal, "issue session token", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		Username:  user.Name,
		Plant:     user.Plant,
		Role:      role,
	})
}
