// Package handlers implements the HTTP handlers of the approval service.
// Routes are registered by internal/app; handlers only contain request
// handling and delegate decisions to the workflow engine.
package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"premium-freight.io/freight/internal/api/middleware"
	"premium-freight.io/freight/internal/domain"
	"premium-freight.io/freight/internal/repository"
	"premium-freight.io/freight/internal/service"
	"premium-freight.io/freight/internal/workflow"
)

// OrderReader is the read access the handlers need for listings.
type OrderReader interface {
	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	GetState(ctx context.Context, orderID int64) (*domain.ApprovalState, error)
	List(ctx context.Context, plant string, limit, offset int) ([]repository.OrderRow, error)
}

// HistoryReader reads the audit trail.
type HistoryReader interface {
	ListByOrder(ctx context.Context, orderID int64) ([]domain.HistoryEntry, error)
}

// CredentialReader looks up login records for the session endpoint.
type CredentialReader interface {
	Credentials(ctx context.Context, email string) (*domain.User, string, string, error)
}

// Server holds all API handlers.
type Server struct {
	pool        *pgxpool.Pool
	jwtCfg      middleware.JWTConfig
	engine      *workflow.Engine
	intake      *workflow.Intake
	coordinator *workflow.Coordinator
	tokens      *service.ActionTokenService
	orders      OrderReader
	history     HistoryReader
	creds       CredentialReader
}

// ServerDeps holds all dependencies for creating a Server. Manual DI,
// no wire framework.
type ServerDeps struct {
	Pool        *pgxpool.Pool
	JWTCfg      middleware.JWTConfig
	Engine      *workflow.Engine
	Intake      *workflow.Intake
	Coordinator *workflow.Coordinator
	Tokens      *service.ActionTokenService
	Orders      OrderReader
	History     HistoryReader
	Creds       CredentialReader
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		pool:        deps.Pool,
		jwtCfg:      deps.JWTCfg,
		engine:      deps.Engine,
		intake:      deps.Intake,
		coordinator: deps.Coordinator,
		tokens:      deps.Tokens,
		orders:      deps.Orders,
		history:     deps.History,
		creds:       deps.Creds,
	}
}

// actorFromCtx extracts the authenticated user ID from the gin context.
func actorFromCtx(c *gin.Context) string {
	return c.GetString("user_id")
}
