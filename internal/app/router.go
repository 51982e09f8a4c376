package app

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"premium-freight.io/freight/internal/api/handlers"
	"premium-freight.io/freight/internal/api/middleware"
	"premium-freight.io/freight/internal/config"
	"premium-freight.io/freight/internal/pkg/logger"
)

// Public routes that do NOT require JWT authentication. The action
// endpoints authenticate through the token in the link itself.
var publicPrefixes = []string{
	"/api/v1/auth/login",
	"/api/v1/health/",
	"/api/v1/actions",
}

func newRouter(cfg *config.Config, server *handlers.Server, signingKey []byte) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))
	router.Use(jwtSkipPublic(signingKey))

	v1 := router.Group("/api/v1")

	v1.POST("/auth/login", server.Login)
	v1.GET("/health/live", server.GetLiveness)
	v1.GET("/health/ready", server.GetReadiness)

	// Email links; reachable without a session.
	v1.GET("/actions", server.HandleAction)
	v1.GET("/actions/bulk", server.HandleBulkAction)

	v1.POST("/orders", server.CreateOrder)
	v1.GET("/orders", server.ListOrders)
	v1.GET("/orders/:id", server.GetOrder)
	v1.GET("/orders/:id/history", server.GetOrderHistory)
	v1.POST("/orders/:id/approve", server.ApproveOrder)
	v1.POST("/orders/:id/reject", server.RejectOrder)
	v1.POST("/orders/bulk", server.BulkAction)

	// Runtime log level control, behind JWT like the rest of the API.
	router.Any("/log/level", gin.WrapH(logger.HTTPHandler()))

	return router
}

// defaultDevOrigins is the fallback allowlist when no origins are
// configured; covers the local UI dev servers.
var defaultDevOrigins = []string{
	"http://localhost:5173",
	"http://localhost:3000",
}

// buildCORSConfig derives the CORS policy from server config. A literal
// "*" is stripped unless unsafe_allow_all_origins is set, and a wildcard
// never combines with credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", "X-Request-ID")
	corsCfg.AllowCredentials = cfg.Server.AllowCredentials

	if cfg.Server.UnsafeAllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
		return corsCfg
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		if origin == "*" || strings.TrimSpace(origin) == "" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = defaultDevOrigins
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}

// jwtSkipPublic returns middleware that applies JWT auth only on non-public routes.
func jwtSkipPublic(signingKey []byte) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(signingKey)
	return func(c *gin.Context) {
		for _, prefix := range publicPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}
