package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/config"
	"github.com/stemsi/exstem-cms/internal/handler"
	"github.com/stemsi/exstem-cms/internal/metrics"
	"github.com/stemsi/exstem-cms/internal/middleware"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stemsi/exstem-cms/internal/service"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Auth     *handler.AuthHandler
	Question *handler.QuestionHandler
	Security *handler.SecurityHandler
	System   *handler.SystemHandler
}

// Deps are the cross-cutting pieces the middleware stack needs.
type Deps struct {
	Auth         *service.AuthService
	Metrics      *metrics.PipelineMetrics
	LoginLimiter *middleware.RateLimiter
	Log          zerolog.Logger
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(deps Deps, handlers *Handlers, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(deps.Metrics.GinMiddleware())

	router.GET("/health", handlers.System.Health)
	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	// ─── 1. Auth Group (Public, Rate Limited) ──────────────────────────
	auth := router.Group("/api/v1/auth")
	{
		auth.POST("/login", deps.LoginLimiter.Middleware(), handlers.Auth.Login)
		auth.POST("/logout", middleware.RequireJWT(deps.Auth), handlers.Auth.Logout)
	}

	// ─── 2. Authoring Group ────────────────────────────────────────────
	// Tokens are optional here: the security context guard audits and
	// rejects anonymous calls itself.
	authoring := router.Group("/api/v1/authors/:author_id")
	authoring.Use(
		middleware.Authenticate(deps.Auth),
		middleware.AttachSession(deps.Auth, deps.Log),
	)
	{
		authoring.PUT("/question-banks/:qbank_id/questions", handlers.Question.UpsertQuestion)
	}

	// ─── 3. Admin Group (JWT + ADMIN role + live session) ──────────────
	admin := router.Group("/api/v1/admin")
	admin.Use(
		middleware.RequireJWT(deps.Auth),
		middleware.RequireRole(model.RoleAdmin),
		middleware.AttachSession(deps.Auth, deps.Log),
	)
	{
		admin.GET("/security/metrics", handlers.Security.PipelineMetrics)
		admin.GET("/security/overview", handlers.Security.Overview)
		admin.GET("/system/metrics", handlers.System.SystemMetricsSSE)
	}

	// ─── 4. WebSocket Group ────────────────────────────────────────────
	// Browsers cannot set headers on the upgrade request, so the token may
	// arrive as ?token=.
	ws := router.Group("/ws/v1")
	ws.Use(
		middleware.RequireJWT(deps.Auth),
		middleware.RequireRole(model.RoleAdmin),
		middleware.AttachSession(deps.Auth, deps.Log),
	)
	{
		ws.GET("/security/events", handlers.Security.EventStream)
	}

	return router
}
