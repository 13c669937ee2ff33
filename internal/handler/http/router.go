package http

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
	"github.com/arcadia-online/auth-service/internal/handler/http/middleware"
	"github.com/arcadia-online/auth-service/internal/service"
)

// RouterDeps bundles everything the router wires together.
type RouterDeps struct {
	AuthService  *service.AuthService
	TokenService *service.TokenService
	Verification *service.VerificationService
	Rotator      *service.ServiceTokenRotator
	Siblings     *service.SiblingClient
	Users        repository.UserRepository
	Pool         *pgxpool.Pool
	Redis        *redis.Client
	Config       *config.Config
	Logger       *zap.Logger
}

// SetupRouter builds the gin engine with the full route table. The internal
// group only exists in multi-instance mode; single-instance deployments have
// no siblings to call it.
func SetupRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.CorsMiddleware())
	router.Use(middleware.MetricsMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Siblings, deps.Config, deps.Logger)
	verificationHandler := NewVerificationHandler(deps.Verification, deps.Users, deps.Logger)
	healthHandler := NewHealthHandler(deps.Pool, deps.Redis, deps.Logger)

	router.GET("/health", healthHandler.Live)
	router.GET("/readiness", healthHandler.Ready)
	if deps.Config.Telemetry.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.DeviceMiddleware())
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/link/verify", verificationHandler.VerifyLink)
		}

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(deps.TokenService, deps.Config.Server, deps.Config.Tokens.RefreshTTL, deps.Logger))
		{
			protected.POST("/auth/logout", authHandler.Logout)
			protected.POST("/auth/logout-all", authHandler.LogoutAll)
			protected.GET("/sessions", authHandler.ListSessions)
			protected.POST("/auth/otp/request", verificationHandler.RequestCode)
			protected.POST("/auth/otp/verify", verificationHandler.VerifyCode)
		}
	}

	if deps.Config.Cluster.MultiInstance {
		internalHandler := NewInternalHandler(deps.AuthService, deps.Logger)
		internal := router.Group("/internal/v1")
		internal.Use(middleware.ServiceAuthMiddleware(deps.Rotator, deps.Logger))
		{
			internal.POST("/sessions/revoke", internalHandler.RevokeSessions)
		}
	}

	return router
}
