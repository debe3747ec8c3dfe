package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/infra/config"
	"github.com/swistakmatt/2fa-app/internal/transport/http/handlers"
	"github.com/swistakmatt/2fa-app/internal/transport/http/middleware"
	"github.com/swistakmatt/2fa-app/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth         *usecase.AuthService
	Registration *usecase.RegistrationService
	Profile      *usecase.ProfileService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Metrics     *middleware.HTTPMetrics
	Services    ServiceSet
	Database    DatabaseChecker
	Cache       CacheChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the Gin engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	if deps.Config != nil && deps.Config.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))

	if deps.Config != nil && len(deps.Config.App.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.Config.App.CORSAllowedOrigins))
	}

	if deps.Metrics != nil {
		r.Use(deps.Metrics.Handler())
	}

	healthOptions := make([]handlers.HealthOption, 0, 2)

	if deps.Database != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("database", deps.Database.Ping))
	}

	if deps.Cache != nil {
		healthOptions = append(healthOptions, handlers.WithReadinessCheck("redis", deps.Cache.HealthCheck))
	}

	healthHandler := handlers.NewHealthHandler(healthOptions...)

	r.GET("/healthz", healthHandler.Status)
	r.GET("/readyz", healthHandler.Readiness)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	{
		authGroup := api.Group("/auth")

		authHandler := handlers.NewAuthHandler(
			deps.Services.Auth,
			handlers.WithRegistrationService(deps.Services.Registration),
		)

		var loginLimit, registerLimit int
		if deps.Config != nil {
			loginLimit = deps.Config.RateLimit.LoginMaxAttempts
			registerLimit = deps.Config.RateLimit.RegisterMaxAttempts
		}

		authHandler.RegisterRoutes(authGroup, handlers.RouteMiddlewares{
			Login:    buildThrottleMiddlewares(deps, "auth_login_ip", loginLimit),
			Register: buildThrottleMiddlewares(deps, "auth_register_ip", registerLimit),
		})

		if deps.Services.Auth != nil && deps.Services.Profile != nil {
			usersGroup := api.Group("/users")
			usersGroup.Use(middleware.RequireAuth(deps.Services.Auth))
			handlers.NewUserHandler(deps.Services.Profile).RegisterRoutes(usersGroup)
		}
	}

	return r
}

func buildThrottleMiddlewares(deps Dependencies, name string, limit int) []gin.HandlerFunc {
	if deps.RateLimiter == nil || deps.Config == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	rule := middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	}

	return []gin.HandlerFunc{deps.RateLimiter.RateLimit(rule)}
}
