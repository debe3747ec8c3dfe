package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/swistakmatt/2fa-app/internal/core/port"
	"github.com/swistakmatt/2fa-app/internal/infra/config"
	"github.com/swistakmatt/2fa-app/internal/infra/database"
	kafkainfra "github.com/swistakmatt/2fa-app/internal/infra/kafka"
	"github.com/swistakmatt/2fa-app/internal/infra/logger"
	redisinfra "github.com/swistakmatt/2fa-app/internal/infra/redis"
	"github.com/swistakmatt/2fa-app/internal/infra/security"
	"github.com/swistakmatt/2fa-app/internal/infra/telemetry"
	postgresrepo "github.com/swistakmatt/2fa-app/internal/repository/postgres"
	redisrepo "github.com/swistakmatt/2fa-app/internal/repository/redis"
	"github.com/swistakmatt/2fa-app/internal/transport/http/middleware"
	"github.com/swistakmatt/2fa-app/internal/transport/http/routes"
	"github.com/swistakmatt/2fa-app/internal/usecase"
)

type Application struct {
	cfg      *config.AppConfig
	engine   *gin.Engine
	logger   *zap.Logger
	pool     *pgxpool.Pool
	redis    *redisinfra.Client
	producer *kafkainfra.Producer
	tracer   *telemetry.TracerProvider
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if _, err := telemetry.Attach(ctx, cfg); err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	var tracer *telemetry.TracerProvider
	if cfg.Telemetry.OTLPEndpoint != "" {
		tracer, err = telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
		if err != nil {
			log.Warn("failed to init tracer provider, tracing disabled", zap.Error(err))
			tracer = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	hasher, err := security.NewHasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	tokenService, err := security.NewSessionTokenService(cfg.JWT.SigningSecret, cfg.JWT.Issuer, cfg.JWT.SessionTokenTTL)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init token service: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	challengeStore := redisrepo.NewChallengeRepository(redisClient.Client(), cfg.Redis.ChallengePrefix)

	resendWindow := cfg.TwoFA.ResendWindow
	if resendWindow <= 0 {
		resendWindow = 10 * time.Minute
	}
	resendLimiter := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.ResendPrefix,
		TTL:       resendWindow * 2,
	})

	loginWindow := cfg.RateLimit.WindowDuration
	if loginWindow <= 0 {
		loginWindow = time.Minute
	}
	loginLimiterStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.LoginPrefix,
		TTL:       loginWindow * 2,
	})
	rateLimiter := middleware.NewRateLimiter(loginLimiterStore, log)

	var notifier port.Notifier
	var eventPublisher port.EventPublisher
	var producer *kafkainfra.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			stub := kafkainfra.NewStubPublisher(log)
			notifier, eventPublisher = stub, stub
		} else {
			publisher := kafkainfra.NewPublisher(producer, log)
			notifier, eventPublisher = publisher, publisher
			log.Info("kafka publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		stub := kafkainfra.NewStubPublisher(log)
		notifier, eventPublisher = stub, stub
	}

	authService, err := usecase.NewAuthService(cfg.TwoFA, repos.Users, challengeStore, resendLimiter, notifier, hasher, tokenService)
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init auth service: %w", err)
	}

	registrationService, err := usecase.NewRegistrationService(repos.Users, eventPublisher, hasher, security.DefaultPasswordValidator())
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init registration service: %w", err)
	}

	profileService, err := usecase.NewProfileService(repos.Users, challengeStore, hasher, security.DefaultPasswordValidator())
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init profile service: %w", err)
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		pool.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: rateLimiter,
		Metrics:     metrics,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Registration: registrationService,
			Profile:      profileService,
		},
	})

	return &Application{
		cfg:      cfg,
		engine:   engine,
		logger:   log,
		pool:     pool,
		redis:    redisClient,
		producer: producer,
		tracer:   tracer,
	}, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer func() {
		if a.pool != nil {
			a.pool.Close()
		}
	}()
	defer func() {
		if a.redis != nil {
			_ = a.redis.Close()
		}
	}()
	defer func() {
		if a.producer != nil {
			_ = a.producer.Close()
		}
	}()
	defer func() {
		if a.tracer != nil {
			_ = a.tracer.Shutdown(context.Background())
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting 2FA API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}
