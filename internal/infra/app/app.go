package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/bmyhack/omms-api/internal/core/port"
	"github.com/bmyhack/omms-api/internal/infra/config"
	"github.com/bmyhack/omms-api/internal/infra/database"
	kafkainfra "github.com/bmyhack/omms-api/internal/infra/kafka"
	"github.com/bmyhack/omms-api/internal/infra/logger"
	redisinfra "github.com/bmyhack/omms-api/internal/infra/redis"
	"github.com/bmyhack/omms-api/internal/infra/security"
	"github.com/bmyhack/omms-api/internal/infra/telemetry"
	postgresrepo "github.com/bmyhack/omms-api/internal/repository/postgres"
	redisrepo "github.com/bmyhack/omms-api/internal/repository/redis"
	"github.com/bmyhack/omms-api/internal/transport/http/middleware"
	"github.com/bmyhack/omms-api/internal/transport/http/routes"
	"github.com/bmyhack/omms-api/internal/usecase"
)

type Application struct {
	cfg    *config.AppConfig
	engine *gin.Engine
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redisinfra.Client
	tracer *telemetry.TracerProvider
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
			log.Warn("failed to init tracing, continuing without it", zap.Error(err))
			tracer = nil
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}

	tokenManager, err := security.NewTokenManager(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("init token manager: %w", err)
	}
	hasher := security.NewPasswordHasher(cfg.Argon2)

	redisClient, err := redisinfra.NewClient(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}

	cacheTTL := cfg.Redis.PermissionCacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	permissionCache := redisrepo.NewPermissionCache(redisClient.Client(), cacheTTL)
	rateLimitStore := redisrepo.NewRateLimitStore(redisClient.Client())

	repos := postgresrepo.NewRepositories(pool)

	var auditPublisher port.AuditPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafkainfra.NewProducer(cfg.Kafka, log)
		if err != nil {
			log.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
			auditPublisher = kafkainfra.NewStubPublisher(log)
		} else {
			auditPublisher = kafkainfra.NewAuditPublisher(kafkaProducer, cfg.App, log)
			log.Info("kafka audit publisher initialized", zap.Strings("brokers", cfg.Kafka.Brokers))
		}
	} else {
		log.Info("kafka brokers not configured, using stub publisher")
		auditPublisher = kafkainfra.NewStubPublisher(log)
	}

	rateLimitWindow := cfg.RateLimit.WindowDuration
	if rateLimitWindow <= 0 {
		rateLimitWindow = time.Minute
	}

	authService := usecase.NewAuthService(
		repos.Users, repos.Roles, repos.Permissions,
		tokenManager, hasher,
		permissionCache, rateLimitStore, auditPublisher, log,
		rateLimitWindow, cfg.RateLimit.LoginMaxAttempts,
	)
	userService := usecase.NewUserService(repos.Users, repos.Roles, repos.Permissions, hasher, permissionCache, auditPublisher, log)
	roleService := usecase.NewRoleService(repos.Roles, repos.Permissions, permissionCache, auditPublisher, log, cfg.Access.ProtectedRoles)
	permissionService := usecase.NewPermissionService(repos.Permissions, permissionCache, auditPublisher, log)

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.Register(routes.Dependencies{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics,
		Database: pool,
		Cache:    redisClient,
		Services: routes.ServiceSet{
			Auth:        authService,
			Users:       userService,
			Roles:       roleService,
			Permissions: permissionService,
		},
	})

	return &Application{
		cfg:    cfg,
		engine: engine,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
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

	a.logger.Info("starting OMMS API",
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
