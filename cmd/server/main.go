package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/marketbase/premium-service/internal/adapters/notify"
	"github.com/marketbase/premium-service/internal/adapters/paygate"
	"github.com/marketbase/premium-service/internal/adapters/postgres"
	"github.com/marketbase/premium-service/internal/adapters/secrets"
	"github.com/marketbase/premium-service/internal/config"
	"github.com/marketbase/premium-service/internal/domain/ports"
	cronhandler "github.com/marketbase/premium-service/internal/handlers/cron"
	premiumhandler "github.com/marketbase/premium-service/internal/handlers/premium"
	"github.com/marketbase/premium-service/internal/middleware"
	"github.com/marketbase/premium-service/internal/services/lifecycle"
	"github.com/marketbase/premium-service/internal/services/premium"
	"github.com/marketbase/premium-service/internal/worker"
	"github.com/marketbase/premium-service/pkg/shutdown"
)

const providerName = "paygate"

func main() {
	// .env is optional; real deployments use actual environment variables
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	logger, err := initLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	secretManager, err := buildSecretManager(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize secret manager", zap.Error(err))
	}
	if err := resolveSecrets(ctx, cfg, secretManager); err != nil {
		logger.Fatal("failed to resolve secrets", zap.Error(err))
	}

	pool, err := connectDatabase(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	db := postgres.NewDBExecutor(pool)
	subs := postgres.NewSubscriptionRepository(db)
	payments := postgres.NewPaymentRepository(db)
	sellers := postgres.NewSellerProfileRepository(db)

	provider := paygate.NewProvider(paygate.Config{
		BaseURL:          cfg.Gateway.BaseURL,
		APIKey:           cfg.Gateway.APIKey,
		RequestTimeout:   cfg.Gateway.Timeout,
		RequestsPerSec:   cfg.Gateway.RequestsPerSec,
		Burst:            cfg.Gateway.Burst,
		FailureThreshold: cfg.Gateway.FailureThreshold,
		BreakerCooldown:  cfg.Gateway.BreakerCooldown,
	}, logger)

	var notifier ports.Notifier = notify.NopNotifier{}
	if cfg.Notifier.Endpoint != "" {
		notifier = notify.NewWebhookNotifier(cfg.Notifier.Endpoint, cfg.Notifier.Timeout, logger)
	} else {
		logger.Warn("NOTIFY_ENDPOINT not set, seller notifications disabled")
	}

	lifecycleService := lifecycle.NewService(db, subs, payments, sellers, provider, notifier, cfg.Plans, providerName, logger)
	adminService := premium.NewService(lifecycleService, subs, sellers, logger)

	reconciler := worker.NewReconciler(payments, subs, provider, lifecycleService,
		cfg.Worker.Interval, cfg.Worker.Grace, cfg.Worker.BatchSize, logger)

	apiHandler := premiumhandler.NewHandler(lifecycleService, adminService, logger)
	cronHandler := cronhandler.NewReconcileHandler(reconciler, cfg.Admin.CronSecret, logger)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20))

	router.Get("/cron/health", cronHandler.Health)
	router.Post("/cron/reconcile", cronHandler.Reconcile)
	router.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.Admin.APIKey, logger))
		apiHandler.Routes(r)
	})

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	shutdownManager := shutdown.NewManager(logger, 30*time.Second)
	shutdownManager.RegisterNoErr("database-pool", pool.Close)
	shutdownManager.RegisterHTTPServer("metrics-server", metricsServer)
	shutdownManager.RegisterHTTPServer("api-server", apiServer)
	shutdownManager.Register("reconciliation-worker", reconciler.Shutdown)

	go func() {
		logger.Info("metrics server listening", zap.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("premium service listening", zap.String("addr", apiServer.Addr))
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()

	reconciler.Start()

	shutdownManager.WaitForShutdown()
}

func initLogger(cfg config.LoggerConfig) (*zap.Logger, error) {
	if cfg.Development {
		return zap.NewDevelopment()
	}

	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = level
	return zapCfg.Build()
}

func buildSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretManager, error) {
	if cfg.Secrets.Backend == "aws" {
		return secrets.NewAWSSecretsManager(ctx, secrets.AWSSecretsManagerConfig{
			Region:   cfg.Secrets.Region,
			Profile:  cfg.Secrets.Profile,
			Endpoint: cfg.Secrets.Endpoint,
		}, logger)
	}
	return secrets.NewLocalSecretManager(), nil
}

// resolveSecrets fills in config values that reference secret names. A plain
// env value wins when no secret name is configured.
func resolveSecrets(ctx context.Context, cfg *config.Config, sm ports.SecretManager) error {
	if name := cfg.Database.PasswordSecretName; name != "" {
		value, err := sm.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve database password: %w", err)
		}
		cfg.Database.Password = value
	}
	if name := cfg.Gateway.APIKeySecretName; name != "" {
		value, err := sm.GetSecret(ctx, name)
		if err != nil {
			return fmt.Errorf("resolve gateway API key: %w", err)
		}
		cfg.Gateway.APIKey = value
	}

	if cfg.Database.Password == "" {
		return fmt.Errorf("database password not configured")
	}
	if cfg.Gateway.APIKey == "" {
		return fmt.Errorf("gateway API key not configured")
	}
	return nil
}

func connectDatabase(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
