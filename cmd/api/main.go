package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/easybody/auth-gateway/internal/api/http"
	"github.com/easybody/auth-gateway/internal/api/http/handlers"
	"github.com/easybody/auth-gateway/internal/auth"
	"github.com/easybody/auth-gateway/internal/backend"
	"github.com/easybody/auth-gateway/internal/config"
	"github.com/easybody/auth-gateway/internal/events"
	"github.com/easybody/auth-gateway/internal/identity"
	"github.com/easybody/auth-gateway/internal/messaging/rabbitmq"
	"github.com/easybody/auth-gateway/internal/observability"
	"github.com/easybody/auth-gateway/internal/persistence"
	"github.com/easybody/auth-gateway/internal/service"
	"github.com/easybody/auth-gateway/internal/storage"
	"github.com/easybody/auth-gateway/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Env)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	reporter, err := observability.NewErrorReporter(cfg.Sentry, cfg.App.Version)
	if err != nil {
		logger.Fatal("failed to init sentry", zap.Error(err))
	}
	defer reporter.Flush(2 * time.Second)
	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.RedisForStorage(*cfg, logger)
	defer redis.Close()

	store, closeStore, err := storage.Open(ctx, cfg.Storage, storage.Backends{Postgres: pg, Redis: redis}, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore() //nolint:errcheck

	dispatcher := events.NewInMemoryDispatcher()

	var publisher worker.Publisher
	if cfg.Rabbit.URL != "" {
		p, err := rabbitmq.NewPublisher(cfg.Rabbit.URL, cfg.Rabbit.Exchange, rabbitmq.WithPublishWait(cfg.Notification.PublishWait))
		if err != nil {
			logger.Warn("rabbitmq unavailable; notifications are logged only", zap.Error(err))
		} else {
			defer p.Close() //nolint:errcheck
			publisher = p
		}
	}
	notifier := worker.NewNotificationWorker(publisher, logger, worker.Options{
		QueueSize:   cfg.Notification.QueueSize,
		Workers:     cfg.Notification.Workers,
		PublishWait: cfg.Notification.PublishWait,
	})
	notifier.Start(ctx)
	service.NewNotificationService(dispatcher, notifier, logger, cfg.Notification).RegisterHandlers()

	deps := identity.FactoryDeps{Dispatcher: dispatcher, Logger: logger}
	if cfg.Auth.UseMock {
		deps.Credentials = identity.NewCredentialStore(store, cfg.Auth.BcryptCost)
		if err := identity.SeedDefaults(ctx, *cfg, deps.Credentials, logger); err != nil {
			logger.Fatal("failed to seed mock identities", zap.Error(err))
		}
	} else {
		client, err := identity.NewCognitoClient(ctx, cfg.Cognito)
		if err != nil {
			logger.Fatal("failed to init cognito client", zap.Error(err))
		}
		deps.Cognito = client
	}
	providers, err := identity.NewFactory(*cfg, deps)
	if err != nil {
		logger.Fatal("failed to select identity provider", zap.Error(err))
	}
	logger.Info("identity provider selected", zap.String("provider", providers.Name()))

	backendClient := backend.NewClient(cfg.Backend, logger)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		Store:      store,
		Providers:  providers,
		Backend:    backendClient,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	cookie := auth.CookieOptions{Name: cfg.Auth.CookieName, TTL: cfg.Auth.CookieTTL, Secure: cfg.Auth.CookieSecure}
	checks := map[string]handlers.Pinger{"storage": store}
	if cfg.Storage.Driver == config.StorageRedis {
		checks["redis"] = redis
	}
	if pg.Configured() {
		checks["postgres"] = pg
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:        logger,
		Metrics:       metrics,
		Reporter:      reporter,
		Timeout:       cfg.App.RequestTimeout(),
		DeviceCookie:  cfg.Auth.DeviceCookie,
		SecureCookies: cfg.Auth.CookieSecure,
	})
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, providers.Name(), checks),
		Auth:    handlers.NewAuthHandler(authService, cookie),
		Search:  handlers.NewSearchHandler(authService, backendClient, cookie),
		Proxy:   handlers.NewProxyHandler(authService, backendClient, cookie, cfg.Frontend.Upstream, logger),
		Guard:   auth.NewRouteGuard(cfg.Auth.CookieName, cfg.Auth.LoginPath),
		Metrics: metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	notifier.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
