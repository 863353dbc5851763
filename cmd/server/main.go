package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/specmint/specmint/internal/api"
	v1 "github.com/specmint/specmint/internal/api/v1"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/clickhouse"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/gateway/stripe"
	"github.com/specmint/specmint/internal/httpclient"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/metrics"
	"github.com/specmint/specmint/internal/notify"
	"github.com/specmint/specmint/internal/postgres"
	"github.com/specmint/specmint/internal/publisher"
	"github.com/specmint/specmint/internal/pubsub"
	"github.com/specmint/specmint/internal/pubsub/memory"
	"github.com/specmint/specmint/internal/repository"
	"github.com/specmint/specmint/internal/sentry"
	"github.com/specmint/specmint/internal/service"
	"github.com/specmint/specmint/internal/validator"
	"go.uber.org/fx"
)

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Monitoring
			sentry.NewSentryService,
			metrics.NewMetrics,

			// Cache
			provideCache,

			// Postgres
			postgres.NewClient,

			// Clickhouse
			clickhouse.NewClickHouseStore,

			// PubSub
			memory.NewPubSub,
			publisher.NewUsagePublisher,

			// Payment gateway
			stripe.NewClient,

			// Notifications
			httpclient.NewRetryableClient,
			notify.NewNotifier,

			// Repositories
			repository.NewUserRepository,
			repository.NewTeamRepository,
			repository.NewSubscriptionRepository,
			repository.NewUsageRepository,

			// Services
			service.NewServiceParams,
			service.NewQuotaService,
			service.NewBillingService,
			service.NewMaintenanceService,
			provideUsageConsumer,

			// HTTP layer
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			sentry.RegisterHooks,
			startServer,
			startUsageConsumer,
			startMaintenance,
		),
	)
	app.Run()
}

func provideCache(log *logger.Logger) cache.Cache {
	return cache.Initialize(log)
}

func provideUsageConsumer(
	ps pubsub.PubSub,
	usageRepo usage.Repository,
	m *metrics.Metrics,
	log *logger.Logger,
) *service.UsageConsumer {
	return service.NewUsageConsumer(ps, usageRepo, m, log)
}

func provideHandlers(
	log *logger.Logger,
	quotaService service.QuotaService,
	billingService service.BillingService,
) api.Handlers {
	return api.Handlers{
		Health:  v1.NewHealthHandler(log),
		Billing: v1.NewBillingHandler(billingService, log),
		Usage:   v1.NewUsageHandler(quotaService, log),
		Webhook: v1.NewWebhookHandler(billingService, log),
	}
}

func provideRouter(
	handlers api.Handlers,
	cfg *config.Configuration,
	m *metrics.Metrics,
	quotaService service.QuotaService,
) *gin.Engine {
	return api.NewRouter(handlers, cfg, m, quotaService)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	r *gin.Engine,
	db postgres.IClient,
	store *clickhouse.ClickHouseStore,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting API server", "address", cfg.Server.Address)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalf("server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server")
			if err := srv.Shutdown(ctx); err != nil {
				return err
			}
			if err := store.Close(); err != nil {
				log.Errorw("failed to close clickhouse", "error", err)
			}
			return db.Close()
		},
	})
}

func startUsageConsumer(
	lc fx.Lifecycle,
	consumer *service.UsageConsumer,
	ps pubsub.PubSub,
	log *logger.Logger,
) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Errorw("usage consumer stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return ps.Close()
		},
	})
}

func startMaintenance(
	lc fx.Lifecycle,
	maintenance *service.MaintenanceService,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return maintenance.Start()
		},
		OnStop: func(context.Context) error {
			maintenance.Stop()
			return nil
		},
	})
}
