package service

import (
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/team"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/domain/user"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/metrics"
	"github.com/specmint/specmint/internal/notify"
	"github.com/specmint/specmint/internal/postgres"
	"github.com/specmint/specmint/internal/publisher"
)

// ServiceParams holds common dependencies for services
type ServiceParams struct {
	Logger  *logger.Logger
	Config  *config.Configuration
	DB      postgres.IClient
	Cache   cache.Cache
	Metrics *metrics.Metrics

	// Repositories
	UserRepo  user.Repository
	TeamRepo  team.Repository
	SubRepo   subscription.Repository
	UsageRepo usage.Repository

	// Collaborators
	Gateway        gateway.Gateway
	UsagePublisher publisher.UsagePublisher
	Notifier       notify.Notifier
}

// NewServiceParams assembles the common service dependencies for DI.
func NewServiceParams(
	logger *logger.Logger,
	config *config.Configuration,
	db postgres.IClient,
	cache cache.Cache,
	metrics *metrics.Metrics,
	userRepo user.Repository,
	teamRepo team.Repository,
	subRepo subscription.Repository,
	usageRepo usage.Repository,
	gateway gateway.Gateway,
	usagePublisher publisher.UsagePublisher,
	notifier notify.Notifier,
) ServiceParams {
	return ServiceParams{
		Logger:         logger,
		Config:         config,
		DB:             db,
		Cache:          cache,
		Metrics:        metrics,
		UserRepo:       userRepo,
		TeamRepo:       teamRepo,
		SubRepo:        subRepo,
		UsageRepo:      usageRepo,
		Gateway:        gateway,
		UsagePublisher: usagePublisher,
		Notifier:       notifier,
	}
}
