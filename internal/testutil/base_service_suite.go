package testutil

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/team"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/domain/user"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/metrics"
	"github.com/specmint/specmint/internal/postgres"
	"github.com/specmint/specmint/internal/types"
	"github.com/specmint/specmint/internal/validator"
	"github.com/stretchr/testify/suite"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
	UserRepo  user.Repository
	TeamRepo  team.Repository
	SubRepo   subscription.Repository
	UsageRepo usage.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	db       postgres.IClient
	gateway  *FakeGateway
	notifier *CaptureNotifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	// Initialize validator
	validator.NewValidator()

	cfg := config.GetDefaultConfig()
	cfg.Stripe.Prices = []config.PriceConfig{
		{Tier: types.TierStarter, Interval: types.BillingIntervalMonthly, PriceID: "price_starter_monthly", Amount: decimal.NewFromInt(12)},
		{Tier: types.TierStarter, Interval: types.BillingIntervalAnnual, PriceID: "price_starter_annual", Amount: decimal.NewFromInt(120)},
		{Tier: types.TierProfessional, Interval: types.BillingIntervalMonthly, PriceID: "price_pro_monthly", Amount: decimal.NewFromInt(49)},
		{Tier: types.TierProfessional, Interval: types.BillingIntervalAnnual, PriceID: "price_pro_annual", Amount: decimal.NewFromInt(490)},
		{Tier: types.TierEnterprise, Interval: types.BillingIntervalMonthly, PriceID: "price_ent_monthly", Amount: decimal.NewFromInt(299)},
	}
	s.config = cfg

	var err error
	s.logger, err = logger.NewLogger(cfg)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}

	cache.Initialize(s.logger)
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		UserRepo:  NewInMemoryUserStore(),
		TeamRepo:  NewInMemoryTeamStore(),
		SubRepo:   NewInMemorySubscriptionStore(),
		UsageRepo: NewInMemoryUsageStore(),
	}

	s.db = NewMockPostgresClient()
	s.gateway = NewFakeGateway()
	s.notifier = NewCaptureNotifier()
	s.metrics = metrics.NewMetrics()
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.UserRepo.(*InMemoryUserStore).Clear()
	s.stores.TeamRepo.(*InMemoryTeamStore).Clear()
	s.stores.SubRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.UsageRepo.(*InMemoryUsageStore).Clear()
	s.notifier.Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetDB returns the test database client
func (s *BaseServiceTestSuite) GetDB() postgres.IClient {
	return s.db
}

// GetGateway returns the fake payment gateway
func (s *BaseServiceTestSuite) GetGateway() *FakeGateway {
	return s.gateway
}

// GetNotifier returns the capture notifier
func (s *BaseServiceTestSuite) GetNotifier() *CaptureNotifier {
	return s.notifier
}

// GetMetrics returns the per-suite metrics registry
func (s *BaseServiceTestSuite) GetMetrics() *metrics.Metrics {
	return s.metrics
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now
}

// GetUsageStore returns the ledger store with its test helpers exposed.
func (s *BaseServiceTestSuite) GetUsageStore() *InMemoryUsageStore {
	return s.stores.UsageRepo.(*InMemoryUsageStore)
}

// GetTeamStore returns the team store with its test helpers exposed.
func (s *BaseServiceTestSuite) GetTeamStore() *InMemoryTeamStore {
	return s.stores.TeamRepo.(*InMemoryTeamStore)
}
