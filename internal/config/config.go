package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/specmint/specmint/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment   DeploymentConfig `validate:"required"`
	Server       ServerConfig     `validate:"required"`
	Logging      LoggingConfig    `validate:"required"`
	Postgres     PostgresConfig   `validate:"required"`
	ClickHouse   ClickHouseConfig `validate:"required"`
	Stripe       StripeConfig     `validate:"required"`
	Usage        UsageConfig      `validate:"required"`
	Notification NotificationConfig
	Webhook      WebhookConfig
	Sentry       SentryConfig
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host                   string
	Port                   int
	User                   string
	Password               string
	DBName                 string
	SSLMode                string
	MaxOpenConns           int
	MaxIdleConns           int
	ConnMaxLifetimeMinutes int
}

type ClickHouseConfig struct {
	Address  string
	TLS      bool
	Username string
	Password string
	Database string
}

// StripeConfig holds the payment processor credentials and the price
// catalog. A missing (tier, interval) price is an operator configuration
// error surfaced to the caller at checkout time.
type StripeConfig struct {
	SecretKey       string `validate:"required"`
	WebhookSecret   string `validate:"required"`
	PortalReturnURL string
	Prices          []PriceConfig
}

type PriceConfig struct {
	Tier     types.Tier            `validate:"required"`
	Interval types.BillingInterval `validate:"required"`
	PriceID  string                `validate:"required"`
	Amount   decimal.Decimal
}

// LookupPrice returns the configured price for a tier and interval pair.
func (c StripeConfig) LookupPrice(tier types.Tier, interval types.BillingInterval) (PriceConfig, bool) {
	for _, p := range c.Prices {
		if p.Tier == tier && p.Interval == interval {
			return p, true
		}
	}
	return PriceConfig{}, false
}

// TierForPrice resolves a processor price id back to the local tier and
// interval. Webhook handlers use this to derive tier from event metadata.
func (c StripeConfig) TierForPrice(priceID string) (types.Tier, types.BillingInterval, bool) {
	for _, p := range c.Prices {
		if p.PriceID == priceID {
			return p.Tier, p.Interval, true
		}
	}
	return "", "", false
}

type UsageConfig struct {
	RetentionDays     int    `validate:"required"`
	CleanupSchedule   string // cron expression for the retention sweep
	ReconcileSchedule string // cron expression for the counter reconciliation pass
}

type NotificationConfig struct {
	Enabled  bool
	Endpoint string
}

type WebhookConfig struct {
	// RateLimitRPS bounds inbound webhook requests per second per client IP.
	// Signature scanners are expected noise and should not reach the handler.
	RateLimitRPS   float64
	RateLimitBurst int
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64
}

func NewConfig() (*Configuration, error) {
	// Load .env if present, ignore when missing
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/specmint")

	v.SetEnvPrefix("SPECMINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", types.ModeLocal)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", types.LogLevelInfo)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.maxopenconns", 10)
	v.SetDefault("postgres.maxidleconns", 5)
	v.SetDefault("postgres.connmaxlifetimeminutes", 30)
	v.SetDefault("usage.retentiondays", 90)
	v.SetDefault("usage.cleanupschedule", "0 3 * * *")
	v.SetDefault("usage.reconcileschedule", "30 3 * * *")
	v.SetDefault("webhook.ratelimitrps", 10)
	v.SetDefault("webhook.ratelimitburst", 20)
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}
	for _, p := range c.Stripe.Prices {
		if err := p.Tier.Validate(); err != nil {
			return err
		}
		if err := p.Interval.Validate(); err != nil {
			return err
		}
		if !p.Tier.IsPaid() {
			return fmt.Errorf("price configured for non purchasable tier %q", p.Tier)
		}
	}
	return nil
}

// GetDefaultConfig returns a default configuration for local development
// and tests. Not suitable for serving real traffic.
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Stripe: StripeConfig{
			SecretKey:     "sk_test_default",
			WebhookSecret: "whsec_default",
		},
		Usage: UsageConfig{
			RetentionDays:     90,
			CleanupSchedule:   "0 3 * * *",
			ReconcileSchedule: "30 3 * * *",
		},
		Webhook: WebhookConfig{RateLimitRPS: 10, RateLimitBurst: 20},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User, c.Password, c.DBName, c.Host, c.Port, c.SSLMode,
	)
}
