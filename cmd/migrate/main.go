package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/specmint/specmint/internal/clickhouse"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/logger"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL DEFAULT '',
		tier TEXT NOT NULL DEFAULT 'free',
		spec_count BIGINT NOT NULL DEFAULT 0,
		stripe_customer_id TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_stripe_customer_id ON users (stripe_customer_id) WHERE stripe_customer_id != ''`,
	`CREATE TABLE IF NOT EXISTS teams (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_id TEXT NOT NULL REFERENCES users (id),
		usage_quota BIGINT,
		spec_count BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS team_members (
		team_id TEXT NOT NULL REFERENCES teams (id),
		user_id TEXT NOT NULL REFERENCES users (id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (team_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		owner_user_id TEXT NOT NULL UNIQUE REFERENCES users (id),
		tier TEXT NOT NULL,
		subscription_status TEXT NOT NULL,
		external_customer_ref TEXT NOT NULL DEFAULT '',
		external_subscription_ref TEXT NOT NULL DEFAULT '',
		billing_interval TEXT NOT NULL DEFAULT '',
		current_period_start TIMESTAMPTZ NOT NULL DEFAULT now(),
		current_period_end TIMESTAMPTZ NOT NULL DEFAULT now(),
		cancel_at_period_end BOOLEAN NOT NULL DEFAULT false,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_external_ref ON subscriptions (external_subscription_ref)`,
}

const clickhouseSchema = `CREATE TABLE IF NOT EXISTS usage_events (
	id String,
	user_id String,
	team_id String,
	action_kind LowCardinality(String),
	properties String,
	timestamp DateTime64(3, 'UTC'),
	ingested_at DateTime64(3, 'UTC')
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(timestamp)
ORDER BY (team_id, user_id, action_kind, timestamp)`

func main() {
	dryRun := flag.Bool("dry-run", false, "Print migration SQL without executing it")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if *dryRun {
		for _, stmt := range postgresSchema {
			fmt.Println(stmt + ";")
		}
		fmt.Println(clickhouseSchema + ";")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Infow("connecting to postgres", "host", cfg.Postgres.Host)
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.Postgres.GetDSN())
	if err != nil {
		logger.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer db.Close()

	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Fatalf("Postgres migration failed: %v", err)
		}
	}
	logger.Info("postgres schema up to date")

	store, err := clickhouse.NewClickHouseStore(cfg)
	if err != nil {
		logger.Fatalf("Failed to connect to clickhouse: %v", err)
	}
	defer store.Close()

	if err := store.GetConn().Exec(ctx, clickhouseSchema); err != nil {
		logger.Fatalf("ClickHouse migration failed: %v", err)
	}
	logger.Info("clickhouse schema up to date")
}
