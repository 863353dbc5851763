package repository

import (
	"github.com/specmint/specmint/internal/clickhouse"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/team"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/domain/user"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/postgres"
	clickhouseRepo "github.com/specmint/specmint/internal/repository/clickhouse"
	postgresRepo "github.com/specmint/specmint/internal/repository/postgres"
)

func NewUsageRepository(store *clickhouse.ClickHouseStore, logger *logger.Logger) usage.Repository {
	return clickhouseRepo.NewUsageRepository(store, logger)
}

func NewUserRepository(db postgres.IClient, logger *logger.Logger) user.Repository {
	return postgresRepo.NewUserRepository(db, logger)
}

func NewTeamRepository(db postgres.IClient, logger *logger.Logger) team.Repository {
	return postgresRepo.NewTeamRepository(db, logger)
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return postgresRepo.NewSubscriptionRepository(db, logger)
}
