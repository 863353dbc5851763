package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specmint/specmint/internal/domain/team"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/postgres"
	"github.com/specmint/specmint/internal/types"
)

type TeamRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewTeamRepository(db postgres.IClient, logger *logger.Logger) team.Repository {
	return &TeamRepository{db: db, logger: logger}
}

func (r *TeamRepository) Create(ctx context.Context, t *team.Team) error {
	query := `
		INSERT INTO teams (
			id, name, owner_id, usage_quota, spec_count,
			status, created_at, updated_at
		) VALUES (
			:id, :name, :owner_id, :usage_quota, :spec_count,
			:status, :created_at, :updated_at
		)
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, t); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create team").
			WithReportableDetails(map[string]any{
				"team_id": t.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *TeamRepository) Get(ctx context.Context, id string) (*team.Team, error) {
	var t team.Team
	err := r.db.Querier(ctx).GetContext(ctx, &t,
		"SELECT * FROM teams WHERE id = $1 AND status != $2", id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("team not found").
				WithHintf("Team %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get team").
			Mark(ierr.ErrDatabase)
	}
	return &t, nil
}

func (r *TeamRepository) Update(ctx context.Context, t *team.Team) error {
	t.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE teams SET
			name = :name,
			owner_id = :owner_id,
			usage_quota = :usage_quota,
			spec_count = :spec_count,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, t); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update team").
			WithReportableDetails(map[string]any{
				"team_id": t.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *TeamRepository) SetUsageQuota(ctx context.Context, id string, quota *int64) error {
	res, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE teams SET usage_quota = $1, updated_at = $2 WHERE id = $3",
		quota, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set team usage quota").
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *TeamRepository) CountMembers(ctx context.Context, id string) (int64, error) {
	var count int64
	err := r.db.Querier(ctx).GetContext(ctx, &count,
		"SELECT COUNT(*) FROM team_members WHERE team_id = $1", id)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count team members").
			WithReportableDetails(map[string]any{
				"team_id": id,
			}).
			Mark(ierr.ErrDatabase)
	}
	return count, nil
}

func (r *TeamRepository) IncrementSpecCount(ctx context.Context, id string, delta int64) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE teams SET spec_count = spec_count + $1, updated_at = $2 WHERE id = $3",
		delta, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to increment team spec count").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *TeamRepository) SetSpecCount(ctx context.Context, id string, count int64) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE teams SET spec_count = $1, updated_at = $2 WHERE id = $3",
		count, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set team spec count").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
