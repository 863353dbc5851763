package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specmint/specmint/internal/domain/user"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/postgres"
	"github.com/specmint/specmint/internal/types"
)

type UserRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewUserRepository(db postgres.IClient, logger *logger.Logger) user.Repository {
	return &UserRepository{db: db, logger: logger}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	query := `
		INSERT INTO users (
			id, email, name, tier, spec_count, stripe_customer_id,
			status, created_at, updated_at
		) VALUES (
			:id, :email, :name, :tier, :spec_count, :stripe_customer_id,
			:status, :created_at, :updated_at
		)
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, u); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create user").
			WithReportableDetails(map[string]any{
				"user_id": u.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.db.Querier(ctx).GetContext(ctx, &u,
		"SELECT * FROM users WHERE id = $1 AND status != $2", id, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("user not found").
				WithHintf("User %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get user").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.db.Querier(ctx).GetContext(ctx, &u,
		"SELECT * FROM users WHERE email = $1 AND status != $2", email, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("user not found").
				WithHint("No user with this email").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get user by email").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}

func (r *UserRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	var u user.User
	err := r.db.Querier(ctx).GetContext(ctx, &u,
		"SELECT * FROM users WHERE stripe_customer_id = $1 AND status != $2",
		customerID, types.StatusDeleted)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("user not found").
				WithHint("No user with this payment customer reference").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get user by customer reference").
			Mark(ierr.ErrDatabase)
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	u.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE users SET
			email = :email,
			name = :name,
			tier = :tier,
			spec_count = :spec_count,
			stripe_customer_id = :stripe_customer_id,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, u); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update user").
			WithReportableDetails(map[string]any{
				"user_id": u.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *UserRepository) SetTier(ctx context.Context, id string, tier types.Tier) error {
	res, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE users SET tier = $1, updated_at = $2 WHERE id = $3",
		tier, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set user tier").
			WithReportableDetails(map[string]any{
				"user_id": id,
				"tier":    tier,
			}).
			Mark(ierr.ErrDatabase)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ierr.NewError("user not found").
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) IncrementSpecCount(ctx context.Context, id string, delta int64) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE users SET spec_count = spec_count + $1, updated_at = $2 WHERE id = $3",
		delta, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to increment spec count").
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *UserRepository) SetSpecCount(ctx context.Context, id string, count int64) error {
	_, err := r.db.Querier(ctx).ExecContext(ctx,
		"UPDATE users SET spec_count = $1, updated_at = $2 WHERE id = $3",
		count, time.Now().UTC(), id)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to set spec count").
			Mark(ierr.ErrDatabase)
	}
	return nil
}
