package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/specmint/specmint/internal/domain/subscription"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/postgres"
)

type SubscriptionRepository struct {
	db     postgres.IClient
	logger *logger.Logger
}

func NewSubscriptionRepository(db postgres.IClient, logger *logger.Logger) subscription.Repository {
	return &SubscriptionRepository{db: db, logger: logger}
}

func (r *SubscriptionRepository) Create(ctx context.Context, s *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, owner_user_id, tier, subscription_status,
			external_customer_ref, external_subscription_ref,
			billing_interval, current_period_start, current_period_end,
			cancel_at_period_end, status, created_at, updated_at
		) VALUES (
			:id, :owner_user_id, :tier, :subscription_status,
			:external_customer_ref, :external_subscription_ref,
			:billing_interval, :current_period_start, :current_period_end,
			:cancel_at_period_end, :status, :created_at, :updated_at
		)
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := r.db.Querier(ctx).GetContext(ctx, &s,
		"SELECT * FROM subscriptions WHERE id = $1", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHintf("Subscription %s was not found", id).
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *SubscriptionRepository) Update(ctx context.Context, s *subscription.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE subscriptions SET
			tier = :tier,
			subscription_status = :subscription_status,
			external_customer_ref = :external_customer_ref,
			external_subscription_ref = :external_subscription_ref,
			billing_interval = :billing_interval,
			current_period_start = :current_period_start,
			current_period_end = :current_period_end,
			cancel_at_period_end = :cancel_at_period_end,
			status = :status,
			updated_at = :updated_at
		WHERE id = :id
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}

func (r *SubscriptionRepository) GetByOwner(ctx context.Context, ownerUserID string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := r.db.Querier(ctx).GetContext(ctx, &s,
		"SELECT * FROM subscriptions WHERE owner_user_id = $1", ownerUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHint("User has no subscription").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription by owner").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

func (r *SubscriptionRepository) GetByExternalSubRef(ctx context.Context, ref string) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := r.db.Querier(ctx).GetContext(ctx, &s,
		"SELECT * FROM subscriptions WHERE external_subscription_ref = $1", ref)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHint("No subscription with this external reference").
				Mark(ierr.ErrNotFound)
		}
		return nil, ierr.WithError(err).
			WithHint("Failed to get subscription by external reference").
			Mark(ierr.ErrDatabase)
	}
	return &s, nil
}

// Upsert writes the row keyed by owner so webhook replays converge to the
// same state instead of inserting duplicates.
func (r *SubscriptionRepository) Upsert(ctx context.Context, s *subscription.Subscription) error {
	s.UpdatedAt = time.Now().UTC()
	query := `
		INSERT INTO subscriptions (
			id, owner_user_id, tier, subscription_status,
			external_customer_ref, external_subscription_ref,
			billing_interval, current_period_start, current_period_end,
			cancel_at_period_end, status, created_at, updated_at
		) VALUES (
			:id, :owner_user_id, :tier, :subscription_status,
			:external_customer_ref, :external_subscription_ref,
			:billing_interval, :current_period_start, :current_period_end,
			:cancel_at_period_end, :status, :created_at, :updated_at
		)
		ON CONFLICT (owner_user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			subscription_status = EXCLUDED.subscription_status,
			external_customer_ref = EXCLUDED.external_customer_ref,
			external_subscription_ref = EXCLUDED.external_subscription_ref,
			billing_interval = EXCLUDED.billing_interval,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := r.db.Querier(ctx).NamedExecContext(ctx, query, s); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to upsert subscription").
			WithReportableDetails(map[string]any{
				"owner_user_id": s.OwnerUserID,
			}).
			Mark(ierr.ErrDatabase)
	}
	return nil
}
