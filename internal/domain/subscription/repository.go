package subscription

import "context"

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	Update(ctx context.Context, subscription *Subscription) error

	// GetByOwner returns the subscription row for a user, ierr.ErrNotFound
	// when the user never checked out.
	GetByOwner(ctx context.Context, ownerUserID string) (*Subscription, error)

	// GetByExternalSubRef resolves a processor subscription reference.
	// Webhook handlers use this for idempotent upserts.
	GetByExternalSubRef(ctx context.Context, ref string) (*Subscription, error)

	// Upsert creates or replaces the row keyed by owner user id. Replays
	// of the same external event converge to the same row.
	Upsert(ctx context.Context, subscription *Subscription) error
}
