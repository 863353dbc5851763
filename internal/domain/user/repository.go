package user

import (
	"context"

	"github.com/specmint/specmint/internal/types"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	Get(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error)
	Update(ctx context.Context, user *User) error

	// SetTier updates the user's effective tier. Called only by the
	// subscription lifecycle.
	SetTier(ctx context.Context, id string, tier types.Tier) error

	// IncrementSpecCount bumps the denormalized display counter.
	IncrementSpecCount(ctx context.Context, id string, delta int64) error

	// SetSpecCount overwrites the display counter. Used by the
	// reconciliation pass that recomputes it from the ledger.
	SetSpecCount(ctx context.Context, id string, count int64) error
}
