package team

import "context"

type Repository interface {
	Create(ctx context.Context, team *Team) error
	Get(ctx context.Context, id string) (*Team, error)
	Update(ctx context.Context, team *Team) error

	// SetUsageQuota sets or clears the specifications override.
	SetUsageQuota(ctx context.Context, id string, quota *int64) error

	// CountMembers returns the live member count. Membership is a set,
	// not an event count, so the team_members dimension reads this
	// instead of the usage ledger.
	CountMembers(ctx context.Context, id string) (int64, error)

	// IncrementSpecCount bumps the denormalized display counter.
	IncrementSpecCount(ctx context.Context, id string, delta int64) error

	// SetSpecCount overwrites the display counter during reconciliation.
	SetSpecCount(ctx context.Context, id string, count int64) error
}
