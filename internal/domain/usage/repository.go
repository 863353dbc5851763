package usage

import (
	"context"
	"time"

	"github.com/specmint/specmint/internal/types"
)

// Repository is the append-only usage ledger.
type Repository interface {
	// Insert appends one entry to the ledger.
	Insert(ctx context.Context, event *Event) error

	// BulkInsert appends a batch of entries.
	BulkInsert(ctx context.Context, events []*Event) error

	// Count returns the number of ledger entries matching the params.
	// This is the single aggregation query a quota check is allowed.
	Count(ctx context.Context, params *CountParams) (int64, error)

	// GetEvents lists raw entries for reporting, newest first.
	GetEvents(ctx context.Context, params *GetEventsParams) ([]*Event, error)

	// DeleteOlderThan removes entries past the retention horizon.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// CountAllByActor recomputes the lifetime count of one action kind for
	// an actor. Used by the counter reconciliation pass, never by checks.
	CountAllByActor(ctx context.Context, actor types.ActorRef, kind types.ActionKind) (int64, error)

	// DistinctActors lists actors with at least one entry of the kind
	// since the given time. Scopes the reconciliation pass to accounts
	// whose counters could have drifted.
	DistinctActors(ctx context.Context, kind types.ActionKind, since time.Time) ([]types.ActorRef, error)
}
