package testutil

import (
	"context"

	"github.com/specmint/specmint/internal/domain/usage"
)

// DirectUsagePublisher writes usage straight into the ledger store,
// bypassing the message bus so tests see recorded usage synchronously.
type DirectUsagePublisher struct {
	store *InMemoryUsageStore
}

func NewDirectUsagePublisher(store *InMemoryUsageStore) *DirectUsagePublisher {
	return &DirectUsagePublisher{store: store}
}

func (p *DirectUsagePublisher) Publish(ctx context.Context, event *usage.Event) error {
	return p.store.Insert(ctx, event)
}
