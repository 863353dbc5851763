package publisher

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/specmint/specmint/internal/domain/usage"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/pubsub"
)

// TopicUsageEvents is the in-process topic carrying recorded usage from
// the request path to the ledger writer.
const TopicUsageEvents = "usage_events"

// UsagePublisher hands recorded usage off the request path.
type UsagePublisher interface {
	Publish(ctx context.Context, event *usage.Event) error
}

type usagePublisher struct {
	pubSub pubsub.Publisher
	logger *logger.Logger
}

// NewUsagePublisher creates a new publisher
func NewUsagePublisher(pubSub pubsub.PubSub, logger *logger.Logger) UsagePublisher {
	return &usagePublisher{
		pubSub: pubSub,
		logger: logger,
	}
}

func (p *usagePublisher) Publish(ctx context.Context, event *usage.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal usage event").
			WithReportableDetails(map[string]any{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	msg := message.NewMessage(event.ID, payload)
	if err := p.pubSub.Publish(ctx, TopicUsageEvents, msg); err != nil {
		return ierr.WithError(err).
			WithHint("Failed to publish usage event").
			Mark(ierr.ErrSystem)
	}

	p.logger.Debugw("published usage event",
		"event_id", event.ID,
		"action_kind", event.ActionKind,
	)
	return nil
}
