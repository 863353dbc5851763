package service

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	jsoniter "github.com/json-iterator/go"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/metrics"
	"github.com/specmint/specmint/internal/publisher"
	"github.com/specmint/specmint/internal/pubsub"
)

// UsageConsumer drains the in-process usage topic into the ledger. It
// is the only writer of ledger entries at runtime; the request path
// never blocks on ClickHouse.
type UsageConsumer struct {
	pubSub    pubsub.Subscriber
	usageRepo usage.Repository
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewUsageConsumer(
	pubSub pubsub.PubSub,
	usageRepo usage.Repository,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *UsageConsumer {
	return &UsageConsumer{
		pubSub:    pubSub,
		usageRepo: usageRepo,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start consumes until the context is cancelled. Run it in its own
// goroutine; it returns only on subscription failure or shutdown.
func (c *UsageConsumer) Start(ctx context.Context) error {
	messages, err := c.pubSub.Subscribe(ctx, publisher.TopicUsageEvents)
	if err != nil {
		return err
	}

	c.logger.Infow("usage consumer started", "topic", publisher.TopicUsageEvents)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.process(ctx, msg)
		}
	}
}

// process always acks: the channel has no redelivery worth waiting for,
// and a poison message must not wedge the pipeline. Failed writes are
// logged and counted; the loss policy is under-counting over blocking.
func (c *UsageConsumer) process(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var event usage.Event
	if err := jsoniter.Unmarshal(msg.Payload, &event); err != nil {
		c.logger.Errorw("dropping undecodable usage message",
			"message_id", msg.UUID,
			"error", err,
		)
		return
	}

	if err := c.usageRepo.Insert(ctx, &event); err != nil {
		c.logger.Errorw("failed to persist usage event",
			"event_id", event.ID,
			"action_kind", event.ActionKind,
			"error", err,
		)
		c.metrics.UsageEventsTotal.WithLabelValues(event.ActionKind.String(), "persist_failed").Inc()
		return
	}

	c.metrics.UsageEventsTotal.WithLabelValues(event.ActionKind.String(), "persisted").Inc()
}
