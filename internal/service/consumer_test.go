package service

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/publisher"
	"github.com/specmint/specmint/internal/pubsub"
	"github.com/specmint/specmint/internal/pubsub/memory"
	"github.com/specmint/specmint/internal/testutil"
	"github.com/specmint/specmint/internal/types"
	"github.com/stretchr/testify/suite"
)

func publishRaw(ctx context.Context, ps pubsub.Publisher, payload []byte) error {
	return ps.Publish(ctx, publisher.TopicUsageEvents, message.NewMessage(types.GenerateUUID(), payload))
}

type UsageConsumerSuite struct {
	testutil.BaseServiceTestSuite
}

func TestUsageConsumer(t *testing.T) {
	suite.Run(t, new(UsageConsumerSuite))
}

func (s *UsageConsumerSuite) waitForEvents(store *testutil.InMemoryUsageStore, want int) {
	deadline := time.After(2 * time.Second)
	for {
		if store.Len() >= want {
			return
		}
		select {
		case <-deadline:
			s.FailNowf("timed out", "expected %d events, got %d", want, store.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *UsageConsumerSuite) TestPublishedEventsReachLedger() {
	ctx, cancel := context.WithCancel(s.GetContext())
	defer cancel()

	ps := memory.NewPubSub(s.GetLogger())
	defer ps.Close()

	store := s.GetUsageStore()
	consumer := NewUsageConsumer(ps, store, s.GetMetrics(), s.GetLogger())
	go func() {
		_ = consumer.Start(ctx)
	}()
	// The gochannel drops messages published before the subscriber is
	// attached; give the consumer a moment to subscribe.
	time.Sleep(50 * time.Millisecond)

	pub := publisher.NewUsagePublisher(ps, s.GetLogger())
	actor := types.ActorRef{UserID: "user_1"}
	for i := 0; i < 3; i++ {
		event := usage.NewEvent(actor, types.ActionAPICall, nil, time.Now().UTC())
		s.NoError(pub.Publish(ctx, event))
	}

	s.waitForEvents(store, 3)

	count, err := store.Count(ctx, &usage.CountParams{Actor: actor, Kinds: []types.ActionKind{types.ActionAPICall}})
	s.NoError(err)
	s.Equal(int64(3), count)
}

func (s *UsageConsumerSuite) TestUndecodableMessageDoesNotWedge() {
	ctx, cancel := context.WithCancel(s.GetContext())
	defer cancel()

	ps := memory.NewPubSub(s.GetLogger())
	defer ps.Close()

	store := s.GetUsageStore()
	consumer := NewUsageConsumer(ps, store, s.GetMetrics(), s.GetLogger())
	go func() {
		_ = consumer.Start(ctx)
	}()
	time.Sleep(50 * time.Millisecond)

	s.NoError(publishRaw(ctx, ps, []byte("not json")))

	pub := publisher.NewUsagePublisher(ps, s.GetLogger())
	event := usage.NewEvent(types.ActorRef{UserID: "user_1"}, types.ActionAPICall, nil, time.Now().UTC())
	s.NoError(pub.Publish(ctx, event))

	// The poison message is acked and dropped; the valid one still lands.
	s.waitForEvents(store, 1)
	s.Equal(1, store.Len())
}
