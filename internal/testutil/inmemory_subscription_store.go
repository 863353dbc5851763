package testutil

import (
	"context"
	"sync"

	"github.com/specmint/specmint/internal/domain/subscription"
	ierr "github.com/specmint/specmint/internal/errors"
)

// InMemorySubscriptionStore is an in-memory implementation of
// subscription.Repository. Rows are keyed by id; the owner and external
// reference lookups scan, which is fine at test scale.
type InMemorySubscriptionStore struct {
	mu   sync.RWMutex
	subs map[string]*subscription.Subscription
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		subs: make(map[string]*subscription.Subscription),
	}
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; exists {
		return ierr.NewError("subscription already exists").
			WithHint("A subscription with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	copied := *sub
	s.subs[sub.ID] = &copied
	return nil
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, exists := s.subs[id]
	if !exists {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	copied := *sub
	return &copied, nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subs[sub.ID]; !exists {
		return ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", sub.ID).
			Mark(ierr.ErrNotFound)
	}

	copied := *sub
	s.subs[sub.ID] = &copied
	return nil
}

func (s *InMemorySubscriptionStore) GetByOwner(ctx context.Context, ownerUserID string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.OwnerUserID == ownerUserID {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHintf("No subscription found for user %s", ownerUserID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) GetByExternalSubRef(ctx context.Context, ref string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.ExternalSubscriptionRef == ref {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, ierr.NewError("subscription not found").
		WithHintf("No subscription found for reference %s", ref).
		Mark(ierr.ErrNotFound)
}

func (s *InMemorySubscriptionStore) Upsert(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// One row per owner: replace any existing row for the same user.
	for id, existing := range s.subs {
		if existing.OwnerUserID == sub.OwnerUserID && id != sub.ID {
			delete(s.subs, id)
		}
	}

	copied := *sub
	s.subs[sub.ID] = &copied
	return nil
}

// Count returns the number of stored rows. Test helper.
func (s *InMemorySubscriptionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Clear removes all subscriptions from the store
func (s *InMemorySubscriptionStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = make(map[string]*subscription.Subscription)
}
