package testutil

import (
	"context"
	"sync"

	"github.com/specmint/specmint/internal/domain/user"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
)

// InMemoryUserStore is an in-memory implementation of user.Repository
type InMemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*user.User
}

func NewInMemoryUserStore() *InMemoryUserStore {
	return &InMemoryUserStore{
		users: make(map[string]*user.User),
	}
}

func (s *InMemoryUserStore) Create(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; exists {
		return ierr.NewError("user already exists").
			WithHint("A user with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *InMemoryUserStore) Get(ctx context.Context, id string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.users[id]
	if !exists {
		return nil, ierr.NewError("user not found").
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	copied := *u
	return &copied, nil
}

func (s *InMemoryUserStore) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ierr.NewError("user not found").
		WithHintf("User with email %s was not found", email).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryUserStore) GetByStripeCustomerID(ctx context.Context, customerID string) (*user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.StripeCustomerID == customerID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, ierr.NewError("user not found").
		WithHintf("User with customer reference %s was not found", customerID).
		Mark(ierr.ErrNotFound)
}

func (s *InMemoryUserStore) Update(ctx context.Context, u *user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[u.ID]; !exists {
		return ierr.NewError("user not found").
			WithHintf("User %s was not found", u.ID).
			Mark(ierr.ErrNotFound)
	}

	copied := *u
	s.users[u.ID] = &copied
	return nil
}

func (s *InMemoryUserStore) SetTier(ctx context.Context, id string, tier types.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return ierr.NewError("user not found").
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	u.Tier = tier
	return nil
}

func (s *InMemoryUserStore) IncrementSpecCount(ctx context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return ierr.NewError("user not found").
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	u.SpecCount += delta
	return nil
}

func (s *InMemoryUserStore) SetSpecCount(ctx context.Context, id string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, exists := s.users[id]
	if !exists {
		return ierr.NewError("user not found").
			WithHintf("User %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	u.SpecCount = count
	return nil
}

// Clear removes all users from the store
func (s *InMemoryUserStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]*user.User)
}
