package testutil

import (
	"context"
	"sync"

	"github.com/specmint/specmint/internal/domain/team"
	ierr "github.com/specmint/specmint/internal/errors"
)

// InMemoryTeamStore is an in-memory implementation of team.Repository.
// Membership is tracked as a set so CountMembers behaves like the live
// count the member dimension requires.
type InMemoryTeamStore struct {
	mu      sync.RWMutex
	teams   map[string]*team.Team
	members map[string]map[string]struct{}
}

func NewInMemoryTeamStore() *InMemoryTeamStore {
	return &InMemoryTeamStore{
		teams:   make(map[string]*team.Team),
		members: make(map[string]map[string]struct{}),
	}
}

func (s *InMemoryTeamStore) Create(ctx context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[t.ID]; exists {
		return ierr.NewError("team already exists").
			WithHint("A team with this id already exists").
			Mark(ierr.ErrAlreadyExists)
	}

	copied := *t
	s.teams[t.ID] = &copied
	s.members[t.ID] = map[string]struct{}{t.OwnerID: {}}
	return nil
}

func (s *InMemoryTeamStore) Get(ctx context.Context, id string) (*team.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.teams[id]
	if !exists {
		return nil, ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	copied := *t
	return &copied, nil
}

func (s *InMemoryTeamStore) Update(ctx context.Context, t *team.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.teams[t.ID]; !exists {
		return ierr.NewError("team not found").
			WithHintf("Team %s was not found", t.ID).
			Mark(ierr.ErrNotFound)
	}

	copied := *t
	s.teams[t.ID] = &copied
	return nil
}

func (s *InMemoryTeamStore) SetUsageQuota(ctx context.Context, id string, quota *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.teams[id]
	if !exists {
		return ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	t.UsageQuota = quota
	return nil
}

func (s *InMemoryTeamStore) CountMembers(ctx context.Context, id string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.teams[id]; !exists {
		return 0, ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	return int64(len(s.members[id])), nil
}

func (s *InMemoryTeamStore) IncrementSpecCount(ctx context.Context, id string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.teams[id]
	if !exists {
		return ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	t.SpecCount += delta
	return nil
}

func (s *InMemoryTeamStore) SetSpecCount(ctx context.Context, id string, count int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.teams[id]
	if !exists {
		return ierr.NewError("team not found").
			WithHintf("Team %s was not found", id).
			Mark(ierr.ErrNotFound)
	}
	t.SpecCount = count
	return nil
}

// AddMember adds a user to the team's member set. Test helper.
func (s *InMemoryTeamStore) AddMember(teamID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.members[teamID] == nil {
		s.members[teamID] = make(map[string]struct{})
	}
	s.members[teamID][userID] = struct{}{}
}

// Clear removes all teams from the store
func (s *InMemoryTeamStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = make(map[string]*team.Team)
	s.members = make(map[string]map[string]struct{})
}
