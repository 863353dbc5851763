package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/specmint/specmint/internal/domain/usage"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
)

// InMemoryUsageStore is an in-memory implementation of usage.Repository
// with the same attribution semantics as the ClickHouse ledger: team
// entries match the team actor, individual entries match the user actor
// only when no team is attached.
type InMemoryUsageStore struct {
	mu     sync.RWMutex
	events []*usage.Event

	// CountCalls tracks aggregation queries so tests can assert the
	// unlimited fast path never touches the ledger.
	CountCalls int
}

func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{}
}

func (s *InMemoryUsageStore) Insert(ctx context.Context, event *usage.Event) error {
	if event == nil {
		return ierr.NewError("event is nil").
			WithHint("Event cannot be nil").
			Mark(ierr.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *event
	if copied.IngestedAt.IsZero() {
		copied.IngestedAt = time.Now().UTC()
	}
	s.events = append(s.events, &copied)
	return nil
}

func (s *InMemoryUsageStore) BulkInsert(ctx context.Context, events []*usage.Event) error {
	for _, event := range events {
		if err := s.Insert(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func matchesActor(e *usage.Event, actor types.ActorRef) bool {
	if actor.IsTeam() {
		return e.TeamID == actor.TeamID
	}
	return e.UserID == actor.UserID && e.TeamID == ""
}

func (s *InMemoryUsageStore) Count(ctx context.Context, params *usage.CountParams) (int64, error) {
	s.mu.Lock()
	s.CountCalls++
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.events {
		if !matchesActor(e, params.Actor) {
			continue
		}
		if len(params.Kinds) > 0 {
			matched := false
			for _, kind := range params.Kinds {
				if e.ActionKind == kind {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		if !params.Start.IsZero() && e.Timestamp.Before(params.Start) {
			continue
		}
		if !params.End.IsZero() && !e.Timestamp.Before(params.End) {
			continue
		}
		count++
	}
	return count, nil
}

func (s *InMemoryUsageStore) GetEvents(ctx context.Context, params *usage.GetEventsParams) ([]*usage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*usage.Event
	for _, e := range s.events {
		if !matchesActor(e, params.Actor) {
			continue
		}
		if params.Kind != "" && e.ActionKind != params.Kind {
			continue
		}
		if !params.Start.IsZero() && e.Timestamp.Before(params.Start) {
			continue
		}
		if !params.End.IsZero() && !e.Timestamp.Before(params.End) {
			continue
		}
		copied := *e
		result = append(result, &copied)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	if params.Limit > 0 && len(result) > params.Limit {
		result = result[:params.Limit]
	}
	return result, nil
}

func (s *InMemoryUsageStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []*usage.Event
	var removed int64
	for _, e := range s.events {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

func (s *InMemoryUsageStore) CountAllByActor(ctx context.Context, actor types.ActorRef, kind types.ActionKind) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.events {
		if matchesActor(e, actor) && e.ActionKind == kind {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryUsageStore) DistinctActors(ctx context.Context, kind types.ActionKind, since time.Time) ([]types.ActorRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[types.ActorRef]struct{})
	var actors []types.ActorRef
	for _, e := range s.events {
		if e.ActionKind != kind || e.Timestamp.Before(since) {
			continue
		}
		actor := e.Actor()
		if actor.IsTeam() {
			// Team entries collapse onto the team actor.
			actor.UserID = ""
		}
		if _, ok := seen[actor]; ok {
			continue
		}
		seen[actor] = struct{}{}
		actors = append(actors, actor)
	}
	return actors, nil
}

// Len returns the number of stored entries. Test helper.
func (s *InMemoryUsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear removes all entries from the store
func (s *InMemoryUsageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.CountCalls = 0
}
