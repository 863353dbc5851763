package service

import (
	"context"
	"time"

	"github.com/samber/lo"
	"github.com/specmint/specmint/internal/api/dto"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/domain/quota"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/usage"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
)

const subscriptionCacheTTL = 5 * time.Minute

// QuotaService is the enforcement engine. A check performs at most one
// tier lookup and one ledger aggregation; denial is a returned value,
// never an error.
type QuotaService interface {
	// CheckQuota decides whether the actor may perform one more action of
	// the given kind in the current month.
	CheckQuota(ctx context.Context, actor types.ActorRef, kind types.ActionKind) (*dto.QuotaDecision, error)

	// RecordUsage appends the action to the ledger, best effort. Failures
	// are logged and swallowed; accounting loss is preferable to failing
	// an operation that already succeeded.
	RecordUsage(ctx context.Context, actor types.ActorRef, kind types.ActionKind, properties map[string]interface{})

	// GetUsageSummary reports current usage against limits per dimension.
	GetUsageSummary(ctx context.Context, actor types.ActorRef, window types.UsageWindow) (*dto.UsageSummaryResponse, error)

	// GetUsageEvents lists raw ledger entries for reporting, newest first.
	GetUsageEvents(ctx context.Context, actor types.ActorRef, req *dto.GetUsageEventsRequest) (*dto.GetUsageEventsResponse, error)
}

type quotaService struct {
	ServiceParams
}

func NewQuotaService(params ServiceParams) QuotaService {
	return &quotaService{
		ServiceParams: params,
	}
}

// entitlement is the resolved quota context of an actor: the funding
// tier plus the optional team override on the specifications dimension.
type entitlement struct {
	Tier         types.Tier
	SpecOverride *int64
}

func (s *quotaService) CheckQuota(ctx context.Context, actor types.ActorRef, kind types.ActionKind) (*dto.QuotaDecision, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	dimension, err := kind.Dimension()
	if err != nil {
		return nil, err
	}

	if dimension == types.DimensionTeamMembers && !actor.IsTeam() {
		return nil, ierr.NewError("member actions require a team actor").
			WithHint("Team membership is metered per team, not per user").
			Mark(ierr.ErrValidation)
	}

	ent, denial, err := s.resolveEntitlement(ctx, actor)
	if err != nil {
		return nil, err
	}
	if denial != nil {
		s.Metrics.QuotaDecisionsTotal.WithLabelValues(dimension.String(), "denied").Inc()
		return denial, nil
	}

	limit, err := quota.ForTier(ent.Tier).LimitFor(dimension)
	if err != nil {
		return nil, err
	}
	if dimension == types.DimensionSpecifications && actor.IsTeam() && ent.SpecOverride != nil {
		limit = *ent.SpecOverride
	}

	// Unlimited is a fast path, not an optimization: an unlimited account
	// must never be blocked by a transient aggregation failure.
	if quota.IsUnlimited(limit) {
		s.Metrics.QuotaDecisionsTotal.WithLabelValues(dimension.String(), "allowed").Inc()
		return &dto.QuotaDecision{Allowed: true}, nil
	}

	var used int64
	if dimension == types.DimensionTeamMembers {
		// Membership is a set, not an event count.
		used, err = s.TeamRepo.CountMembers(ctx, actor.TeamID)
	} else {
		start, end := types.MonthBounds(time.Now())
		used, err = s.UsageRepo.Count(ctx, &usage.CountParams{
			Actor: actor,
			Kinds: dimension.MeteredKinds(),
			Start: start,
			End:   end,
		})
	}
	if err != nil {
		return nil, err
	}

	if used >= limit {
		s.Metrics.QuotaDecisionsTotal.WithLabelValues(dimension.String(), "denied").Inc()
		return &dto.QuotaDecision{
			Allowed:      false,
			Reason:       denialReason(dimension),
			Dimension:    dimension,
			CurrentUsage: lo.ToPtr(used),
			Limit:        lo.ToPtr(limit),
			Remaining:    lo.ToPtr(int64(0)),
		}, nil
	}

	s.Metrics.QuotaDecisionsTotal.WithLabelValues(dimension.String(), "allowed").Inc()
	return &dto.QuotaDecision{
		Allowed:      true,
		Dimension:    dimension,
		CurrentUsage: lo.ToPtr(used),
		Limit:        lo.ToPtr(limit),
		Remaining:    lo.ToPtr(limit - used),
	}, nil
}

func (s *quotaService) RecordUsage(ctx context.Context, actor types.ActorRef, kind types.ActionKind, properties map[string]interface{}) {
	event := usage.NewEvent(actor, kind, properties, time.Time{})
	if err := event.Validate(); err != nil {
		s.Logger.Warnw("dropping invalid usage event",
			"action_kind", kind,
			"error", err,
		)
		s.Metrics.UsageEventsTotal.WithLabelValues(kind.String(), "invalid").Inc()
		return
	}

	if err := s.UsagePublisher.Publish(ctx, event); err != nil {
		s.Logger.Errorw("failed to record usage",
			"event_id", event.ID,
			"action_kind", kind,
			"error", err,
		)
		s.Metrics.UsageEventsTotal.WithLabelValues(kind.String(), "failed").Inc()
		return
	}
	s.Metrics.UsageEventsTotal.WithLabelValues(kind.String(), "recorded").Inc()

	// The denormalized counter is display-only. Drift is corrected by the
	// reconciliation pass; enforcement always reads the ledger.
	if kind == types.ActionSpecGenerated {
		var err error
		if actor.IsTeam() {
			err = s.TeamRepo.IncrementSpecCount(ctx, actor.TeamID, 1)
		} else {
			err = s.UserRepo.IncrementSpecCount(ctx, actor.UserID, 1)
		}
		if err != nil {
			s.Logger.Warnw("failed to bump spec counter",
				"user_id", actor.UserID,
				"team_id", actor.TeamID,
				"error", err,
			)
		}
	}
}

func (s *quotaService) GetUsageSummary(ctx context.Context, actor types.ActorRef, window types.UsageWindow) (*dto.UsageSummaryResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	ent, denial, err := s.resolveEntitlement(ctx, actor)
	if err != nil {
		return nil, err
	}
	if denial != nil {
		return nil, ierr.NewError("actor not found").
			WithHint(denial.Reason).
			Mark(ierr.ErrNotFound)
	}

	resolved := window.Resolve(time.Now())
	limits := quota.ForTier(ent.Tier)

	dimensions := []types.QuotaDimension{
		types.DimensionSpecifications,
		types.DimensionAIGenerations,
		types.DimensionAPICalls,
	}

	response := &dto.UsageSummaryResponse{
		Tier:   ent.Tier,
		Window: resolved,
	}

	for _, dimension := range dimensions {
		limit, err := limits.LimitFor(dimension)
		if err != nil {
			return nil, err
		}
		if dimension == types.DimensionSpecifications && actor.IsTeam() && ent.SpecOverride != nil {
			limit = *ent.SpecOverride
		}

		used, err := s.UsageRepo.Count(ctx, &usage.CountParams{
			Actor: actor,
			Kinds: dimension.MeteredKinds(),
			Start: resolved.Start,
			End:   resolved.End,
		})
		if err != nil {
			return nil, err
		}

		response.Dimensions = append(response.Dimensions, buildDimensionUsage(dimension, used, limit))
	}

	if actor.IsTeam() {
		limit, err := limits.LimitFor(types.DimensionTeamMembers)
		if err != nil {
			return nil, err
		}
		members, err := s.TeamRepo.CountMembers(ctx, actor.TeamID)
		if err != nil {
			return nil, err
		}
		response.Dimensions = append(response.Dimensions, buildDimensionUsage(types.DimensionTeamMembers, members, limit))
	}

	return response, nil
}

func (s *quotaService) GetUsageEvents(ctx context.Context, actor types.ActorRef, req *dto.GetUsageEventsRequest) (*dto.GetUsageEventsResponse, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if req.ActionKind != "" {
		if err := req.ActionKind.Validate(); err != nil {
			return nil, err
		}
	}

	events, err := s.UsageRepo.GetEvents(ctx, &usage.GetEventsParams{
		Actor: actor,
		Kind:  req.ActionKind,
		Start: req.StartTime,
		End:   req.EndTime,
		Limit: req.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &dto.GetUsageEventsResponse{
		Events: events,
		Count:  len(events),
	}, nil
}

// resolveEntitlement returns the actor's funding tier. A missing actor is
// a denial, not an infrastructure error; everything else that goes wrong
// while resolving propagates.
func (s *quotaService) resolveEntitlement(ctx context.Context, actor types.ActorRef) (entitlement, *dto.QuotaDecision, error) {
	if actor.IsTeam() {
		t, err := s.TeamRepo.Get(ctx, actor.TeamID)
		if err != nil {
			if ierr.IsNotFound(err) {
				return entitlement{}, &dto.QuotaDecision{Allowed: false, Reason: "Team not found"}, nil
			}
			return entitlement{}, nil, err
		}

		tier, err := s.effectiveTier(ctx, t.OwnerID)
		if err != nil {
			return entitlement{}, nil, err
		}
		return entitlement{Tier: tier, SpecOverride: t.UsageQuota}, nil, nil
	}

	if _, err := s.UserRepo.Get(ctx, actor.UserID); err != nil {
		if ierr.IsNotFound(err) {
			return entitlement{}, &dto.QuotaDecision{Allowed: false, Reason: "User not found"}, nil
		}
		return entitlement{}, nil, err
	}

	tier, err := s.effectiveTier(ctx, actor.UserID)
	if err != nil {
		return entitlement{}, nil, err
	}
	return entitlement{Tier: tier}, nil, nil
}

// effectiveTier resolves a user's tier from their subscription. ACTIVE is
// the sole status that grants the purchased tier; everything else,
// including no subscription at all, is free.
func (s *quotaService) effectiveTier(ctx context.Context, userID string) (types.Tier, error) {
	key := cache.GenerateKey(cache.PrefixSubscription, userID)
	if cached, found := s.Cache.Get(ctx, key); found {
		if sub, ok := cached.(*subscription.Subscription); ok {
			return sub.EffectiveTier(), nil
		}
	}

	sub, err := s.SubRepo.GetByOwner(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return types.TierFree, nil
		}
		return "", err
	}

	s.Cache.Set(ctx, key, sub, subscriptionCacheTTL)
	return sub.EffectiveTier(), nil
}

func buildDimensionUsage(dimension types.QuotaDimension, used, limit int64) dto.DimensionUsage {
	if quota.IsUnlimited(limit) {
		return dto.DimensionUsage{
			Dimension: dimension,
			Used:      used,
			Limit:     limit,
			Unlimited: true,
		}
	}
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return dto.DimensionUsage{
		Dimension: dimension,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
	}
}

func denialReason(dimension types.QuotaDimension) string {
	switch dimension {
	case types.DimensionSpecifications:
		return "Monthly specification limit reached"
	case types.DimensionAIGenerations:
		return "Monthly AI generation limit reached"
	case types.DimensionAPICalls:
		return "Monthly API call limit reached"
	case types.DimensionTeamMembers:
		return "Team member limit reached"
	default:
		return "Quota limit reached"
	}
}
