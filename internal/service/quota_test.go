package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/specmint/specmint/internal/api/dto"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/team"
	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/domain/user"
	"github.com/specmint/specmint/internal/testutil"
	"github.com/specmint/specmint/internal/types"
	"github.com/stretchr/testify/suite"
)

type QuotaServiceSuite struct {
	testutil.BaseServiceTestSuite
	service QuotaService
}

func TestQuotaService(t *testing.T) {
	suite.Run(t, new(QuotaServiceSuite))
}

func (s *QuotaServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewQuotaService(s.params())
}

func (s *QuotaServiceSuite) params() ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:         s.GetLogger(),
		Config:         s.GetConfig(),
		DB:             s.GetDB(),
		Cache:          cache.NewInMemoryCache(),
		Metrics:        s.GetMetrics(),
		UserRepo:       stores.UserRepo,
		TeamRepo:       stores.TeamRepo,
		SubRepo:        stores.SubRepo,
		UsageRepo:      stores.UsageRepo,
		Gateway:        s.GetGateway(),
		UsagePublisher: testutil.NewDirectUsagePublisher(s.GetUsageStore()),
		Notifier:       s.GetNotifier(),
	}
}

func (s *QuotaServiceSuite) createUser(tier types.Tier) *user.User {
	u := user.New("owner@example.com", "Owner")
	s.NoError(s.GetStores().UserRepo.Create(s.GetContext(), u))
	if tier != types.TierFree {
		sub := subscription.New(u.ID, tier)
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))
	}
	return u
}

func (s *QuotaServiceSuite) createTeam(ownerID string) *team.Team {
	t := team.New("Acme", ownerID)
	s.NoError(s.GetStores().TeamRepo.Create(s.GetContext(), t))
	return t
}

func (s *QuotaServiceSuite) seedUsage(actor types.ActorRef, kind types.ActionKind, n int) {
	for i := 0; i < n; i++ {
		event := usage.NewEvent(actor, kind, nil, time.Now().UTC())
		s.NoError(s.GetStores().UsageRepo.Insert(s.GetContext(), event))
	}
}

func (s *QuotaServiceSuite) TestAllowUnderLimit() {
	u := s.createUser(types.TierStarter)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 49)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(49), *decision.CurrentUsage)
	s.Equal(int64(50), *decision.Limit)
	s.Equal(int64(1), *decision.Remaining)
}

func (s *QuotaServiceSuite) TestDenyAtLimit() {
	u := s.createUser(types.TierStarter)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 50)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Monthly specification limit reached", decision.Reason)
	s.Equal(int64(50), *decision.CurrentUsage)
	s.Equal(int64(0), *decision.Remaining)
}

func (s *QuotaServiceSuite) TestFreeTierWithoutSubscription() {
	u := s.createUser(types.TierFree)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 3)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Monthly specification limit reached", decision.Reason)
}

func (s *QuotaServiceSuite) TestViewGenerationSharesAIBucket() {
	u := s.createUser(types.TierFree)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionAIGeneration, 6)
	s.seedUsage(actor, types.ActionViewGenerated, 4)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionViewGenerated)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Monthly AI generation limit reached", decision.Reason)
	s.Equal(int64(10), *decision.CurrentUsage)
}

func (s *QuotaServiceSuite) TestUnlimitedSkipsLedger() {
	u := s.createUser(types.TierEnterprise)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 10000)
	s.GetUsageStore().CountCalls = 0

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Nil(decision.CurrentUsage)
	s.Nil(decision.Limit)
	s.Zero(s.GetUsageStore().CountCalls)
}

func (s *QuotaServiceSuite) TestUnknownUserDenied() {
	decision, err := s.service.CheckQuota(s.GetContext(), types.ActorRef{UserID: "user_missing"}, types.ActionAPICall)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("User not found", decision.Reason)
}

func (s *QuotaServiceSuite) TestUnknownTeamDenied() {
	decision, err := s.service.CheckQuota(s.GetContext(), types.ActorRef{TeamID: "team_missing"}, types.ActionAPICall)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Team not found", decision.Reason)
}

func (s *QuotaServiceSuite) TestTeamQuotaDerivesFromOwner() {
	owner := s.createUser(types.TierProfessional)
	t := s.createTeam(owner.ID)
	actor := types.ActorRef{TeamID: t.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 499)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(500), *decision.Limit)
	s.Equal(int64(1), *decision.Remaining)
}

func (s *QuotaServiceSuite) TestTeamOverrideRaisesSpecLimit() {
	owner := s.createUser(types.TierProfessional)
	t := s.createTeam(owner.ID)
	s.NoError(s.GetStores().TeamRepo.SetUsageQuota(s.GetContext(), t.ID, lo.ToPtr(int64(600))))

	actor := types.ActorRef{TeamID: t.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 500)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(600), *decision.Limit)
	s.Equal(int64(100), *decision.Remaining)
}

func (s *QuotaServiceSuite) TestTeamOverrideDoesNotAffectOtherDimensions() {
	owner := s.createUser(types.TierStarter)
	t := s.createTeam(owner.ID)
	s.NoError(s.GetStores().TeamRepo.SetUsageQuota(s.GetContext(), t.ID, lo.ToPtr(int64(10000))))

	actor := types.ActorRef{TeamID: t.ID}
	s.seedUsage(actor, types.ActionAIGeneration, 200)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionAIGeneration)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Monthly AI generation limit reached", decision.Reason)
}

func (s *QuotaServiceSuite) TestUnlimitedTeamOverride() {
	owner := s.createUser(types.TierStarter)
	t := s.createTeam(owner.ID)
	s.NoError(s.GetStores().TeamRepo.SetUsageQuota(s.GetContext(), t.ID, lo.ToPtr(int64(-1))))

	actor := types.ActorRef{TeamID: t.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 100000)
	s.GetUsageStore().CountCalls = 0

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Zero(s.GetUsageStore().CountCalls)
}

func (s *QuotaServiceSuite) TestTeamMembersReadLiveCount() {
	owner := s.createUser(types.TierStarter)
	t := s.createTeam(owner.ID)
	actor := types.ActorRef{TeamID: t.ID}

	// Starter allows 3 members; the owner occupies the first seat.
	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionTeamMemberAdded)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(1), *decision.CurrentUsage)

	s.GetTeamStore().AddMember(t.ID, "user_2")
	s.GetTeamStore().AddMember(t.ID, "user_3")

	decision, err = s.service.CheckQuota(s.GetContext(), actor, types.ActionTeamMemberAdded)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Team member limit reached", decision.Reason)

	// Removal is reflected immediately because membership is a live set,
	// not a ledger aggregate.
	s.seedUsage(actor, types.ActionTeamMemberAdded, 50)
	decision, err = s.service.CheckQuota(s.GetContext(), actor, types.ActionTeamMemberAdded)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal(int64(3), *decision.CurrentUsage)
}

func (s *QuotaServiceSuite) TestMemberActionRequiresTeamActor() {
	u := s.createUser(types.TierStarter)

	_, err := s.service.CheckQuota(s.GetContext(), types.ActorRef{UserID: u.ID}, types.ActionTeamMemberAdded)
	s.Error(err)
}

func (s *QuotaServiceSuite) TestPastDueDropsToFree() {
	u := s.createUser(types.TierProfessional)
	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 3)

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.False(decision.Allowed)
	s.Equal("Monthly specification limit reached", decision.Reason)
	s.Equal(int64(3), *decision.Limit)
}

func (s *QuotaServiceSuite) TestIndividualUsageExcludesTeamEntries() {
	owner := s.createUser(types.TierFree)
	t := s.createTeam(owner.ID)
	s.seedUsage(types.ActorRef{UserID: owner.ID, TeamID: t.ID}, types.ActionSpecGenerated, 3)

	decision, err := s.service.CheckQuota(s.GetContext(), types.ActorRef{UserID: owner.ID}, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(0), *decision.CurrentUsage)
}

func (s *QuotaServiceSuite) TestRecordUsageThenCheck() {
	u := s.createUser(types.TierFree)
	actor := types.ActorRef{UserID: u.ID}

	for i := 0; i < 3; i++ {
		s.service.RecordUsage(s.GetContext(), actor, types.ActionSpecGenerated, map[string]interface{}{"source": "editor"})
	}

	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.False(decision.Allowed)

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(int64(3), updated.SpecCount)
}

func (s *QuotaServiceSuite) TestRecordUsageBumpsTeamCounter() {
	owner := s.createUser(types.TierStarter)
	t := s.createTeam(owner.ID)
	actor := types.ActorRef{UserID: owner.ID, TeamID: t.ID}

	s.service.RecordUsage(s.GetContext(), actor, types.ActionSpecGenerated, nil)

	updated, err := s.GetStores().TeamRepo.Get(s.GetContext(), t.ID)
	s.NoError(err)
	s.Equal(int64(1), updated.SpecCount)
}

func (s *QuotaServiceSuite) TestRecordUsageDropsInvalidEvent() {
	s.service.RecordUsage(s.GetContext(), types.ActorRef{}, types.ActionSpecGenerated, nil)
	s.Zero(s.GetUsageStore().Len())
}

func (s *QuotaServiceSuite) TestUsageSummary() {
	u := s.createUser(types.TierStarter)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 10)
	s.seedUsage(actor, types.ActionAIGeneration, 5)

	summary, err := s.service.GetUsageSummary(s.GetContext(), actor, types.UsageWindow{})
	s.NoError(err)
	s.Equal(types.TierStarter, summary.Tier)
	s.Len(summary.Dimensions, 3)

	byDimension := lo.KeyBy(summary.Dimensions, func(d dto.DimensionUsage) types.QuotaDimension {
		return d.Dimension
	})
	s.Equal(int64(10), byDimension[types.DimensionSpecifications].Used)
	s.Equal(int64(40), byDimension[types.DimensionSpecifications].Remaining)
	s.Equal(int64(5), byDimension[types.DimensionAIGenerations].Used)
}

func (s *QuotaServiceSuite) TestUsageSummaryTeamIncludesMembers() {
	owner := s.createUser(types.TierEnterprise)
	t := s.createTeam(owner.ID)

	summary, err := s.service.GetUsageSummary(s.GetContext(), types.ActorRef{TeamID: t.ID}, types.UsageWindow{})
	s.NoError(err)
	s.Len(summary.Dimensions, 4)
	for _, d := range summary.Dimensions {
		s.True(d.Unlimited)
	}
}

func (s *QuotaServiceSuite) TestCachedTierSurvivesStoreChange() {
	u := s.createUser(types.TierStarter)
	actor := types.ActorRef{UserID: u.ID}

	_, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)

	// Flip the row under the cache; the cached entitlement is still served
	// until the lifecycle invalidates it.
	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	s.seedUsage(actor, types.ActionSpecGenerated, 10)
	decision, err := s.service.CheckQuota(s.GetContext(), actor, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(50), *decision.Limit)
}

func (s *QuotaServiceSuite) TestGetUsageEvents() {
	u := s.createUser(types.TierFree)
	actor := types.ActorRef{UserID: u.ID}
	s.seedUsage(actor, types.ActionSpecGenerated, 2)
	s.seedUsage(actor, types.ActionAPICall, 3)

	resp, err := s.service.GetUsageEvents(s.GetContext(), actor, &dto.GetUsageEventsRequest{
		ActionKind: types.ActionAPICall,
		Limit:      10,
	})
	s.NoError(err)
	s.Equal(3, resp.Count)
	for _, e := range resp.Events {
		s.Equal(types.ActionAPICall, e.ActionKind)
	}
}
