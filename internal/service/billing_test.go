package service

import (
	"testing"
	"time"

	"github.com/specmint/specmint/internal/api/dto"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/user"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/testutil"
	"github.com/specmint/specmint/internal/types"
	"github.com/stretchr/testify/suite"
)

type BillingServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingService
}

func TestBillingService(t *testing.T) {
	suite.Run(t, new(BillingServiceSuite))
}

func (s *BillingServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewBillingService(ServiceParams{
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
	})
}

func (s *BillingServiceSuite) createUser() *user.User {
	u := user.New("payer@example.com", "Payer")
	s.NoError(s.GetStores().UserRepo.Create(s.GetContext(), u))
	return u
}

func (s *BillingServiceSuite) createActiveSubscription(u *user.User, tier types.Tier) *subscription.Subscription {
	sub := subscription.New(u.ID, tier)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.ExternalCustomerRef = "cus_existing"
	sub.ExternalSubscriptionRef = "sub_existing"
	sub.BillingInterval = types.BillingIntervalMonthly
	sub.CurrentPeriodStart = time.Now().UTC()
	sub.CurrentPeriodEnd = time.Now().UTC().AddDate(0, 1, 0)
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))

	u.StripeCustomerID = "cus_existing"
	u.Tier = tier
	s.NoError(s.GetStores().UserRepo.Update(s.GetContext(), u))
	return sub
}

func checkoutRequest(tier types.Tier) *dto.CreateCheckoutRequest {
	return &dto.CreateCheckoutRequest{
		Tier:            tier,
		BillingInterval: types.BillingIntervalMonthly,
		SuccessURL:      "https://app.example.com/billing/success",
		CancelURL:       "https://app.example.com/billing/cancel",
	}
}

func (s *BillingServiceSuite) TestCreateCheckout() {
	u := s.createUser()

	resp, err := s.service.CreateCheckout(s.GetContext(), u.ID, checkoutRequest(types.TierStarter))
	s.NoError(err)
	s.NotEmpty(resp.URL)

	s.Len(s.GetGateway().CheckoutsCreated, 1)
	params := s.GetGateway().CheckoutsCreated[0]
	s.Equal("price_starter_monthly", params.PriceID)
	s.Equal(u.ID, params.ClientReference)

	// Customer reference created on first use is persisted.
	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.NotEmpty(updated.StripeCustomerID)
}

func (s *BillingServiceSuite) TestCreateCheckoutReusesCustomerRef() {
	u := s.createUser()
	u.StripeCustomerID = "cus_known"
	s.NoError(s.GetStores().UserRepo.Update(s.GetContext(), u))

	_, err := s.service.CreateCheckout(s.GetContext(), u.ID, checkoutRequest(types.TierProfessional))
	s.NoError(err)
	s.Empty(s.GetGateway().CustomersCreated)
	s.Equal("cus_known", s.GetGateway().CheckoutsCreated[0].CustomerRef)
}

func (s *BillingServiceSuite) TestCreateCheckoutRejectsFreeTier() {
	u := s.createUser()

	_, err := s.service.CreateCheckout(s.GetContext(), u.ID, checkoutRequest(types.TierFree))
	s.Error(err)
	s.True(ierr.IsValidation(err))
	s.Empty(s.GetGateway().CheckoutsCreated)
}

func (s *BillingServiceSuite) TestCreateCheckoutRejectsActiveSubscriber() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierStarter)

	_, err := s.service.CreateCheckout(s.GetContext(), u.ID, checkoutRequest(types.TierProfessional))
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
	s.Empty(s.GetGateway().CheckoutsCreated)
}

func (s *BillingServiceSuite) TestCreateCheckoutRejectsUnconfiguredPrice() {
	u := s.createUser()

	req := checkoutRequest(types.TierEnterprise)
	req.BillingInterval = types.BillingIntervalAnnual // not in the test catalog
	_, err := s.service.CreateCheckout(s.GetContext(), u.ID, req)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *BillingServiceSuite) TestCreateCheckoutUnknownUser() {
	_, err := s.service.CreateCheckout(s.GetContext(), "user_missing", checkoutRequest(types.TierStarter))
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *BillingServiceSuite) TestUpdateSubscriptionChangesTier() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierStarter)

	resp, err := s.service.UpdateSubscription(s.GetContext(), u.ID, &dto.UpdateSubscriptionRequest{
		Tier:            types.TierProfessional,
		BillingInterval: types.BillingIntervalMonthly,
	})
	s.NoError(err)
	s.Equal(types.TierProfessional, resp.Tier)
	s.Equal("price_pro_monthly", s.GetGateway().PriceChanges["sub_existing"])

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, updated.Tier)
	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionUpdated), 1)
}

func (s *BillingServiceSuite) TestUpdateSubscriptionSameTierNoOp() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierStarter)

	resp, err := s.service.UpdateSubscription(s.GetContext(), u.ID, &dto.UpdateSubscriptionRequest{
		Tier:            types.TierStarter,
		BillingInterval: types.BillingIntervalMonthly,
	})
	s.NoError(err)
	s.Equal(types.TierStarter, resp.Tier)
	s.Empty(s.GetGateway().PriceChanges)
	s.Empty(s.GetNotifier().Sent)
}

func (s *BillingServiceSuite) TestUpdateToFreeDefersCancellation() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierStarter)

	resp, err := s.service.UpdateSubscription(s.GetContext(), u.ID, &dto.UpdateSubscriptionRequest{
		Tier:            types.TierFree,
		BillingInterval: types.BillingIntervalMonthly,
	})
	s.NoError(err)
	s.True(resp.CancelAtPeriodEnd)
	s.Equal(types.SubscriptionStatusActive, resp.Status)
	s.True(s.GetGateway().DeferredCancels["sub_existing"])

	// Entitlement persists until the period ends.
	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierStarter, updated.Tier)
}

func (s *BillingServiceSuite) TestUpdateInactiveSubscriptionRejected() {
	u := s.createUser()
	sub := s.createActiveSubscription(u, types.TierStarter)
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	_, err := s.service.UpdateSubscription(s.GetContext(), u.ID, &dto.UpdateSubscriptionRequest{
		Tier:            types.TierProfessional,
		BillingInterval: types.BillingIntervalMonthly,
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *BillingServiceSuite) TestCancelImmediate() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	resp, err := s.service.CancelSubscription(s.GetContext(), u.ID, true)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, resp.Status)
	s.Contains(s.GetGateway().ImmediateCancels, "sub_existing")

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierFree, updated.Tier)
	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionCancelled), 1)
}

func (s *BillingServiceSuite) TestCancelDeferred() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	resp, err := s.service.CancelSubscription(s.GetContext(), u.ID, false)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, resp.Status)
	s.True(resp.CancelAtPeriodEnd)
	s.Empty(s.GetGateway().ImmediateCancels)

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, updated.Tier)
}

func (s *BillingServiceSuite) TestCancelDeferredIsIdempotent() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	_, err := s.service.CancelSubscription(s.GetContext(), u.ID, false)
	s.NoError(err)
	_, err = s.service.CancelSubscription(s.GetContext(), u.ID, false)
	s.NoError(err)

	// The second call is a no-op: one gateway flag, one notification.
	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionCancelled), 1)
}

func (s *BillingServiceSuite) TestCancelAlreadyCancelledConverges() {
	u := s.createUser()
	sub := s.createActiveSubscription(u, types.TierStarter)
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	resp, err := s.service.CancelSubscription(s.GetContext(), u.ID, true)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, resp.Status)
	s.Empty(s.GetGateway().ImmediateCancels)
}

func (s *BillingServiceSuite) TestPortalRequiresBillingProfile() {
	u := s.createUser()

	_, err := s.service.CreateBillingPortalSession(s.GetContext(), u.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *BillingServiceSuite) TestPortalSession() {
	u := s.createUser()
	u.StripeCustomerID = "cus_known"
	s.NoError(s.GetStores().UserRepo.Update(s.GetContext(), u))

	resp, err := s.service.CreateBillingPortalSession(s.GetContext(), u.ID)
	s.NoError(err)
	s.NotEmpty(resp.URL)
	s.Contains(s.GetGateway().PortalsCreated, "cus_known")
}

func (s *BillingServiceSuite) TestSubscriptionDetailsWithoutSubscription() {
	u := s.createUser()

	resp, err := s.service.GetSubscriptionDetails(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierFree, resp.Tier)
}

func (s *BillingServiceSuite) TestSubscriptionDetailsShowsPurchasedTier() {
	u := s.createUser()
	sub := s.createActiveSubscription(u, types.TierProfessional)
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	// The account page shows the purchased plan and its status; the
	// effective tier downgrade is a quota concern.
	resp, err := s.service.GetSubscriptionDetails(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, resp.Tier)
	s.Equal(types.SubscriptionStatusPastDue, resp.Status)
}
