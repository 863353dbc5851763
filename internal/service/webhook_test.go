package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/user"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/testutil"
	"github.com/specmint/specmint/internal/types"
	"github.com/stretchr/testify/suite"
)

type WebhookServiceSuite struct {
	testutil.BaseServiceTestSuite
	service BillingService
	quota   QuotaService
}

func TestWebhookService(t *testing.T) {
	suite.Run(t, new(WebhookServiceSuite))
}

func (s *WebhookServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	params := ServiceParams{
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
	s.service = NewBillingService(params)
	s.quota = NewQuotaService(params)
}

func (s *WebhookServiceSuite) deliver(event *gateway.WebhookEvent) error {
	payload, err := json.Marshal(event)
	s.NoError(err)
	return s.service.HandleWebhook(s.GetContext(), payload, testutil.ValidSignature)
}

func (s *WebhookServiceSuite) createUser() *user.User {
	u := user.New("payer@example.com", "Payer")
	s.NoError(s.GetStores().UserRepo.Create(s.GetContext(), u))
	return u
}

func (s *WebhookServiceSuite) checkoutEvent(u *user.User) *gateway.WebhookEvent {
	now := time.Now().UTC()
	s.GetGateway().SeedSubscription(&gateway.Subscription{
		Ref:                "sub_new",
		CustomerRef:        "cus_new",
		Status:             types.SubscriptionStatusActive,
		PriceID:            "price_pro_monthly",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	})
	return &gateway.WebhookEvent{
		ID:   "evt_checkout",
		Type: types.WebhookEventCheckoutCompleted,
		Checkout: &gateway.CheckoutCompleted{
			SessionID:       "cs_test",
			ClientReference: u.ID,
			CustomerRef:     "cus_new",
			SubscriptionRef: "sub_new",
		},
	}
}

func (s *WebhookServiceSuite) createActiveSubscription(u *user.User, tier types.Tier) *subscription.Subscription {
	sub := subscription.New(u.ID, tier)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.ExternalCustomerRef = "cus_existing"
	sub.ExternalSubscriptionRef = "sub_existing"
	sub.BillingInterval = types.BillingIntervalMonthly
	sub.CurrentPeriodStart = time.Now().UTC()
	sub.CurrentPeriodEnd = time.Now().UTC().AddDate(0, 1, 0)
	s.NoError(s.GetStores().SubRepo.Create(s.GetContext(), sub))

	u.Tier = tier
	s.NoError(s.GetStores().UserRepo.Update(s.GetContext(), u))
	return sub
}

func (s *WebhookServiceSuite) TestInvalidSignatureZeroSideEffects() {
	u := s.createUser()
	event := s.checkoutEvent(u)
	payload, err := json.Marshal(event)
	s.NoError(err)

	err = s.service.HandleWebhook(s.GetContext(), payload, "bad-signature")
	s.Error(err)
	s.True(ierr.IsValidation(err))

	s.Zero(s.GetStores().SubRepo.(*testutil.InMemorySubscriptionStore).Count())
	s.Empty(s.GetNotifier().Sent)
}

func (s *WebhookServiceSuite) TestCheckoutCompletedActivates() {
	u := s.createUser()

	s.NoError(s.deliver(s.checkoutEvent(u)))

	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, sub.Tier)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal("sub_new", sub.ExternalSubscriptionRef)
	s.Equal(types.BillingIntervalMonthly, sub.BillingInterval)

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, updated.Tier)
	s.Equal("cus_new", updated.StripeCustomerID)

	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionStarted), 1)

	// The new entitlement is live for quota checks.
	decision, err := s.quota.CheckQuota(s.GetContext(), types.ActorRef{UserID: u.ID}, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(500), *decision.Limit)
}

func (s *WebhookServiceSuite) TestCheckoutReplayIsIdempotent() {
	u := s.createUser()
	event := s.checkoutEvent(u)

	s.NoError(s.deliver(event))
	s.NoError(s.deliver(event))

	s.Equal(1, s.GetStores().SubRepo.(*testutil.InMemorySubscriptionStore).Count())
	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionStarted), 1)
}

func (s *WebhookServiceSuite) TestCheckoutResolvesUserByCustomerRef() {
	u := s.createUser()
	u.StripeCustomerID = "cus_new"
	s.NoError(s.GetStores().UserRepo.Update(s.GetContext(), u))

	event := s.checkoutEvent(u)
	event.Checkout.ClientReference = ""
	s.NoError(s.deliver(event))

	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
}

func (s *WebhookServiceSuite) TestCheckoutForUnknownUserAcknowledged() {
	u := s.createUser()
	event := s.checkoutEvent(u)
	event.Checkout.ClientReference = "user_missing"
	event.Checkout.CustomerRef = "cus_unknown"

	s.NoError(s.deliver(event))
	s.Zero(s.GetStores().SubRepo.(*testutil.InMemorySubscriptionStore).Count())
}

func (s *WebhookServiceSuite) TestCheckoutUnconfiguredPriceRedelivered() {
	u := s.createUser()
	event := s.checkoutEvent(u)
	s.GetGateway().Subscriptions["sub_new"].PriceID = "price_unknown"

	err := s.deliver(event)
	s.Error(err)
	s.Zero(s.GetStores().SubRepo.(*testutil.InMemorySubscriptionStore).Count())
}

func (s *WebhookServiceSuite) TestSubscriptionUpdatedChangesTier() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierStarter)

	now := time.Now().UTC()
	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_update",
		Type: types.WebhookEventSubscriptionUpdated,
		Subscription: &gateway.Subscription{
			Ref:                "sub_existing",
			Status:             types.SubscriptionStatusActive,
			PriceID:            "price_pro_monthly",
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		},
	}))

	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, sub.Tier)

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierProfessional, updated.Tier)
}

func (s *WebhookServiceSuite) TestSubscriptionUpdatedUnknownRefAcknowledged() {
	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_update",
		Type: types.WebhookEventSubscriptionUpdated,
		Subscription: &gateway.Subscription{
			Ref:    "sub_unknown",
			Status: types.SubscriptionStatusActive,
		},
	}))
}

func (s *WebhookServiceSuite) TestStaleUpdateCannotResurrectCancelled() {
	u := s.createUser()
	sub := s.createActiveSubscription(u, types.TierStarter)
	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	s.NoError(s.GetStores().SubRepo.Update(s.GetContext(), sub))

	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_stale",
		Type: types.WebhookEventSubscriptionUpdated,
		Subscription: &gateway.Subscription{
			Ref:              "sub_existing",
			Status:           types.SubscriptionStatusActive,
			PriceID:          "price_starter_monthly",
			CurrentPeriodEnd: sub.CurrentPeriodEnd.Add(-time.Hour),
		},
	}))

	after, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, after.SubscriptionStatus)
}

func (s *WebhookServiceSuite) TestSubscriptionDeletedDemotes() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:           "evt_delete",
		Type:         types.WebhookEventSubscriptionDeleted,
		Subscription: &gateway.Subscription{Ref: "sub_existing"},
	}))

	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, sub.SubscriptionStatus)

	updated, err := s.GetStores().UserRepo.Get(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.TierFree, updated.Tier)
	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionCancelled), 1)
}

func (s *WebhookServiceSuite) TestSubscriptionDeletedReplayIsIdempotent() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	event := &gateway.WebhookEvent{
		ID:           "evt_delete",
		Type:         types.WebhookEventSubscriptionDeleted,
		Subscription: &gateway.Subscription{Ref: "sub_existing"},
	}
	s.NoError(s.deliver(event))
	s.NoError(s.deliver(event))

	s.Len(s.GetNotifier().ByTemplate(types.NotificationSubscriptionCancelled), 1)
}

func (s *WebhookServiceSuite) TestPaymentFailedKeepsTierField() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_invoice",
		Type: types.WebhookEventInvoicePaymentFailed,
		Invoice: &gateway.InvoiceFailure{
			CustomerRef:      "cus_existing",
			SubscriptionRef:  "sub_existing",
			HostedInvoiceURL: "https://pay.example.com/invoice",
		},
	}))

	sub, err := s.GetStores().SubRepo.GetByOwner(s.GetContext(), u.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusPastDue, sub.SubscriptionStatus)
	// Grace keeps the purchased tier on record for painless recovery.
	s.Equal(types.TierProfessional, sub.Tier)

	notifications := s.GetNotifier().ByTemplate(types.NotificationPaymentFailed)
	s.Len(notifications, 1)
	s.Equal("https://pay.example.com/invoice", notifications[0].Data["remediation_url"])

	// Enforcement drops to free while delinquent.
	decision, err := s.quota.CheckQuota(s.GetContext(), types.ActorRef{UserID: u.ID}, types.ActionSpecGenerated)
	s.NoError(err)
	s.Equal(int64(3), *decision.Limit)
}

func (s *WebhookServiceSuite) TestPaymentFailedReplayIsIdempotent() {
	u := s.createUser()
	s.createActiveSubscription(u, types.TierProfessional)

	event := &gateway.WebhookEvent{
		ID:      "evt_invoice",
		Type:    types.WebhookEventInvoicePaymentFailed,
		Invoice: &gateway.InvoiceFailure{SubscriptionRef: "sub_existing"},
	}
	s.NoError(s.deliver(event))
	s.NoError(s.deliver(event))

	s.Len(s.GetNotifier().ByTemplate(types.NotificationPaymentFailed), 1)
}

func (s *WebhookServiceSuite) TestRecoveryAfterPaymentFailure() {
	u := s.createUser()
	sub := s.createActiveSubscription(u, types.TierProfessional)

	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:      "evt_invoice",
		Type:    types.WebhookEventInvoicePaymentFailed,
		Invoice: &gateway.InvoiceFailure{SubscriptionRef: "sub_existing"},
	}))

	now := time.Now().UTC()
	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_recovered",
		Type: types.WebhookEventSubscriptionUpdated,
		Subscription: &gateway.Subscription{
			Ref:                "sub_existing",
			Status:             types.SubscriptionStatusActive,
			PriceID:            "price_pro_monthly",
			CurrentPeriodStart: now,
			CurrentPeriodEnd:   sub.CurrentPeriodEnd.AddDate(0, 1, 0),
		},
	}))

	decision, err := s.quota.CheckQuota(s.GetContext(), types.ActorRef{UserID: u.ID}, types.ActionSpecGenerated)
	s.NoError(err)
	s.True(decision.Allowed)
	s.Equal(int64(500), *decision.Limit)
}

func (s *WebhookServiceSuite) TestUnknownEventTypeAcknowledged() {
	s.NoError(s.deliver(&gateway.WebhookEvent{
		ID:   "evt_other",
		Type: types.WebhookEventType("customer.created"),
	}))
}
