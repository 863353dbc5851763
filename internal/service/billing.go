package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/specmint/specmint/internal/api/dto"
	"github.com/specmint/specmint/internal/cache"
	"github.com/specmint/specmint/internal/domain/subscription"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/notify"
	"github.com/specmint/specmint/internal/types"
)

// BillingService owns the subscription lifecycle. All processor
// identifiers are resolved server side; callers only ever hand over
// their own user id and tier intent.
type BillingService interface {
	// CreateCheckout opens a checkout session for a paid tier and returns
	// the redirect URL. No local state changes until the completion event.
	CreateCheckout(ctx context.Context, userID string, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error)

	// UpdateSubscription changes tier or interval on an active
	// subscription. Downgrading to free is applied as a deferred
	// cancellation; entitlement persists until the period ends.
	UpdateSubscription(ctx context.Context, userID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)

	// CancelSubscription cancels now or at period end. Immediate
	// cancellation demotes the owner to free right away.
	CancelSubscription(ctx context.Context, userID string, immediate bool) (*dto.SubscriptionResponse, error)

	// CreateBillingPortalSession returns a portal redirect URL.
	CreateBillingPortalSession(ctx context.Context, userID string) (*dto.PortalSessionResponse, error)

	// GetSubscriptionDetails returns the status projection for the
	// account page. Users with no subscription get a free-tier projection.
	GetSubscriptionDetails(ctx context.Context, userID string) (*dto.SubscriptionResponse, error)

	// HandleWebhook verifies and dispatches one processor event. An
	// invalid signature causes zero side effects. Errors returned from
	// here tell the processor to redeliver.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
}

type billingService struct {
	ServiceParams
}

func NewBillingService(params ServiceParams) BillingService {
	return &billingService{
		ServiceParams: params,
	}
}

func (s *billingService) CreateCheckout(ctx context.Context, userID string, req *dto.CreateCheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.SubRepo.GetByOwner(ctx, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if existing.IsActive() {
		return nil, ierr.NewError("user already has an active subscription").
			WithHint("Use the update endpoint to change tier or interval").
			WithReportableDetails(map[string]any{
				"current_tier": existing.Tier,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	price, ok := s.Config.Stripe.LookupPrice(req.Tier, req.BillingInterval)
	if !ok {
		return nil, ierr.NewError("no price configured for tier and interval").
			WithHintf("Plan %s (%s) is not available for purchase", req.Tier, req.BillingInterval).
			WithReportableDetails(map[string]any{
				"tier":     req.Tier,
				"interval": req.BillingInterval,
			}).
			Mark(ierr.ErrValidation)
	}

	customerRef, err := s.Gateway.EnsureCustomer(ctx, u.ID, u.Email, u.Name, u.StripeCustomerID)
	if err != nil {
		return nil, err
	}
	if customerRef != u.StripeCustomerID {
		u.StripeCustomerID = customerRef
		if err := s.UserRepo.Update(ctx, u); err != nil {
			return nil, err
		}
	}

	checkoutRef := types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_CHECKOUT)
	url, err := s.Gateway.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		CustomerRef:     customerRef,
		PriceID:         price.PriceID,
		SuccessURL:      req.SuccessURL,
		CancelURL:       req.CancelURL,
		ClientReference: u.ID,
	})
	if err != nil {
		return nil, err
	}

	s.Metrics.CheckoutTotal.WithLabelValues(req.Tier.String(), req.BillingInterval.String()).Inc()
	s.Logger.Infow("created checkout session",
		"checkout_ref", checkoutRef,
		"user_id", u.ID,
		"tier", req.Tier,
		"interval", req.BillingInterval,
	)

	return &dto.CheckoutResponse{URL: url}, nil
}

func (s *billingService) UpdateSubscription(ctx context.Context, userID string, req *dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive() {
		return nil, ierr.NewError("subscription is not active").
			WithHint("Only active subscriptions can be changed").
			WithReportableDetails(map[string]any{
				"status": sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	// Downgrading to free is a cancellation at period end, never an
	// immediate tier loss.
	if req.Tier == types.TierFree {
		return s.deferCancellation(ctx, sub)
	}

	if sub.Tier == req.Tier && sub.BillingInterval == req.BillingInterval {
		return projectSubscription(sub, s.priceAmount(sub)), nil
	}

	price, ok := s.Config.Stripe.LookupPrice(req.Tier, req.BillingInterval)
	if !ok {
		return nil, ierr.NewError("no price configured for tier and interval").
			WithHintf("Plan %s (%s) is not available for purchase", req.Tier, req.BillingInterval).
			Mark(ierr.ErrValidation)
	}

	if err := s.Gateway.ChangePrice(ctx, sub.ExternalSubscriptionRef, price.PriceID); err != nil {
		return nil, err
	}

	sub.Tier = req.Tier
	sub.BillingInterval = req.BillingInterval
	sub.CancelAtPeriodEnd = false
	sub.UpdatedAt = time.Now().UTC()
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.UserRepo.SetTier(ctx, userID, req.Tier); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)

	s.notifyOwner(ctx, userID, types.NotificationSubscriptionUpdated, map[string]interface{}{
		"tier":     req.Tier,
		"interval": req.BillingInterval,
	})

	return projectSubscription(sub, &price.Amount), nil
}

func (s *billingService) CancelSubscription(ctx context.Context, userID string, immediate bool) (*dto.SubscriptionResponse, error) {
	sub, err := s.SubRepo.GetByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCancelled {
		// Already at the target state; converge, don't error.
		return projectSubscription(sub, s.priceAmount(sub)), nil
	}

	if !immediate {
		return s.deferCancellation(ctx, sub)
	}

	if err := s.Gateway.CancelSubscription(ctx, sub.ExternalSubscriptionRef); err != nil {
		return nil, err
	}

	sub.SubscriptionStatus = types.SubscriptionStatusCancelled
	sub.CancelAtPeriodEnd = false
	sub.UpdatedAt = time.Now().UTC()
	if err := s.SubRepo.Update(ctx, sub); err != nil {
		return nil, err
	}
	if err := s.UserRepo.SetTier(ctx, userID, types.TierFree); err != nil {
		return nil, err
	}
	s.invalidate(ctx, userID)

	s.notifyOwner(ctx, userID, types.NotificationSubscriptionCancelled, map[string]interface{}{
		"immediate": true,
	})

	return projectSubscription(sub, s.priceAmount(sub)), nil
}

// deferCancellation flags cancel-at-period-end on both sides of the
// boundary. Entitlement is untouched until the processor reports the
// deletion at period end.
func (s *billingService) deferCancellation(ctx context.Context, sub *subscription.Subscription) (*dto.SubscriptionResponse, error) {
	if !sub.CancelAtPeriodEnd {
		if err := s.Gateway.SetCancelAtPeriodEnd(ctx, sub.ExternalSubscriptionRef, true); err != nil {
			return nil, err
		}
		sub.CancelAtPeriodEnd = true
		sub.UpdatedAt = time.Now().UTC()
		if err := s.SubRepo.Update(ctx, sub); err != nil {
			return nil, err
		}

		s.notifyOwner(ctx, sub.OwnerUserID, types.NotificationSubscriptionCancelled, map[string]interface{}{
			"immediate":  false,
			"period_end": sub.CurrentPeriodEnd,
		})
	}
	return projectSubscription(sub, s.priceAmount(sub)), nil
}

func (s *billingService) CreateBillingPortalSession(ctx context.Context, userID string) (*dto.PortalSessionResponse, error) {
	u, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.StripeCustomerID == "" {
		return nil, ierr.NewError("user has no billing profile").
			WithHint("Complete a checkout before opening the billing portal").
			Mark(ierr.ErrInvalidOperation)
	}

	url, err := s.Gateway.CreatePortalSession(ctx, u.StripeCustomerID, s.Config.Stripe.PortalReturnURL)
	if err != nil {
		return nil, err
	}
	return &dto.PortalSessionResponse{URL: url}, nil
}

func (s *billingService) GetSubscriptionDetails(ctx context.Context, userID string) (*dto.SubscriptionResponse, error) {
	if _, err := s.UserRepo.Get(ctx, userID); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.GetByOwner(ctx, userID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return &dto.SubscriptionResponse{Tier: types.TierFree}, nil
		}
		return nil, err
	}

	return projectSubscription(sub, s.priceAmount(sub)), nil
}

// invalidate drops the cached subscription so the next quota check sees
// the transition immediately instead of waiting out the TTL.
func (s *billingService) invalidate(ctx context.Context, userID string) {
	s.Cache.Delete(ctx, cache.GenerateKey(cache.PrefixSubscription, userID))
}

func (s *billingService) notifyOwner(ctx context.Context, userID string, template types.NotificationTemplate, data map[string]interface{}) {
	u, err := s.UserRepo.Get(ctx, userID)
	if err != nil {
		s.Logger.Warnw("skipping notification for unknown user",
			"user_id", userID,
			"template", template,
		)
		s.Metrics.NotificationsTotal.WithLabelValues(template.String(), "skipped").Inc()
		return
	}

	err = s.Notifier.Send(ctx, &notify.Notification{
		UserID:   u.ID,
		Email:    u.Email,
		Template: template,
		Data:     data,
	})
	if err != nil {
		s.Metrics.NotificationsTotal.WithLabelValues(template.String(), "failed").Inc()
		return
	}
	s.Metrics.NotificationsTotal.WithLabelValues(template.String(), "sent").Inc()
}

func (s *billingService) priceAmount(sub *subscription.Subscription) *decimal.Decimal {
	price, ok := s.Config.Stripe.LookupPrice(sub.Tier, sub.BillingInterval)
	if !ok {
		return nil
	}
	return &price.Amount
}

func projectSubscription(sub *subscription.Subscription, amount *decimal.Decimal) *dto.SubscriptionResponse {
	return &dto.SubscriptionResponse{
		Tier:               sub.Tier,
		Status:             sub.SubscriptionStatus,
		BillingInterval:    sub.BillingInterval,
		CurrentPeriodStart: &sub.CurrentPeriodStart,
		CurrentPeriodEnd:   &sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		Amount:             amount,
	}
}
