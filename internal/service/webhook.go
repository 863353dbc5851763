package service

import (
	"context"
	"time"

	"github.com/specmint/specmint/internal/domain/subscription"
	"github.com/specmint/specmint/internal/domain/user"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/types"
)

// HandleWebhook verifies and dispatches one processor event. Handlers
// are idempotent and keyed by the external subscription reference, so
// duplicate and out-of-order deliveries converge rather than corrupt
// state. A returned error tells the processor to redeliver; events we
// choose not to act on are acknowledged.
func (s *billingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.Gateway.VerifyWebhook(payload, signature)
	if err != nil {
		s.Logger.Warnw("webhook signature verification failed", "error", err)
		s.Metrics.WebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	log := s.Logger.With("event_id", event.ID, "event_type", event.Type)

	var handleErr error
	switch event.Type {
	case types.WebhookEventCheckoutCompleted:
		handleErr = s.handleCheckoutCompleted(ctx, event.Checkout)
	case types.WebhookEventSubscriptionUpdated:
		handleErr = s.handleSubscriptionUpdated(ctx, event.Subscription)
	case types.WebhookEventSubscriptionDeleted:
		handleErr = s.handleSubscriptionDeleted(ctx, event.Subscription)
	case types.WebhookEventInvoicePaymentFailed:
		handleErr = s.handleInvoicePaymentFailed(ctx, event.Invoice)
	default:
		log.Infow("acknowledging unhandled webhook event")
		s.Metrics.WebhookEventsTotal.WithLabelValues(event.Type.String(), "ignored").Inc()
		return nil
	}

	if handleErr != nil {
		log.Errorw("webhook processing failed", "error", handleErr)
		s.Metrics.WebhookEventsTotal.WithLabelValues(event.Type.String(), "failed").Inc()
		return handleErr
	}

	s.Metrics.WebhookEventsTotal.WithLabelValues(event.Type.String(), "processed").Inc()
	return nil
}

func (s *billingService) handleCheckoutCompleted(ctx context.Context, checkout *gateway.CheckoutCompleted) error {
	if checkout == nil || checkout.SubscriptionRef == "" {
		s.Logger.Warnw("checkout completed event without subscription reference")
		return nil
	}

	u, err := s.resolveCheckoutUser(ctx, checkout)
	if err != nil {
		return err
	}
	if u == nil {
		s.Logger.Warnw("checkout completed for unknown user",
			"client_reference", checkout.ClientReference,
			"customer_ref", checkout.CustomerRef,
		)
		return nil
	}

	// Replay guard: a row already converged on this external reference
	// means the event was processed before. No second notification.
	if existing, err := s.SubRepo.GetByExternalSubRef(ctx, checkout.SubscriptionRef); err == nil {
		if existing.IsActive() && existing.OwnerUserID == u.ID {
			return nil
		}
	} else if !ierr.IsNotFound(err) {
		return err
	}

	// The checkout payload does not carry the price; the processor's
	// subscription record is the authority on what was bought.
	authoritative, err := s.Gateway.GetSubscription(ctx, checkout.SubscriptionRef)
	if err != nil {
		return err
	}

	tier, interval, ok := s.Config.Stripe.TierForPrice(authoritative.PriceID)
	if !ok {
		return ierr.NewError("checkout completed for unconfigured price").
			WithHint("Price catalog is missing an entry for a sold price").
			WithReportableDetails(map[string]any{
				"price_id": authoritative.PriceID,
			}).
			Mark(ierr.ErrSystem)
	}

	sub, err := s.SubRepo.GetByOwner(ctx, u.ID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return err
		}
		sub = subscription.New(u.ID, tier)
	}

	sub.Tier = tier
	sub.SubscriptionStatus = authoritative.Status
	sub.ExternalCustomerRef = checkout.CustomerRef
	sub.ExternalSubscriptionRef = checkout.SubscriptionRef
	sub.BillingInterval = interval
	sub.CurrentPeriodStart = authoritative.CurrentPeriodStart
	sub.CurrentPeriodEnd = authoritative.CurrentPeriodEnd
	sub.CancelAtPeriodEnd = authoritative.CancelAtPeriodEnd
	sub.UpdatedAt = time.Now().UTC()

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.SubRepo.Upsert(txCtx, sub); err != nil {
			return err
		}
		if err := s.UserRepo.SetTier(txCtx, u.ID, tier); err != nil {
			return err
		}
		if u.StripeCustomerID == "" && checkout.CustomerRef != "" {
			u.StripeCustomerID = checkout.CustomerRef
			return s.UserRepo.Update(txCtx, u)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, u.ID)

	s.notifyOwner(ctx, u.ID, types.NotificationSubscriptionStarted, map[string]interface{}{
		"tier":     tier,
		"interval": interval,
	})
	return nil
}

func (s *billingService) handleSubscriptionUpdated(ctx context.Context, gwSub *gateway.Subscription) error {
	if gwSub == nil {
		return nil
	}

	local, err := s.SubRepo.GetByExternalSubRef(ctx, gwSub.Ref)
	if err != nil {
		if ierr.IsNotFound(err) {
			// Updated can race ahead of checkout completion; the
			// completion handler will converge on the same state.
			s.Logger.Warnw("subscription update for unknown reference", "ref", gwSub.Ref)
			return nil
		}
		return err
	}

	// A locally cancelled row stays cancelled unless the processor
	// reports a genuinely newer active period. Stale updates delivered
	// after deletion must not resurrect the subscription.
	if local.SubscriptionStatus == types.SubscriptionStatusCancelled {
		if gwSub.Status != types.SubscriptionStatusActive || !gwSub.CurrentPeriodEnd.After(local.CurrentPeriodEnd) {
			return nil
		}
	}

	if tier, interval, ok := s.Config.Stripe.TierForPrice(gwSub.PriceID); ok {
		local.Tier = tier
		local.BillingInterval = interval
	}
	local.SubscriptionStatus = gwSub.Status
	local.CurrentPeriodStart = gwSub.CurrentPeriodStart
	local.CurrentPeriodEnd = gwSub.CurrentPeriodEnd
	local.CancelAtPeriodEnd = gwSub.CancelAtPeriodEnd
	local.UpdatedAt = time.Now().UTC()

	if err := s.SubRepo.Update(ctx, local); err != nil {
		return err
	}

	// Only active restores the purchased tier on the owner record and
	// only cancellation demotes it. Delinquent states keep the field so
	// recovery needs no re-resolution; entitlement is computed from
	// status at check time regardless.
	switch local.SubscriptionStatus {
	case types.SubscriptionStatusActive:
		err = s.UserRepo.SetTier(ctx, local.OwnerUserID, local.Tier)
	case types.SubscriptionStatusCancelled:
		err = s.UserRepo.SetTier(ctx, local.OwnerUserID, types.TierFree)
	}
	if err != nil {
		return err
	}
	s.invalidate(ctx, local.OwnerUserID)

	s.notifyOwner(ctx, local.OwnerUserID, types.NotificationSubscriptionUpdated, map[string]interface{}{
		"tier":   local.Tier,
		"status": local.SubscriptionStatus,
	})
	return nil
}

func (s *billingService) handleSubscriptionDeleted(ctx context.Context, gwSub *gateway.Subscription) error {
	if gwSub == nil {
		return nil
	}

	local, err := s.SubRepo.GetByExternalSubRef(ctx, gwSub.Ref)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("subscription deletion for unknown reference", "ref", gwSub.Ref)
			return nil
		}
		return err
	}
	if local.SubscriptionStatus == types.SubscriptionStatusCancelled {
		return nil
	}

	local.SubscriptionStatus = types.SubscriptionStatusCancelled
	local.CancelAtPeriodEnd = false
	local.UpdatedAt = time.Now().UTC()

	err = s.DB.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.SubRepo.Update(txCtx, local); err != nil {
			return err
		}
		return s.UserRepo.SetTier(txCtx, local.OwnerUserID, types.TierFree)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, local.OwnerUserID)

	s.notifyOwner(ctx, local.OwnerUserID, types.NotificationSubscriptionCancelled, map[string]interface{}{
		"tier": local.Tier,
	})
	return nil
}

func (s *billingService) handleInvoicePaymentFailed(ctx context.Context, invoice *gateway.InvoiceFailure) error {
	if invoice == nil || invoice.SubscriptionRef == "" {
		s.Logger.Warnw("payment failure event without subscription reference")
		return nil
	}

	local, err := s.SubRepo.GetByExternalSubRef(ctx, invoice.SubscriptionRef)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("payment failure for unknown reference", "ref", invoice.SubscriptionRef)
			return nil
		}
		return err
	}
	if local.SubscriptionStatus == types.SubscriptionStatusPastDue {
		return nil
	}

	// The tier field is deliberately untouched: the grace period keeps
	// the purchased tier on record for painless recovery.
	local.SubscriptionStatus = types.SubscriptionStatusPastDue
	local.UpdatedAt = time.Now().UTC()

	if err := s.SubRepo.Update(ctx, local); err != nil {
		return err
	}
	s.invalidate(ctx, local.OwnerUserID)

	s.notifyOwner(ctx, local.OwnerUserID, types.NotificationPaymentFailed, map[string]interface{}{
		"remediation_url": invoice.HostedInvoiceURL,
	})
	return nil
}

// resolveCheckoutUser matches the completed checkout back to a local
// user, preferring the client reference we set at session creation.
func (s *billingService) resolveCheckoutUser(ctx context.Context, checkout *gateway.CheckoutCompleted) (*user.User, error) {
	if checkout.ClientReference != "" {
		u, err := s.UserRepo.Get(ctx, checkout.ClientReference)
		if err == nil {
			return u, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	if checkout.CustomerRef != "" {
		u, err := s.UserRepo.GetByStripeCustomerID(ctx, checkout.CustomerRef)
		if err == nil {
			return u, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	return nil, nil
}
