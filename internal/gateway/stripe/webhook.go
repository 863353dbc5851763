package stripe

import (
	"encoding/json"
	"time"

	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/types"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// VerifyWebhook checks the event signature and parses the payload into
// the neutral envelope the billing service consumes. Verification failure
// must leave no side effects in the caller.
func (c *Client) VerifyWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	options := webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, options)
	if err != nil {
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	parsed := &gateway.WebhookEvent{
		ID:   event.ID,
		Type: types.WebhookEventType(event.Type),
	}

	switch parsed.Type {
	case types.WebhookEventCheckoutCompleted:
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid checkout session data in webhook").
				Mark(ierr.ErrValidation)
		}
		checkout := &gateway.CheckoutCompleted{
			SessionID:       session.ID,
			ClientReference: session.ClientReferenceID,
		}
		if session.Customer != nil {
			checkout.CustomerRef = session.Customer.ID
		}
		if session.Subscription != nil {
			checkout.SubscriptionRef = session.Subscription.ID
		}
		parsed.Checkout = checkout

	case types.WebhookEventSubscriptionUpdated, types.WebhookEventSubscriptionDeleted:
		var stripeSub stripeapi.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid subscription data in webhook").
				Mark(ierr.ErrValidation)
		}
		sub, err := fromStripeSubscription(&stripeSub)
		if err != nil {
			return nil, err
		}
		parsed.Subscription = sub

	case types.WebhookEventInvoicePaymentFailed:
		// The subscription reference moved between invoice schema
		// versions; read both locations from the raw payload.
		var invoice struct {
			Customer     string `json:"customer"`
			Subscription string `json:"subscription"`
			Parent       struct {
				SubscriptionDetails struct {
					Subscription string `json:"subscription"`
				} `json:"subscription_details"`
			} `json:"parent"`
			HostedInvoiceURL string `json:"hosted_invoice_url"`
		}
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Invalid invoice data in webhook").
				Mark(ierr.ErrValidation)
		}
		subscriptionRef := invoice.Subscription
		if subscriptionRef == "" {
			subscriptionRef = invoice.Parent.SubscriptionDetails.Subscription
		}
		parsed.Invoice = &gateway.InvoiceFailure{
			CustomerRef:      invoice.Customer,
			SubscriptionRef:  subscriptionRef,
			HostedInvoiceURL: invoice.HostedInvoiceURL,
		}
	}

	return parsed, nil
}

// fromStripeSubscription reduces a stripe subscription to the neutral
// shape. Period bounds live on the first item since the 2025-03-31 API.
func fromStripeSubscription(stripeSub *stripeapi.Subscription) (*gateway.Subscription, error) {
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return nil, ierr.NewError("no items found in subscription").
			WithHint("Subscription must have at least one item").
			Mark(ierr.ErrValidation)
	}

	firstItem := stripeSub.Items.Data[0]

	sub := &gateway.Subscription{
		Ref:                stripeSub.ID,
		Status:             types.SubscriptionStatusFromStripe(string(stripeSub.Status)),
		CurrentPeriodStart: time.Unix(firstItem.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(firstItem.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  stripeSub.CancelAtPeriodEnd,
	}
	if stripeSub.Customer != nil {
		sub.CustomerRef = stripeSub.Customer.ID
	}
	if firstItem.Price != nil {
		sub.PriceID = firstItem.Price.ID
	}

	return sub, nil
}
