package stripe

import (
	"context"

	"github.com/specmint/specmint/internal/config"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
	"github.com/specmint/specmint/internal/logger"
	stripeapi "github.com/stripe/stripe-go/v82"
)

// Client implements gateway.Gateway against the Stripe API.
type Client struct {
	api           *stripeapi.Client
	webhookSecret string
	logger        *logger.Logger
}

func NewClient(cfg *config.Configuration, logger *logger.Logger) gateway.Gateway {
	return &Client{
		api:           stripeapi.NewClient(cfg.Stripe.SecretKey, nil),
		webhookSecret: cfg.Stripe.WebhookSecret,
		logger:        logger,
	}
}

func (c *Client) EnsureCustomer(ctx context.Context, userID, email, name, existingRef string) (string, error) {
	if existingRef != "" {
		return existingRef, nil
	}

	params := &stripeapi.CustomerCreateParams{
		Email: stripeapi.String(email),
		Name:  stripeapi.String(name),
		Metadata: map[string]string{
			"user_id": userID,
		},
	}

	customer, err := c.api.V1Customers.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create stripe customer",
			"error", err,
			"user_id", userID,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to create payment customer").
			WithReportableDetails(map[string]any{
				"user_id": userID,
			}).
			Mark(ierr.ErrGateway)
	}

	return customer.ID, nil
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (string, error) {
	sessionParams := &stripeapi.CheckoutSessionCreateParams{
		Mode:              stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		Customer:          stripeapi.String(params.CustomerRef),
		ClientReferenceID: stripeapi.String(params.ClientReference),
		SuccessURL:        stripeapi.String(params.SuccessURL),
		CancelURL:         stripeapi.String(params.CancelURL),
		LineItems: []*stripeapi.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripeapi.String(params.PriceID),
				Quantity: stripeapi.Int64(1),
			},
		},
	}

	session, err := c.api.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		c.logger.Errorw("failed to create stripe checkout session",
			"error", err,
			"price_id", params.PriceID,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to create checkout session").
			WithReportableDetails(map[string]any{
				"price_id": params.PriceID,
			}).
			Mark(ierr.ErrGateway)
	}

	return session.URL, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripeapi.BillingPortalSessionCreateParams{
		Customer: stripeapi.String(customerRef),
	}
	if returnURL != "" {
		params.ReturnURL = stripeapi.String(returnURL)
	}

	session, err := c.api.V1BillingPortalSessions.Create(ctx, params)
	if err != nil {
		c.logger.Errorw("failed to create stripe portal session",
			"error", err,
			"customer_ref", customerRef,
		)
		return "", ierr.WithError(err).
			WithHint("Unable to create billing portal session").
			Mark(ierr.ErrGateway)
	}

	return session.URL, nil
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionRef string) (*gateway.Subscription, error) {
	stripeSub, err := c.api.V1Subscriptions.Retrieve(ctx, subscriptionRef, nil)
	if err != nil {
		c.logger.Errorw("failed to retrieve stripe subscription",
			"error", err,
			"subscription_ref", subscriptionRef,
		)
		return nil, ierr.WithError(err).
			WithHint("Unable to fetch subscription from the payment processor").
			WithReportableDetails(map[string]any{
				"subscription_ref": subscriptionRef,
			}).
			Mark(ierr.ErrGateway)
	}

	return fromStripeSubscription(stripeSub)
}

func (c *Client) ChangePrice(ctx context.Context, subscriptionRef, newPriceID string) error {
	stripeSub, err := c.api.V1Subscriptions.Retrieve(ctx, subscriptionRef, nil)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Unable to fetch subscription from the payment processor").
			Mark(ierr.ErrGateway)
	}
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return ierr.NewError("subscription has no items").
			WithHint("Subscription has no billable items").
			Mark(ierr.ErrGateway)
	}

	params := &stripeapi.SubscriptionUpdateParams{
		Items: []*stripeapi.SubscriptionUpdateItemParams{
			{
				ID:    stripeapi.String(stripeSub.Items.Data[0].ID),
				Price: stripeapi.String(newPriceID),
			},
		},
		ProrationBehavior: stripeapi.String("create_prorations"),
		// A pending deferred cancel would silently swallow the upgrade
		CancelAtPeriodEnd: stripeapi.Bool(false),
	}

	if _, err := c.api.V1Subscriptions.Update(ctx, subscriptionRef, params); err != nil {
		c.logger.Errorw("failed to update stripe subscription price",
			"error", err,
			"subscription_ref", subscriptionRef,
			"price_id", newPriceID,
		)
		return ierr.WithError(err).
			WithHint("Unable to update subscription").
			Mark(ierr.ErrGateway)
	}

	return nil
}

func (c *Client) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) error {
	params := &stripeapi.SubscriptionUpdateParams{
		CancelAtPeriodEnd: stripeapi.Bool(cancel),
	}
	if _, err := c.api.V1Subscriptions.Update(ctx, subscriptionRef, params); err != nil {
		c.logger.Errorw("failed to flag stripe subscription cancellation",
			"error", err,
			"subscription_ref", subscriptionRef,
			"cancel_at_period_end", cancel,
		)
		return ierr.WithError(err).
			WithHint("Unable to update subscription cancellation").
			Mark(ierr.ErrGateway)
	}
	return nil
}

func (c *Client) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	if _, err := c.api.V1Subscriptions.Cancel(ctx, subscriptionRef, nil); err != nil {
		c.logger.Errorw("failed to cancel stripe subscription",
			"error", err,
			"subscription_ref", subscriptionRef,
		)
		return ierr.WithError(err).
			WithHint("Unable to cancel subscription").
			Mark(ierr.ErrGateway)
	}
	return nil
}
