package gateway

import (
	"context"
	"time"

	"github.com/specmint/specmint/internal/types"
)

// Gateway abstracts the external payment processor. The billing service
// never talks to the processor SDK directly so tests can substitute a
// fake and the processor can be swapped without touching the lifecycle
// logic.
type Gateway interface {
	// EnsureCustomer returns the processor customer reference for a user,
	// creating the customer on first use.
	EnsureCustomer(ctx context.Context, userID, email, name, existingRef string) (string, error)

	// CreateCheckoutSession opens a checkout for a price and returns the
	// redirect URL. No local state changes until the completion event.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)

	// CreatePortalSession returns a billing portal redirect URL.
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)

	// GetSubscription fetches the authoritative subscription state.
	GetSubscription(ctx context.Context, subscriptionRef string) (*Subscription, error)

	// ChangePrice swaps the subscription onto a new price with immediate
	// proration.
	ChangePrice(ctx context.Context, subscriptionRef, newPriceID string) error

	// SetCancelAtPeriodEnd flags or unflags a deferred cancellation.
	SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) error

	// CancelSubscription cancels immediately.
	CancelSubscription(ctx context.Context, subscriptionRef string) error

	// VerifyWebhook checks the signature and parses the envelope. An
	// invalid signature is a validation error and must cause zero side
	// effects in the caller.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutParams describes one checkout session.
type CheckoutParams struct {
	CustomerRef     string
	PriceID         string
	SuccessURL      string
	CancelURL       string
	ClientReference string // resolves back to the local user on completion
}

// Subscription is the processor's view of a subscription, reduced to the
// fields the lifecycle machine consumes.
type Subscription struct {
	Ref                string
	CustomerRef        string
	Status             types.SubscriptionStatus
	PriceID            string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// CheckoutCompleted is the parsed payload of a completed checkout.
type CheckoutCompleted struct {
	SessionID       string
	ClientReference string
	CustomerRef     string
	SubscriptionRef string
}

// InvoiceFailure is the parsed payload of a failed invoice payment.
type InvoiceFailure struct {
	CustomerRef      string
	SubscriptionRef  string
	HostedInvoiceURL string
}

// WebhookEvent is a verified, parsed processor event. Exactly one of the
// payload fields is set depending on Type; unknown types carry none.
type WebhookEvent struct {
	ID   string
	Type types.WebhookEventType

	Checkout     *CheckoutCompleted
	Subscription *Subscription
	Invoice      *InvoiceFailure
}
