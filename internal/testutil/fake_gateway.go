package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/gateway"
)

// ValidSignature is the signature the fake gateway accepts. Payloads are
// JSON-encoded gateway.WebhookEvent values, so webhook tests build the
// parsed event directly instead of replaying processor wire formats.
const ValidSignature = "test-signature"

// FakeGateway is a scripted gateway.Gateway for service tests. It records
// every call and returns whatever the test configured.
type FakeGateway struct {
	mu sync.Mutex

	// Scripted state
	Subscriptions map[string]*gateway.Subscription
	Err           error

	// Call records
	CustomersCreated []string
	CheckoutsCreated []gateway.CheckoutParams
	PortalsCreated   []string
	PriceChanges     map[string]string
	DeferredCancels  map[string]bool
	ImmediateCancels []string
	customerSequence int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Subscriptions:   make(map[string]*gateway.Subscription),
		PriceChanges:    make(map[string]string),
		DeferredCancels: make(map[string]bool),
	}
}

func (g *FakeGateway) EnsureCustomer(ctx context.Context, userID, email, name, existingRef string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	if existingRef != "" {
		return existingRef, nil
	}
	g.customerSequence++
	ref := fmt.Sprintf("cus_test_%d", g.customerSequence)
	g.CustomersCreated = append(g.CustomersCreated, ref)
	return ref, nil
}

func (g *FakeGateway) CreateCheckoutSession(ctx context.Context, params gateway.CheckoutParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	g.CheckoutsCreated = append(g.CheckoutsCreated, params)
	return "https://checkout.test/session", nil
}

func (g *FakeGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	g.PortalsCreated = append(g.PortalsCreated, customerRef)
	return "https://portal.test/session", nil
}

func (g *FakeGateway) GetSubscription(ctx context.Context, subscriptionRef string) (*gateway.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return nil, g.Err
	}
	sub, ok := g.Subscriptions[subscriptionRef]
	if !ok {
		return nil, ierr.NewError("subscription not found").
			WithHintf("Subscription %s was not found", subscriptionRef).
			Mark(ierr.ErrNotFound)
	}
	copied := *sub
	return &copied, nil
}

func (g *FakeGateway) ChangePrice(ctx context.Context, subscriptionRef, newPriceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return g.Err
	}
	g.PriceChanges[subscriptionRef] = newPriceID
	return nil
}

func (g *FakeGateway) SetCancelAtPeriodEnd(ctx context.Context, subscriptionRef string, cancel bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return g.Err
	}
	g.DeferredCancels[subscriptionRef] = cancel
	return nil
}

func (g *FakeGateway) CancelSubscription(ctx context.Context, subscriptionRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return g.Err
	}
	g.ImmediateCancels = append(g.ImmediateCancels, subscriptionRef)
	return nil
}

func (g *FakeGateway) VerifyWebhook(payload []byte, signature string) (*gateway.WebhookEvent, error) {
	if signature != ValidSignature {
		return nil, ierr.NewError("failed to verify webhook signature").
			WithHint("Invalid webhook signature or payload").
			Mark(ierr.ErrValidation)
	}

	var event gateway.WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, ierr.WithError(err).
			WithHint("Invalid webhook payload").
			Mark(ierr.ErrValidation)
	}
	return &event, nil
}

// SeedSubscription registers the processor-side state returned by
// GetSubscription.
func (g *FakeGateway) SeedSubscription(sub *gateway.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Subscriptions[sub.Ref] = sub
}
