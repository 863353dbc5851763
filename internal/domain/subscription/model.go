package subscription

import (
	"time"

	"github.com/specmint/specmint/internal/types"
)

type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// OwnerUserID is the user this subscription belongs to. A user has at
	// most one subscription row; re-subscription upserts the same row.
	OwnerUserID string `db:"owner_user_id" json:"owner_user_id"`

	// Tier is the purchased tier
	Tier types.Tier `db:"tier" json:"tier"`

	// SubscriptionStatus is the lifecycle status of the subscription
	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// ExternalCustomerRef is the customer id in the payment processor
	ExternalCustomerRef string `db:"external_customer_ref" json:"external_customer_ref"`

	// ExternalSubscriptionRef is the subscription id in the payment
	// processor. Webhook handlers key their upserts on this reference so
	// duplicate and out-of-order deliveries converge.
	ExternalSubscriptionRef string `db:"external_subscription_ref" json:"external_subscription_ref"`

	// BillingInterval is the recurrence of the billing cycle
	BillingInterval types.BillingInterval `db:"billing_interval" json:"billing_interval"`

	// CurrentPeriodStart is the start of the invoiced period
	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`

	// CurrentPeriodEnd is the end of the invoiced period
	CurrentPeriodEnd time.Time `db:"current_period_end" json:"current_period_end"`

	// CancelAtPeriodEnd flags a deferred downgrade; entitlement persists
	// until the period ends.
	CancelAtPeriodEnd bool `db:"cancel_at_period_end" json:"cancel_at_period_end"`

	types.BaseModel
}

func New(ownerUserID string, tier types.Tier) *Subscription {
	return &Subscription{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		OwnerUserID: ownerUserID,
		Tier:        tier,
		BaseModel:   types.GetDefaultBaseModel(),
	}
}

// IsActive reports whether the subscription currently grants entitlement.
// Active is the sole status under which the owner's effective tier equals
// the subscription tier.
func (s *Subscription) IsActive() bool {
	return s != nil && s.SubscriptionStatus == types.SubscriptionStatusActive
}

// EffectiveTier returns the tier the subscription grants right now.
func (s *Subscription) EffectiveTier() types.Tier {
	if s.IsActive() {
		return s.Tier
	}
	return types.TierFree
}
