package types

import (
	"github.com/samber/lo"
	ierr "github.com/specmint/specmint/internal/errors"
)

// SubscriptionStatus is the status of a subscription.
// Statuses mirror the payment processor's lifecycle states
// https://stripe.com/docs/api/subscriptions/object#subscription_object-status
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPastDue   SubscriptionStatus = "past_due"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusUnpaid    SubscriptionStatus = "unpaid"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCancelled,
		SubscriptionStatusUnpaid,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionStatusFromStripe maps the processor's status strings onto the
// local lifecycle. The processor is authoritative; anything it reports that
// does not grant entitlement collapses to unpaid so effective tier stays free.
func SubscriptionStatusFromStripe(status string) SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return SubscriptionStatusCancelled
	default:
		return SubscriptionStatusUnpaid
	}
}

// BillingInterval is the recurrence of the billing cycle.
type BillingInterval string

const (
	BillingIntervalMonthly BillingInterval = "monthly"
	BillingIntervalAnnual  BillingInterval = "annual"
)

func (b BillingInterval) String() string {
	return string(b)
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BillingIntervalMonthly,
		BillingIntervalAnnual,
	}
	if !lo.Contains(allowed, b) {
		return ierr.NewError("invalid billing interval").
			WithHint("Billing interval must be monthly or annual").
			WithReportableDetails(map[string]any{
				"interval": b,
				"allowed":  allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
