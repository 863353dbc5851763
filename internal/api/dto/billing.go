package dto

import (
	"time"

	"github.com/shopspring/decimal"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
	"github.com/specmint/specmint/internal/validator"
)

// CreateCheckoutRequest starts a checkout for a paid tier.
type CreateCheckoutRequest struct {
	Tier            types.Tier            `json:"tier" validate:"required"`
	BillingInterval types.BillingInterval `json:"billing_interval" validate:"required"`
	SuccessURL      string                `json:"success_url" validate:"required,url"`
	CancelURL       string                `json:"cancel_url" validate:"required,url"`
}

func (r *CreateCheckoutRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	if err := r.BillingInterval.Validate(); err != nil {
		return err
	}
	if !r.Tier.IsPaid() {
		return ierr.NewError("checkout requires a paid tier").
			WithHint("The free tier does not require checkout").
			WithReportableDetails(map[string]any{
				"tier": r.Tier,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CheckoutResponse carries the processor redirect URL. No local state
// changes until the completion webhook arrives.
type CheckoutResponse struct {
	URL string `json:"url"`
}

// UpdateSubscriptionRequest changes tier or interval on an active
// subscription. Downgrading to free is expressed as tier=free and is
// applied as a deferred cancellation.
type UpdateSubscriptionRequest struct {
	Tier            types.Tier            `json:"tier" validate:"required"`
	BillingInterval types.BillingInterval `json:"billing_interval" validate:"required"`
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if err := r.Tier.Validate(); err != nil {
		return err
	}
	return r.BillingInterval.Validate()
}

// CancelSubscriptionRequest cancels now or at period end.
type CancelSubscriptionRequest struct {
	Immediate bool `json:"immediate"`
}

// PortalSessionResponse carries the billing portal redirect URL.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// SubscriptionResponse is the status projection for the account page.
type SubscriptionResponse struct {
	Tier               types.Tier               `json:"tier"`
	Status             types.SubscriptionStatus `json:"status"`
	BillingInterval    types.BillingInterval    `json:"billing_interval,omitempty"`
	CurrentPeriodStart *time.Time               `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	Amount             *decimal.Decimal         `json:"amount,omitempty"`
}
