package user

import (
	"github.com/specmint/specmint/internal/types"
)

type User struct {
	// ID is the unique identifier for the user
	ID string `db:"id" json:"id"`

	// Email is the login identity of the user
	Email string `db:"email" json:"email"`

	// Name is the display name of the user
	Name string `db:"name" json:"name"`

	// Tier is the user's current subscription tier. It is written only by
	// the subscription lifecycle; quota checks read it as a fallback when
	// no subscription row exists.
	Tier types.Tier `db:"tier" json:"tier"`

	// SpecCount is a denormalized counter of generated specifications kept
	// for cheap display. It is never an enforcement source; quota decisions
	// always consult the usage ledger.
	SpecCount int64 `db:"spec_count" json:"spec_count"`

	// StripeCustomerID is the customer reference in the payment processor
	StripeCustomerID string `db:"stripe_customer_id" json:"stripe_customer_id,omitempty"`

	types.BaseModel
}

func New(email, name string) *User {
	return &User{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USER),
		Email:     email,
		Name:      name,
		Tier:      types.TierFree,
		BaseModel: types.GetDefaultBaseModel(),
	}
}
