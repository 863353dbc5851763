package types

import (
	"github.com/samber/lo"
	ierr "github.com/specmint/specmint/internal/errors"
)

// Tier is a named subscription level determining quota limits.
// Tiers are totally ordered by increasing entitlement.
type Tier string

const (
	TierFree         Tier = "free"
	TierStarter      Tier = "starter"
	TierProfessional Tier = "professional"
	TierEnterprise   Tier = "enterprise"
)

func (t Tier) String() string {
	return string(t)
}

// Level returns the ordering rank of the tier. Unknown tiers rank below
// free so they never gain entitlement by accident.
func (t Tier) Level() int {
	switch t {
	case TierFree:
		return 0
	case TierStarter:
		return 1
	case TierProfessional:
		return 2
	case TierEnterprise:
		return 3
	default:
		return -1
	}
}

// IsPaid reports whether the tier is purchasable through checkout.
func (t Tier) IsPaid() bool {
	return t == TierStarter || t == TierProfessional || t == TierEnterprise
}

func (t Tier) Validate() error {
	allowed := []Tier{
		TierFree,
		TierStarter,
		TierProfessional,
		TierEnterprise,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid tier").
			WithHint("Invalid subscription tier").
			WithReportableDetails(map[string]any{
				"tier":          t,
				"allowed_tiers": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
