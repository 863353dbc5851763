package quota

import (
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
)

// Unlimited is the sentinel limit for dimensions with no cap.
const Unlimited int64 = -1

// Quota is the set of numeric limits per metered dimension for a tier.
// Quotas are static configuration, read at runtime and never mutated.
type Quota struct {
	Specifications int64 `json:"specifications"`
	AIGenerations  int64 `json:"ai_generations"`
	TeamMembers    int64 `json:"team_members"`
	StorageMB      int64 `json:"storage_mb"`
	APICalls       int64 `json:"api_calls"`
}

// table maps every tier to its quota. Enterprise is unlimited on every
// dimension so unlimited accounts can never be blocked by an aggregation
// failure.
var table = map[types.Tier]Quota{
	types.TierFree: {
		Specifications: 3,
		AIGenerations:  10,
		TeamMembers:    1,
		StorageMB:      100,
		APICalls:       100,
	},
	types.TierStarter: {
		Specifications: 50,
		AIGenerations:  200,
		TeamMembers:    3,
		StorageMB:      1024,
		APICalls:       5000,
	},
	types.TierProfessional: {
		Specifications: 500,
		AIGenerations:  2000,
		TeamMembers:    10,
		StorageMB:      10240,
		APICalls:       50000,
	},
	types.TierEnterprise: {
		Specifications: Unlimited,
		AIGenerations:  Unlimited,
		TeamMembers:    Unlimited,
		StorageMB:      Unlimited,
		APICalls:       Unlimited,
	},
}

// ForTier returns the quota for a tier. Unknown tiers fall back to the
// free quota so a corrupt tier value never grants entitlement.
func ForTier(tier types.Tier) Quota {
	if q, ok := table[tier]; ok {
		return q
	}
	return table[types.TierFree]
}

// LimitFor returns the limit of one dimension for a tier.
func (q Quota) LimitFor(dimension types.QuotaDimension) (int64, error) {
	switch dimension {
	case types.DimensionSpecifications:
		return q.Specifications, nil
	case types.DimensionAIGenerations:
		return q.AIGenerations, nil
	case types.DimensionTeamMembers:
		return q.TeamMembers, nil
	case types.DimensionStorageMB:
		return q.StorageMB, nil
	case types.DimensionAPICalls:
		return q.APICalls, nil
	default:
		return 0, ierr.NewError("unknown quota dimension").
			WithHint("Unknown quota dimension").
			WithReportableDetails(map[string]any{
				"dimension": dimension,
			}).
			Mark(ierr.ErrValidation)
	}
}

// IsUnlimited reports whether a limit is the unlimited sentinel.
func IsUnlimited(limit int64) bool {
	return limit == Unlimited
}
