package team

import (
	"github.com/specmint/specmint/internal/types"
)

type Team struct {
	// ID is the unique identifier for the team
	ID string `db:"id" json:"id"`

	// Name is the display name of the team
	Name string `db:"name" json:"name"`

	// OwnerID is the user whose subscription funds the team. The team's
	// quota derives from the owner's tier.
	OwnerID string `db:"owner_id" json:"owner_id"`

	// UsageQuota, when set, overrides the tier default for the
	// specifications dimension only. -1 means unlimited.
	UsageQuota *int64 `db:"usage_quota" json:"usage_quota,omitempty"`

	// SpecCount is a denormalized display counter, same contract as the
	// user-level counter.
	SpecCount int64 `db:"spec_count" json:"spec_count"`

	types.BaseModel
}

func New(name, ownerID string) *Team {
	return &Team{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_TEAM),
		Name:      name,
		OwnerID:   ownerID,
		BaseModel: types.GetDefaultBaseModel(),
	}
}
