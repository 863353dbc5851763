package dto

import (
	"github.com/specmint/specmint/internal/types"
)

// QuotaCheckRequest asks whether one more action of a kind is allowed.
type QuotaCheckRequest struct {
	ActionKind types.ActionKind `json:"action_kind" validate:"required"`
	TeamID     string           `json:"team_id,omitempty"`
}

func (r *QuotaCheckRequest) Validate() error {
	return r.ActionKind.Validate()
}

// QuotaDecision is the outcome of a quota check. Denial is a normal
// value here, never an error; errors are reserved for infrastructure
// failures. The numeric fields are omitted on the unlimited fast path.
type QuotaDecision struct {
	Allowed      bool                 `json:"allowed"`
	Reason       string               `json:"reason,omitempty"`
	Dimension    types.QuotaDimension `json:"dimension,omitempty"`
	CurrentUsage *int64               `json:"current_usage,omitempty"`
	Limit        *int64               `json:"limit,omitempty"`
	Remaining    *int64               `json:"remaining,omitempty"`
}
