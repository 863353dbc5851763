package dto

import (
	"time"

	"github.com/specmint/specmint/internal/domain/usage"
	"github.com/specmint/specmint/internal/types"
	"github.com/specmint/specmint/internal/validator"
)

// IngestUsageRequest records one metered action for the calling actor.
type IngestUsageRequest struct {
	ActionKind types.ActionKind       `json:"action_kind" validate:"required"`
	TeamID     string                 `json:"team_id,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

func (r *IngestUsageRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ActionKind.Validate()
}

// GetUsageSummaryRequest scopes the summary. An empty window means the
// current calendar month.
type GetUsageSummaryRequest struct {
	TeamID string            `json:"team_id" form:"team_id"`
	Window types.UsageWindow `json:"window" form:"window"`
}

// DimensionUsage is one row of the usage summary.
type DimensionUsage struct {
	Dimension types.QuotaDimension `json:"dimension"`
	Used      int64                `json:"used"`
	Limit     int64                `json:"limit"`
	Remaining int64                `json:"remaining"`
	Unlimited bool                 `json:"unlimited"`
}

// UsageSummaryResponse is the account-page projection of usage vs limits.
type UsageSummaryResponse struct {
	Tier       types.Tier        `json:"tier"`
	Window     types.UsageWindow `json:"window"`
	Dimensions []DimensionUsage  `json:"dimensions"`
}

// GetUsageEventsRequest lists raw ledger entries for reporting.
type GetUsageEventsRequest struct {
	TeamID     string           `json:"team_id" form:"team_id"`
	ActionKind types.ActionKind `json:"action_kind" form:"action_kind"`
	StartTime  time.Time        `json:"start_time" form:"start_time" time_format:"2006-01-02T15:04:05Z07:00"`
	EndTime    time.Time        `json:"end_time" form:"end_time" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int              `json:"limit" form:"limit"`
}

// GetUsageEventsResponse carries raw ledger entries, newest first.
type GetUsageEventsResponse struct {
	Events []*usage.Event `json:"events"`
	Count  int            `json:"count"`
}
