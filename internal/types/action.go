package types

import (
	"github.com/samber/lo"
	ierr "github.com/specmint/specmint/internal/errors"
)

// ActionKind is a categorized unit of metered activity.
type ActionKind string

const (
	ActionSpecGenerated   ActionKind = "spec_generated"
	ActionAIGeneration    ActionKind = "ai_generation"
	ActionViewGenerated   ActionKind = "view_generated"
	ActionAPICall         ActionKind = "api_call"
	ActionTeamMemberAdded ActionKind = "team_member_added"
)

func (a ActionKind) String() string {
	return string(a)
}

func (a ActionKind) Validate() error {
	allowed := []ActionKind{
		ActionSpecGenerated,
		ActionAIGeneration,
		ActionViewGenerated,
		ActionAPICall,
		ActionTeamMemberAdded,
	}
	if !lo.Contains(allowed, a) {
		return ierr.NewError("invalid action kind").
			WithHint("Unknown metered action kind").
			WithReportableDetails(map[string]any{
				"action_kind": a,
				"allowed":     allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// QuotaDimension is a named limit bucket in the quota table.
type QuotaDimension string

const (
	DimensionSpecifications QuotaDimension = "specifications"
	DimensionAIGenerations  QuotaDimension = "ai_generations"
	DimensionTeamMembers    QuotaDimension = "team_members"
	DimensionStorageMB      QuotaDimension = "storage_mb"
	DimensionAPICalls       QuotaDimension = "api_calls"
)

func (d QuotaDimension) String() string {
	return string(d)
}

// Dimension maps an action kind to the quota dimension it counts against.
// The mapping is total over the closed set of action kinds; an unknown
// kind is a validation error, never a silent no-op.
func (a ActionKind) Dimension() (QuotaDimension, error) {
	switch a {
	case ActionSpecGenerated:
		return DimensionSpecifications, nil
	case ActionAIGeneration, ActionViewGenerated:
		return DimensionAIGenerations, nil
	case ActionAPICall:
		return DimensionAPICalls, nil
	case ActionTeamMemberAdded:
		return DimensionTeamMembers, nil
	default:
		return "", ierr.NewError("no quota dimension for action kind").
			WithHint("Unknown metered action kind").
			WithReportableDetails(map[string]any{
				"action_kind": a,
			}).
			Mark(ierr.ErrValidation)
	}
}

// MeteredKinds returns every action kind counted for a dimension.
// ai_generation and view_generated share one bucket.
func (d QuotaDimension) MeteredKinds() []ActionKind {
	switch d {
	case DimensionSpecifications:
		return []ActionKind{ActionSpecGenerated}
	case DimensionAIGenerations:
		return []ActionKind{ActionAIGeneration, ActionViewGenerated}
	case DimensionAPICalls:
		return []ActionKind{ActionAPICall}
	default:
		return nil
	}
}

// ActorRef identifies the user or team a metered action is attributed to.
// At least one of UserID/TeamID must be set; TeamID wins when both are.
type ActorRef struct {
	UserID string `json:"user_id,omitempty"`
	TeamID string `json:"team_id,omitempty"`
}

// IsTeam reports whether the team quota applies to this actor.
func (r ActorRef) IsTeam() bool {
	return r.TeamID != ""
}

func (r ActorRef) Validate() error {
	if r.UserID == "" && r.TeamID == "" {
		return ierr.NewError("actor reference is empty").
			WithHint("Either user_id or team_id is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
