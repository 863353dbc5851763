package usage

import (
	"time"

	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
	"github.com/specmint/specmint/internal/validator"
)

// Event is one immutable record of a metered action. Entries are never
// updated or deleted except by the retention sweep.
type Event struct {
	// ID is the unique identifier for the entry
	ID string `json:"id" ch:"id" validate:"required"`

	// UserID is the acting user, empty for team-attributed actions
	UserID string `json:"user_id" ch:"user_id"`

	// TeamID is the team the action is attributed to, if any
	TeamID string `json:"team_id" ch:"team_id"`

	// ActionKind categorizes the metered action
	ActionKind types.ActionKind `json:"action_kind" ch:"action_kind" validate:"required"`

	// Properties carries free-form metadata about the action
	Properties map[string]interface{} `json:"properties" ch:"properties"`

	// Timestamp is when the action occurred
	Timestamp time.Time `json:"timestamp" ch:"timestamp,timezone('UTC')" validate:"required"`

	// IngestedAt is set server side when the entry lands in the ledger
	IngestedAt time.Time `json:"ingested_at" ch:"ingested_at,timezone('UTC')"`
}

// NewEvent creates a usage event with defaults applied.
func NewEvent(actor types.ActorRef, kind types.ActionKind, properties map[string]interface{}, timestamp time.Time) *Event {
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	} else {
		timestamp = timestamp.UTC()
	}

	return &Event{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_EVENT),
		UserID:     actor.UserID,
		TeamID:     actor.TeamID,
		ActionKind: kind,
		Properties: properties,
		Timestamp:  timestamp,
	}
}

func (e *Event) Validate() error {
	if err := validator.ValidateRequest(e); err != nil {
		return err
	}
	if e.UserID == "" && e.TeamID == "" {
		return ierr.NewError("usage event without actor").
			WithHint("Either user_id or team_id is required").
			Mark(ierr.ErrValidation)
	}
	return e.ActionKind.Validate()
}

// Actor returns the actor the entry is attributed to.
func (e *Event) Actor() types.ActorRef {
	return types.ActorRef{UserID: e.UserID, TeamID: e.TeamID}
}

// CountParams filters the aggregation query behind a quota check.
// Kinds with more than one entry are summed together (the ai_generations
// dimension counts ai_generation and view_generated as one bucket).
type CountParams struct {
	Actor types.ActorRef
	Kinds []types.ActionKind
	Start time.Time
	End   time.Time
}

// GetEventsParams filters the raw entry listing for reporting.
type GetEventsParams struct {
	Actor types.ActorRef
	Kind  types.ActionKind
	Start time.Time
	End   time.Time
	Limit int
}
