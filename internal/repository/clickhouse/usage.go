package clickhouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/samber/lo"
	"github.com/specmint/specmint/internal/clickhouse"
	"github.com/specmint/specmint/internal/domain/usage"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type UsageRepository struct {
	store  *clickhouse.ClickHouseStore
	logger *logger.Logger
}

func NewUsageRepository(store *clickhouse.ClickHouseStore, logger *logger.Logger) usage.Repository {
	return &UsageRepository{store: store, logger: logger}
}

func (r *UsageRepository) Insert(ctx context.Context, event *usage.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	propertiesJSON, err := json.Marshal(event.Properties)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to marshal usage event properties").
			WithReportableDetails(map[string]interface{}{
				"event_id": event.ID,
			}).
			Mark(ierr.ErrValidation)
	}

	query := `
		INSERT INTO usage_events (
			id, user_id, team_id, action_kind, properties, timestamp
		) VALUES (
			?, ?, ?, ?, ?, ?
		)
	`

	err = r.store.GetConn().Exec(ctx, query,
		event.ID,
		event.UserID,
		event.TeamID,
		event.ActionKind.String(),
		string(propertiesJSON),
		event.Timestamp,
	)

	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to insert usage event").
			WithReportableDetails(map[string]interface{}{
				"event_id":    event.ID,
				"action_kind": event.ActionKind,
			}).
			Mark(ierr.ErrDatabase)
	}

	return nil
}

// BulkInsert inserts entries in batches of 100 for better throughput.
func (r *UsageRepository) BulkInsert(ctx context.Context, events []*usage.Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, batchEvents := range lo.Chunk(events, 100) {
		batch, err := r.store.GetConn().PrepareBatch(ctx, `
		INSERT INTO usage_events (
			id, user_id, team_id, action_kind, properties, timestamp
		)
	`)
		if err != nil {
			return ierr.WithError(err).
				WithHint("Failed to prepare batch for usage events").
				Mark(ierr.ErrDatabase)
		}

		for _, event := range batchEvents {
			if err := event.Validate(); err != nil {
				return err
			}

			propertiesJSON, err := json.Marshal(event.Properties)
			if err != nil {
				return ierr.WithError(err).
					WithHint("Failed to marshal usage event properties").
					WithReportableDetails(map[string]interface{}{
						"event_id": event.ID,
					}).
					Mark(ierr.ErrValidation)
			}

			if err := batch.Append(
				event.ID,
				event.UserID,
				event.TeamID,
				event.ActionKind.String(),
				string(propertiesJSON),
				event.Timestamp,
			); err != nil {
				return ierr.WithError(err).
					WithHint("Failed to append usage event to batch").
					Mark(ierr.ErrDatabase)
			}
		}

		if err := batch.Send(); err != nil {
			return ierr.WithError(err).
				WithHint("Failed to send usage event batch").
				Mark(ierr.ErrDatabase)
		}
	}

	return nil
}

// Count runs the single aggregation query behind a quota check.
func (r *UsageRepository) Count(ctx context.Context, params *usage.CountParams) (int64, error) {
	if len(params.Kinds) == 0 {
		return 0, ierr.NewError("no action kinds to count").
			WithHint("At least one action kind is required").
			Mark(ierr.ErrValidation)
	}

	conds, args := actorConditions(params.Actor)

	kindPlaceholders := strings.TrimSuffix(strings.Repeat("?, ", len(params.Kinds)), ", ")
	conds = append(conds, fmt.Sprintf("action_kind IN (%s)", kindPlaceholders))
	for _, kind := range params.Kinds {
		args = append(args, kind.String())
	}

	conds = append(conds, "timestamp >= ?", "timestamp <= ?")
	args = append(args, params.Start, params.End)

	query := fmt.Sprintf(
		"SELECT count() FROM usage_events WHERE %s",
		strings.Join(conds, " AND "),
	)

	var count uint64
	row := r.store.GetConn().QueryRow(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to aggregate usage").
			WithReportableDetails(map[string]interface{}{
				"actor": params.Actor,
				"kinds": params.Kinds,
			}).
			Mark(ierr.ErrDatabase)
	}

	return int64(count), nil
}

func (r *UsageRepository) GetEvents(ctx context.Context, params *usage.GetEventsParams) ([]*usage.Event, error) {
	conds, args := actorConditions(params.Actor)

	if params.Kind != "" {
		conds = append(conds, "action_kind = ?")
		args = append(args, params.Kind.String())
	}
	if !params.Start.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, params.Start)
	}
	if !params.End.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, params.End)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT id, user_id, team_id, action_kind, properties, timestamp, ingested_at
		FROM usage_events
		WHERE %s
		ORDER BY timestamp DESC
		LIMIT %d
	`, strings.Join(conds, " AND "), limit)

	rows, err := r.store.GetConn().Query(ctx, query, args...)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to query usage events").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var events []*usage.Event
	for rows.Next() {
		var (
			event         usage.Event
			actionKind    string
			propertiesRaw string
		)
		if err := rows.Scan(
			&event.ID,
			&event.UserID,
			&event.TeamID,
			&actionKind,
			&propertiesRaw,
			&event.Timestamp,
			&event.IngestedAt,
		); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan usage event").
				Mark(ierr.ErrDatabase)
		}

		event.ActionKind = types.ActionKind(actionKind)
		if propertiesRaw != "" {
			if err := json.Unmarshal([]byte(propertiesRaw), &event.Properties); err != nil {
				r.logger.Warnw("corrupt properties payload in usage event",
					"event_id", event.ID,
					"error", err,
				)
			}
		}

		events = append(events, &event)
	}

	return events, nil
}

// DeleteOlderThan implements the retention sweep. Lightweight deletes are
// asynchronous in ClickHouse; the returned count is the number of rows
// matched at statement time.
func (r *UsageRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var matched uint64
	row := r.store.GetConn().QueryRow(ctx,
		"SELECT count() FROM usage_events WHERE timestamp < ?", cutoff)
	if err := row.Scan(&matched); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count expired usage events").
			Mark(ierr.ErrDatabase)
	}

	if matched == 0 {
		return 0, nil
	}

	err := r.store.GetConn().Exec(ctx,
		"DELETE FROM usage_events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to delete expired usage events").
			WithReportableDetails(map[string]interface{}{
				"cutoff": cutoff,
			}).
			Mark(ierr.ErrDatabase)
	}

	return int64(matched), nil
}

func (r *UsageRepository) CountAllByActor(ctx context.Context, actor types.ActorRef, kind types.ActionKind) (int64, error) {
	conds, args := actorConditions(actor)
	conds = append(conds, "action_kind = ?")
	args = append(args, kind.String())

	query := fmt.Sprintf(
		"SELECT count() FROM usage_events WHERE %s",
		strings.Join(conds, " AND "),
	)

	var count uint64
	row := r.store.GetConn().QueryRow(ctx, query, args...)
	if err := row.Scan(&count); err != nil {
		return 0, ierr.WithError(err).
			WithHint("Failed to count usage events for actor").
			Mark(ierr.ErrDatabase)
	}

	return int64(count), nil
}

// DistinctActors scopes reconciliation to accounts that produced entries
// of the kind since the given time.
func (r *UsageRepository) DistinctActors(ctx context.Context, kind types.ActionKind, since time.Time) ([]types.ActorRef, error) {
	// Team-attributed entries collapse onto the team regardless of which
	// member produced them, matching the counting scope of quota checks.
	query := `
		SELECT DISTINCT if(team_id != '', '', user_id) AS user_id, team_id
		FROM usage_events
		WHERE action_kind = ? AND timestamp >= ?
	`

	rows, err := r.store.GetConn().Query(ctx, query, kind.String(), since)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHint("Failed to list active actors").
			Mark(ierr.ErrDatabase)
	}
	defer rows.Close()

	var actors []types.ActorRef
	for rows.Next() {
		var userID, teamID string
		if err := rows.Scan(&userID, &teamID); err != nil {
			return nil, ierr.WithError(err).
				WithHint("Failed to scan actor row").
				Mark(ierr.ErrDatabase)
		}
		actors = append(actors, types.ActorRef{UserID: userID, TeamID: teamID})
	}

	return actors, nil
}

// actorConditions scopes a query to one actor. A team actor matches every
// entry attributed to the team regardless of which member produced it; an
// individual actor matches only entries with no team attribution.
func actorConditions(actor types.ActorRef) ([]string, []interface{}) {
	if actor.IsTeam() {
		return []string{"team_id = ?"}, []interface{}{actor.TeamID}
	}
	return []string{"user_id = ?", "team_id = ''"}, []interface{}{actor.UserID}
}
