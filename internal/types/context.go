package types

import (
	"context"
	"fmt"
)

// ContextKey is a type for the keys of values stored in the context
type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxTeamID    ContextKey = "ctx_team_id"

	// HeaderRequestID is echoed back on every response
	HeaderRequestID = "X-Request-ID"
)

func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(CtxRequestID).(string); ok {
		return requestID
	}
	return ""
}

func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(CtxUserID).(string); ok {
		return userID
	}
	return ""
}

// GetTeamID returns the team the request is acting on behalf of, if any.
// An empty value means the user is acting individually.
func GetTeamID(ctx context.Context) string {
	if teamID, ok := ctx.Value(CtxTeamID).(string); ok {
		return teamID
	}
	return ""
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, CtxUserID, userID)
}

func SetTeamID(ctx context.Context, teamID string) context.Context {
	return context.WithValue(ctx, CtxTeamID, teamID)
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, CtxRequestID, requestID)
}

// GetActor builds the actor reference for the current request. A team id
// present means the team quota applies, never the member's personal quota.
func GetActor(ctx context.Context) ActorRef {
	return ActorRef{
		UserID: GetUserID(ctx),
		TeamID: GetTeamID(ctx),
	}
}

// ValidateUserContext validates that an authenticated user is present
func ValidateUserContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is nil")
	}
	if GetUserID(ctx) == "" {
		return fmt.Errorf("no user found in context")
	}
	return nil
}
