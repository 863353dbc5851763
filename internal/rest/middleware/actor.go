package middleware

import (
	"github.com/gin-gonic/gin"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/types"
)

const (
	// HeaderUserID and HeaderTeamID are set by the authenticating edge
	// proxy. This service trusts them; it performs no authentication of
	// its own.
	HeaderUserID = "X-User-ID"
	HeaderTeamID = "X-Team-ID"
)

// ActorMiddleware lifts the authenticated identity into the request
// context. A team header present means every metered action on the
// request is attributed to the team, never to the member personally.
func ActorMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	if userID := c.GetHeader(HeaderUserID); userID != "" {
		ctx = types.SetUserID(ctx, userID)
	}
	if teamID := c.GetHeader(HeaderTeamID); teamID != "" {
		ctx = types.SetTeamID(ctx, teamID)
	}

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// RequireUser aborts requests that carry no authenticated user.
func RequireUser(c *gin.Context) {
	if types.GetUserID(c.Request.Context()) == "" {
		c.Error(ierr.NewError("missing authenticated user").
			WithHint("Authentication is required").
			Mark(ierr.ErrPermissionDenied))
		c.Abort()
		return
	}
	c.Next()
}
