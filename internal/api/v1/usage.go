package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/specmint/specmint/internal/api/dto"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/service"
	"github.com/specmint/specmint/internal/types"
)

type UsageHandler struct {
	quotaService service.QuotaService
	logger       *logger.Logger
}

func NewUsageHandler(quotaService service.QuotaService, logger *logger.Logger) *UsageHandler {
	return &UsageHandler{quotaService: quotaService, logger: logger}
}

// CheckQuota answers whether the caller may perform one more action of
// the given kind. Denials come back 200 with allowed=false; this is a
// preflight, not the gate.
func (h *UsageHandler) CheckQuota(c *gin.Context) {
	var req dto.QuotaCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	actor := actorFromRequest(c, req.TeamID)
	decision, err := h.quotaService.CheckQuota(c.Request.Context(), actor, req.ActionKind)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, decision)
}

// IngestUsage records one metered action for the caller. Always
// acknowledged: recording is best effort by policy.
func (h *UsageHandler) IngestUsage(c *gin.Context) {
	var req dto.IngestUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	actor := actorFromRequest(c, req.TeamID)
	h.quotaService.RecordUsage(c.Request.Context(), actor, req.ActionKind, req.Properties)

	c.JSON(http.StatusAccepted, gin.H{"accepted": true})
}

// GetUsageSummary reports current usage against limits per dimension.
func (h *UsageHandler) GetUsageSummary(c *gin.Context) {
	var req dto.GetUsageSummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	actor := actorFromRequest(c, req.TeamID)
	summary, err := h.quotaService.GetUsageSummary(c.Request.Context(), actor, req.Window)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetUsageEvents lists raw ledger entries, newest first.
func (h *UsageHandler) GetUsageEvents(c *gin.Context) {
	var req dto.GetUsageEventsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	actor := actorFromRequest(c, req.TeamID)
	resp, err := h.quotaService.GetUsageEvents(c.Request.Context(), actor, &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// actorFromRequest resolves the effective actor. An explicit team id in
// the request wins over the header-derived context so a team admin can
// query on the team's behalf.
func actorFromRequest(c *gin.Context, teamID string) types.ActorRef {
	actor := types.GetActor(c.Request.Context())
	if teamID != "" {
		actor.TeamID = teamID
	}
	return actor
}
