package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/specmint/specmint/internal/api/dto"
	"github.com/specmint/specmint/internal/service"
	"github.com/specmint/specmint/internal/types"
)

// QuotaDeniedResponse is the 403 body the gate sends on denial.
type QuotaDeniedResponse struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Decision *dto.QuotaDecision `json:"decision"`
}

// QuotaGate guards a metered route. The check runs before the handler;
// usage is recorded only after the handler completed without error, so
// failed operations never consume quota. The check and the record are
// not atomic: two concurrent requests can both pass an almost-exhausted
// limit. That soft cap is accepted.
func QuotaGate(quotaService service.QuotaService, kind types.ActionKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := types.GetActor(ctx)

		decision, err := quotaService.CheckQuota(ctx, actor, kind)
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		if !decision.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, QuotaDeniedResponse{
				Success:  false,
				Message:  decision.Reason,
				Decision: decision,
			})
			return
		}

		c.Next()

		if len(c.Errors) == 0 && c.Writer.Status() < http.StatusBadRequest {
			quotaService.RecordUsage(ctx, actor, kind, map[string]interface{}{
				"path":   c.FullPath(),
				"method": c.Request.Method,
			})
		}
	}
}
