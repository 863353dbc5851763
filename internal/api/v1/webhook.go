package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/specmint/specmint/internal/errors"
	"github.com/specmint/specmint/internal/logger"
	"github.com/specmint/specmint/internal/service"
)

// maxWebhookBodyBytes caps the event payload; real processor events are
// a few kilobytes.
const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct {
	billingService service.BillingService
	logger         *logger.Logger
}

func NewWebhookHandler(billingService service.BillingService, logger *logger.Logger) *WebhookHandler {
	return &WebhookHandler{billingService: billingService, logger: logger}
}

// HandleStripeWebhook receives signed processor events. The raw body is
// read before any parsing because signature verification covers the
// exact bytes sent. A non-2xx response triggers processor redelivery.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read webhook payload").
			Mark(ierr.ErrValidation))
		return
	}

	signature := c.GetHeader("Stripe-Signature")
	if err := h.billingService.HandleWebhook(c.Request.Context(), payload, signature); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
