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

type BillingHandler struct {
	billingService service.BillingService
	logger         *logger.Logger
}

func NewBillingHandler(billingService service.BillingService, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{billingService: billingService, logger: logger}
}

// CreateCheckout opens a checkout session for a paid tier and returns
// the processor redirect URL.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req dto.CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.billingService.CreateCheckout(c.Request.Context(), types.GetUserID(c.Request.Context()), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateSubscription changes tier or interval on the caller's active
// subscription.
func (h *BillingHandler) UpdateSubscription(c *gin.Context) {
	var req dto.UpdateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.billingService.UpdateSubscription(c.Request.Context(), types.GetUserID(c.Request.Context()), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelSubscription cancels immediately or at period end.
func (h *BillingHandler) CancelSubscription(c *gin.Context) {
	var req dto.CancelSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request body").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.billingService.CancelSubscription(c.Request.Context(), types.GetUserID(c.Request.Context()), req.Immediate)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CreatePortalSession returns a billing portal redirect URL.
func (h *BillingHandler) CreatePortalSession(c *gin.Context) {
	resp, err := h.billingService.CreateBillingPortalSession(c.Request.Context(), types.GetUserID(c.Request.Context()))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSubscription returns the caller's subscription projection.
func (h *BillingHandler) GetSubscription(c *gin.Context) {
	resp, err := h.billingService.GetSubscriptionDetails(c.Request.Context(), types.GetUserID(c.Request.Context()))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
