package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/specmint/specmint/internal/api/v1"
	"github.com/specmint/specmint/internal/config"
	"github.com/specmint/specmint/internal/metrics"
	"github.com/specmint/specmint/internal/rest/middleware"
	"github.com/specmint/specmint/internal/service"
	"github.com/specmint/specmint/internal/types"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Billing *v1.BillingHandler
	Usage   *v1.UsageHandler
	Webhook *v1.WebhookHandler
}

func NewRouter(
	handlers Handlers,
	cfg *config.Configuration,
	m *metrics.Metrics,
	quotaService service.QuotaService,
) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		m.Middleware(),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)
	router.GET("/metrics", m.Handler())

	// The webhook endpoint is public and unauthenticated; the signature
	// is the authentication. Rate limiting keeps scanners away from the
	// verification path.
	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.RateLimiter(cfg))
	{
		webhooks.POST("/stripe", handlers.Webhook.HandleStripeWebhook)
	}

	v1Group := router.Group("/v1")
	v1Group.Use(middleware.ActorMiddleware, middleware.RequireUser)
	registerV1Routes(v1Group, handlers, quotaService)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers, quotaService service.QuotaService) {
	// Usage and quota routes count as metered API traffic themselves.
	// Billing routes carry no gate: an over-quota user must
	// always be able to reach the upgrade path.
	usage := router.Group("/usage")
	usage.Use(middleware.QuotaGate(quotaService, types.ActionAPICall))
	{
		usage.POST("", handlers.Usage.IngestUsage)
		usage.GET("/summary", handlers.Usage.GetUsageSummary)
		usage.GET("/events", handlers.Usage.GetUsageEvents)
	}

	quota := router.Group("/quota")
	quota.Use(middleware.QuotaGate(quotaService, types.ActionAPICall))
	{
		quota.POST("/check", handlers.Usage.CheckQuota)
	}

	billing := router.Group("/billing")
	{
		billing.POST("/checkout", handlers.Billing.CreateCheckout)
		billing.GET("/subscription", handlers.Billing.GetSubscription)
		billing.PUT("/subscription", handlers.Billing.UpdateSubscription)
		billing.POST("/subscription/cancel", handlers.Billing.CancelSubscription)
		billing.POST("/portal", handlers.Billing.CreatePortalSession)
	}
}
