package routes

import (
	"github.com/gin-gonic/gin"

	"spark/app/http/controllers/api/health"
	"spark/app/http/controllers/api/v1/payment"
	"spark/app/http/controllers/api/v1/receipt"
	"spark/app/http/middlewares"
	"spark/pkg/config"
)

// Handlers are the controllers the routes are bound to. Health may be nil.
type Handlers struct {
	Payment *payment.PaymentController
	Receipt *receipt.ReceiptController
	Health  *health.HealthController
}

// RegisterAPIRoutes registers every route
func RegisterAPIRoutes(r *gin.Engine, h Handlers) {
	if h.Health != nil {
		// GET /healthz
		r.GET("/healthz", h.Health.Show)
	}

	v1 := r.Group("/v1", middlewares.SecurityHeaders())

	payments := v1.Group("/payments")
	{
		pc := h.Payment

		// Daraja posts here from a few shared IPs; it is authenticated by
		// source IP and never throttled, since a 429 would drop a settlement
		// POST /v1/payments/callback
		payments.POST("/callback", pc.Callback)

		browser := payments.Group("",
			middlewares.LimitIP(config.GetString("app.api_rate_limit", "30000-H")),
			middlewares.Cors(config.GetStringSlice("app.cors_allow_origins")),
		)

		// POST /v1/payments/stk-push
		browser.POST("/stk-push",
			middlewares.LimitPerRoute(config.GetString("app.stk_push_rate_limit", "30-M")),
			pc.STKPush,
		)

		statusLimit := middlewares.LimitPerRoute(config.GetString("app.status_rate_limit", "300-M"))

		// POST /v1/payments/status
		browser.POST("/status", statusLimit, pc.Status)
		// GET /v1/payments/:checkoutRequestId/status
		browser.GET("/:checkoutRequestId/status", statusLimit, pc.StatusByParam)

		// preflight
		browser.OPTIONS("/*path", func(c *gin.Context) {})
	}

	internal := r.Group("/internal", middlewares.InternalSecret(config.GetString("receipt.internal_secret")))
	{
		// POST /internal/receipts
		internal.POST("/receipts", h.Receipt.Send)
	}
}
