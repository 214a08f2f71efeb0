// Package health reports whether the service can reach its ledger
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"spark/pkg/queue"
	"spark/pkg/response"
)

// Pinger is anything that can check its backing connection
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	ledger Pinger
	queue  *queue.QueueService
}

// NewHealthController creates the controller. q may be nil when receipts do
// not go through the queue.
func NewHealthController(ledger Pinger, q *queue.QueueService) *HealthController {
	return &HealthController{ledger: ledger, queue: q}
}

// Show answers GET /healthz
func (hc *HealthController) Show(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := hc.ledger.Ping(ctx); err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": err.Error(),
		})
		return
	}

	body := gin.H{"status": "ok", "database": "ok"}
	if hc.queue != nil {
		if err := hc.queue.Ping(ctx); err != nil {
			body["queue"] = err.Error()
		} else {
			body["queue"] = hc.queue.Metrics().Snapshot()
		}
	}
	response.JSON(c, body)
}
