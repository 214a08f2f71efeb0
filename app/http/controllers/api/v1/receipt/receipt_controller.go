// Package receipt holds the internal receipt email endpoint
package receipt

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spark/pkg/logger"
	"spark/pkg/payment/types"
	"spark/pkg/receipt"
	"spark/pkg/response"
)

type ReceiptController struct {
	sender receipt.Sender
}

func NewReceiptController(sender receipt.Sender) *ReceiptController {
	return &ReceiptController{sender: sender}
}

// Send emails the ticket receipt. The route sits behind the internal secret.
func (rc *ReceiptController) Send(c *gin.Context) {
	var r types.Receipt
	if err := c.ShouldBindJSON(&r); err != nil {
		response.Abort400(c, "Invalid request body")
		return
	}
	if r.Email == "" {
		response.Abort400(c, "Email is required")
		return
	}

	if err := rc.sender.Send(c.Request.Context(), &r); err != nil {
		logger.Error("Receipt",
			zap.String("receipt", r.MpesaReceipt),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	logger.InfoString("Receipt", "sent", r.MpesaReceipt)
	response.JSON(c, gin.H{"success": true})
}
