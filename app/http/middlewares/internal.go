package middlewares

import (
	"github.com/gin-gonic/gin"

	"spark/pkg/logger"
	"spark/pkg/receipt"
	"spark/pkg/response"
)

// InternalSecret admits only callers presenting the shared internal secret
func InternalSecret(secret string) gin.HandlerFunc {
	if secret == "" {
		logger.WarnString("Middleware", "InternalSecret", "INTERNAL_API_SECRET is not set, internal routes will refuse every call")
	}

	return func(c *gin.Context) {
		if !receipt.VerifySecret(secret, c.GetHeader(receipt.SecretHeader)) {
			logger.WarnString("Middleware", "InternalSecret", "rejected internal call from "+c.ClientIP())
			response.Unauthorized(c)
			return
		}
		c.Next()
	}
}
