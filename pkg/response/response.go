// Package response writes the JSON bodies shared by every handler
package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the shape of every client facing error
type ErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Ack is the body Daraja expects back from a callback
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// JSON responds 200 with data as is
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error aborts with status and an {error, details} body
func Error(c *gin.Context, status int, msg string, details ...string) {
	body := ErrorBody{Error: msg}
	if len(details) > 0 {
		body.Details = details[0]
	}
	c.AbortWithStatusJSON(status, body)
}

// Abort400 responds 400
func Abort400(c *gin.Context, msg ...string) {
	Error(c, http.StatusBadRequest, getMsg("Invalid request", msg...))
}

// Unauthorized responds 401
func Unauthorized(c *gin.Context, msg ...string) {
	Error(c, http.StatusUnauthorized, getMsg("Unauthorized", msg...))
}

// Abort404 responds 404
func Abort404(c *gin.Context, msg ...string) {
	Error(c, http.StatusNotFound, getMsg("Not found", msg...))
}

// TooManyRequests responds 429 with a Retry-After header in seconds
func TooManyRequests(c *gin.Context, retryAfter time.Duration, msg ...string) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	}
	Error(c, http.StatusTooManyRequests, getMsg("Too many requests", msg...))
}

// Abort500 responds 500
func Abort500(c *gin.Context, msg ...string) {
	Error(c, http.StatusInternalServerError, getMsg("Internal server error", msg...))
}

// Abort502 responds 502
func Abort502(c *gin.Context, msg ...string) {
	Error(c, http.StatusBadGateway, getMsg("Bad gateway", msg...))
}

// Acknowledge answers a provider callback
func Acknowledge(c *gin.Context, status int, resultCode int, desc string) {
	c.AbortWithStatusJSON(status, Ack{ResultCode: resultCode, ResultDesc: desc})
}

func getMsg(defaultMsg string, msg ...string) string {
	if len(msg) > 0 {
		return msg[0]
	}
	return defaultMsg
}
