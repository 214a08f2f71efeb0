package middlewares

import (
	"bytes"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"spark/pkg/logger"
)

const maxLoggedBody = 8 << 10

type readCloser struct {
	io.Reader
	io.Closer
}

type responseBodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (r responseBodyWriter) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Logger records every request. Bodies are only logged for non-2xx responses.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		w := &responseBodyWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		// only a prefix is buffered so handler side body caps still apply
		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(io.LimitReader(c.Request.Body, maxLoggedBody))
			c.Request.Body = readCloser{
				Reader: io.MultiReader(bytes.NewReader(requestBody), c.Request.Body),
				Closer: c.Request.Body,
			}
		}

		start := time.Now()
		c.Next()

		cost := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("request", c.Request.Method+" "+c.Request.URL.String()),
			zap.String("query", c.Request.URL.RawQuery),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.String("errors", c.Errors.ByType(gin.ErrorTypePrivate).String()),
			zap.String("time", cast.ToString(cost.Milliseconds())+"ms"),
		}
		if status >= 300 {
			fields = append(fields,
				zap.String("Request Body", string(requestBody)),
				zap.String("Response Body", w.body.String()),
			)
		}

		switch {
		case status >= 500:
			logger.Error("HTTP", fields...)
		case status >= 400:
			logger.Warn("HTTP", fields...)
		default:
			logger.Debug("HTTP", fields...)
		}
	}
}
