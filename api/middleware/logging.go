package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yangshenhuai/skid-homework/pkg/logger"
)

// RequestLogger logs one line per request and stores a request-scoped
// logger in the request context
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := log.With(
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
		)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), reqLog))

		c.Next()

		fields := []logger.Field{
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
			logger.Int("bytes", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, logger.String("errors", c.Errors.String()))
		}
		if c.Writer.Status() >= 500 {
			reqLog.Error("Request failed", fields...)
			return
		}
		reqLog.Debug("Request served", fields...)
	}
}
