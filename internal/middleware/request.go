package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/metrics"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags the request with an id and a request scoped logger. A valid
// incoming X-Request-ID is reused.
func RequestID(root zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		c.Header(RequestIDHeader, reqID)
		c.Set("requestId", reqID)

		lg := root.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Logger()
		c.Request = c.Request.WithContext(lg.WithContext(c.Request.Context()))
		c.Next()
	}
}

// AccessLog logs every finished request and records its latency.
func AccessLog(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		elapsed := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, route, status, elapsed)

		lg := logger.From(c.Request.Context())
		ev := lg.Info()
		if status >= http.StatusInternalServerError {
			ev = lg.Warn()
		}
		ev.Int("status", status).
			Dur("duration", elapsed).
			Int("size", c.Writer.Size()).
			Msg("request completed")
	}
}

// Recovery turns a panic into a JSON 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				lg := logger.From(c.Request.Context())
				lg.Error().Interface("panic", rec).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"message": apperr.Internal(nil).Message(),
				})
			}
		}()
		c.Next()
	}
}
