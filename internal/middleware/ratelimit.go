package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/ratelimit"
)

var (
	ErrRateLimited          = apperr.New(apperr.CodeRateLimit, "too many requests")
	ErrRateLimitUnavailable = apperr.New(apperr.CodeUnavailable, "rate limiting unavailable")
)

// AuthRateLimit counts requests per client IP. A nil or disabled limiter lets
// everything through.
func AuthRateLimit(limiter *ratelimit.Limiter, m *metrics.Metrics) gin.HandlerFunc {
	if !limiter.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		ip := c.ClientIP()
		allowed, count, err := limiter.Allow(c.Request.Context(), ip)
		if err != nil {
			WriteError(c, ErrRateLimitUnavailable.WithCause(err))
			return
		}
		if !allowed {
			m.RateLimited()
			lg := logger.From(c.Request.Context())
			lg.Warn().
				Str("ip", ip).
				Int64("attempts", count).
				Int64("limit", limiter.Limit()).
				Dur("window", limiter.Window()).
				Msg("auth rate limit exceeded")
			WriteError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
