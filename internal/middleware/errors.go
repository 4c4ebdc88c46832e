package middleware

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/logger"
)

// WriteError aborts the request with the JSON error body {message, error?}.
// Unexpected errors become a generic 500 and are logged with their cause.
func WriteError(c *gin.Context, err error) {
	ae := apperr.As(err)
	if ae == nil {
		ae = apperr.Internal(err)
	}
	status := ae.HTTPStatus()

	body := gin.H{"message": ae.Message()}
	if status < 500 {
		if details := ae.Details(); details != nil {
			body["error"] = details
		}
	}

	lg := logger.From(c.Request.Context())
	if status >= 500 {
		lg.Error().Err(err).Int("status", status).Msg("request failed")
	} else {
		lg.Debug().Err(err).Int("status", status).Msg("request rejected")
	}
	c.AbortWithStatusJSON(status, body)
}
