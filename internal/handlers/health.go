package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz reports 503 while the database is unreachable.
func Healthz(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(c.Request.Context()); err != nil {
			respondWithError(c, apperr.Wrap(apperr.CodeUnavailable, err, "database unavailable"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
