package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/middleware"
	"storefront/internal/models"
)

type Recommender interface {
	For(ctx context.Context, userID *primitive.ObjectID, limit int) ([]models.Product, error)
}

// Recommendations personalises for signed-in callers and falls back to best
// sellers for anonymous ones.
func Recommendations(rec Recommender) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))

		var userID *primitive.ObjectID
		if id, ok := middleware.IdentityFrom(c); ok {
			userID = &id.UserID
		}
		items, err := rec.For(c.Request.Context(), userID, limit)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}
