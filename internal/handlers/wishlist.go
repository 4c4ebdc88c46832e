package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

type WishlistStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	AddWishlist(ctx context.Context, userID, productID primitive.ObjectID) error
	RemoveWishlist(ctx context.Context, userID, productID primitive.ObjectID) error
}

type ProductBatch interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error)
}

type wishlistRequest struct {
	ProductID string `json:"productId" binding:"required"`
}

// GetWishlist returns the wishlisted products that still exist.
func GetWishlist(users WishlistStore, products ProductBatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		user, err := users.FindByID(ctx, id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}
		items := []models.Product{}
		if len(user.Wishlist) > 0 {
			if items, err = products.FindByIDs(ctx, user.Wishlist); err != nil {
				respondWithError(c, err)
				return
			}
		}
		for i := range items {
			items[i].Normalize()
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func AddToWishlist(users WishlistStore, products ProductBatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		var req wishlistRequest
		if !bindJSON(c, &req) {
			return
		}
		productID, err := parseObjectID(req.ProductID, "productId")
		if err != nil {
			respondWithError(c, err)
			return
		}
		if _, err := products.FindByID(ctx, productID); err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}
		if err := users.AddWishlist(ctx, id.UserID, productID); err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "added to wishlist"})
	}
}

func RemoveFromWishlist(users WishlistStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		productID, ok := objectIDParam(c, "productId")
		if !ok {
			return
		}
		if err := users.RemoveWishlist(c.Request.Context(), id.UserID, productID); err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "removed from wishlist"})
	}
}
