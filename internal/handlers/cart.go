package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/cart"
	"storefront/internal/models"
	"storefront/internal/pricing"
)

type CartService interface {
	Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	Add(ctx context.Context, userID primitive.ObjectID, in cart.LineInput) (*models.Cart, error)
	Update(ctx context.Context, userID primitive.ObjectID, in cart.LineInput) (*models.Cart, error)
	Remove(ctx context.Context, userID, productID primitive.ObjectID, size string) (*models.Cart, error)
	Clear(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	Quote(ctx context.Context, userID primitive.ObjectID, code string) (*pricing.Quote, error)
}

type cartLineRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Size      string `json:"size"`
}

type cartUpdateRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"gte=0"`
	Size      string `json:"size"`
}

type cartRemoveRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Size      string `json:"size"`
}

type quoteRequest struct {
	DiscountCode string `json:"discountCode"`
}

func GetCart(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		current, err := carts.Get(c.Request.Context(), id.UserID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, current)
	}
}

func AddToCart(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req cartLineRequest
		if !bindJSON(c, &req) {
			return
		}
		productID, err := parseObjectID(req.ProductID, "productId")
		if err != nil {
			respondWithError(c, err)
			return
		}
		updated, err := carts.Add(c.Request.Context(), id.UserID, cart.LineInput{
			ProductID: productID,
			Quantity:  req.Quantity,
			Size:      req.Size,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// UpdateCartItem sets a line's quantity; zero removes the line.
func UpdateCartItem(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		var req cartUpdateRequest
		if !bindJSON(c, &req) {
			return
		}
		productID, err := parseObjectID(req.ProductID, "productId")
		if err != nil {
			respondWithError(c, err)
			return
		}

		var updated *models.Cart
		if req.Quantity == 0 {
			updated, err = carts.Remove(ctx, id.UserID, productID, req.Size)
		} else {
			updated, err = carts.Update(ctx, id.UserID, cart.LineInput{
				ProductID: productID,
				Quantity:  req.Quantity,
				Size:      req.Size,
			})
		}
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func RemoveCartItem(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req cartRemoveRequest
		if !bindJSON(c, &req) {
			return
		}
		productID, err := parseObjectID(req.ProductID, "productId")
		if err != nil {
			respondWithError(c, err)
			return
		}
		updated, err := carts.Remove(c.Request.Context(), id.UserID, productID, req.Size)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func ClearCart(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		updated, err := carts.Clear(c.Request.Context(), id.UserID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// QuoteCart prices the cart with category discounts and an optional code.
// The code is checked but not redeemed.
func QuoteCart(carts CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req quoteRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		q, err := carts.Quote(c.Request.Context(), id.UserID, req.DiscountCode)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, newQuoteResponse(q))
	}
}
