package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/orders"
	"storefront/internal/store"
)

type OrderService interface {
	Create(ctx context.Context, userID primitive.ObjectID, in orders.CreateInput) (*models.Order, error)
	Get(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Order, error)
	ListMine(ctx context.Context, userID primitive.ObjectID, page store.Page) ([]models.Order, int64, error)
	ListAll(ctx context.Context, status models.OrderStatus, page store.Page) ([]models.Order, int64, error)
	Cancel(ctx context.Context, userID, orderID primitive.ObjectID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID primitive.ObjectID, status models.OrderStatus, note string) (*models.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type orderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
}

// shippingAddress holds either a saved address id or an inline address.
type shippingAddress struct {
	ID      string
	Address *models.Address
}

func (a *shippingAddress) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.ID)
	}
	a.Address = &models.Address{}
	return json.Unmarshal(data, a.Address)
}

type createOrderRequest struct {
	Items             []orderItemRequest `json:"items" binding:"dive"`
	ShippingAddressID string             `json:"shippingAddressId"`
	ShippingAddress   shippingAddress    `json:"shippingAddress"`
	PaymentMethod     string             `json:"paymentMethod" binding:"required"`
	DiscountCode      string             `json:"discountCode"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}

func (r createOrderRequest) input() (orders.CreateInput, error) {
	in := orders.CreateInput{
		Items:             make([]orders.ItemInput, 0, len(r.Items)),
		ShippingAddressID: strings.TrimSpace(r.ShippingAddress.ID),
		ShippingAddress:   r.ShippingAddress.Address,
		PaymentMethod:     r.PaymentMethod,
		DiscountCode:      r.DiscountCode,
	}
	if id := strings.TrimSpace(r.ShippingAddressID); id != "" {
		in.ShippingAddressID = id
	}
	for _, item := range r.Items {
		productID, err := parseObjectID(item.ProductID, "productId")
		if err != nil {
			return orders.CreateInput{}, err
		}
		in.Items = append(in.Items, orders.ItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
			Size:      item.Size,
		})
	}
	return in, nil
}

// CreateOrder places an order for the signed-in user.
func CreateOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req createOrderRequest
		if !bindJSON(c, &req) {
			return
		}
		in, err := req.input()
		if err != nil {
			respondWithError(c, err)
			return
		}
		order, err := svc.Create(c.Request.Context(), id.UserID, in)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	}
}

func ListMyOrders(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		items, total, err := svc.ListMine(c.Request.Context(), id.UserID, page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}

// ListOrders is the admin listing, optionally filtered by ?status.
func ListOrders(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		status := models.OrderStatus(strings.ToLower(strings.TrimSpace(c.Query("status"))))
		items, total, err := svc.ListAll(c.Request.Context(), status, page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}

func GetOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		order, err := svc.Get(c.Request.Context(), id, orderID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func CancelOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		order, err := svc.Cancel(c.Request.Context(), id.UserID, orderID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func UpdateOrderStatus(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		var req statusRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := svc.UpdateStatus(c.Request.Context(), orderID, models.OrderStatus(req.Status), req.Note)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	}
}

func DeleteOrder(svc OrderService) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), orderID); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	}
}
