package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// OrderItem represents a single product entry within an order. Price is the
// unit price snapshot taken at creation.
type OrderItem struct {
	ProductID  primitive.ObjectID `bson:"productId" json:"productId"`
	CategoryID primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	Name       string             `bson:"name" json:"name"`
	Size       string             `bson:"size,omitempty" json:"size,omitempty"`
	Price      float64            `bson:"price" json:"price"`
	Quantity   int                `bson:"quantity" json:"quantity"`
}

// StatusChange is one entry of the append-only status history.
type StatusChange struct {
	Status    OrderStatus `bson:"status" json:"status"`
	Timestamp time.Time   `bson:"timestamp" json:"timestamp"`
	Note      string      `bson:"note,omitempty" json:"note,omitempty"`
}

// Order defines the persisted order document. Amounts are fixed at creation.
type Order struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID `bson:"userId" json:"userId"`
	Items            []OrderItem        `bson:"items" json:"items"`
	Subtotal         float64            `bson:"subtotal" json:"subtotal"`
	CategoryDiscount float64            `bson:"categoryDiscount" json:"categoryDiscount"`
	DiscountCode     string             `bson:"discountCode,omitempty" json:"discountCode,omitempty"`
	DiscountAmount   float64            `bson:"discountAmount" json:"discountAmount"`
	TotalAmount      float64            `bson:"totalAmount" json:"totalAmount"`
	Status           OrderStatus        `bson:"status" json:"status"`
	StatusHistory    []StatusChange     `bson:"statusHistory" json:"statusHistory"`
	ShippingAddress  Address            `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod    string             `bson:"paymentMethod" json:"paymentMethod"`
	PaymentStatus    PaymentStatus      `bson:"paymentStatus" json:"paymentStatus"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}
