package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type InvoiceLine struct {
	Description string  `bson:"description" json:"description"`
	Quantity    int     `bson:"quantity" json:"quantity"`
	UnitPrice   float64 `bson:"unitPrice" json:"unitPrice"`
	Total       float64 `bson:"total" json:"total"`
}

type Invoice struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Number   string             `bson:"number" json:"number"`
	OrderID  primitive.ObjectID `bson:"orderId" json:"orderId"`
	UserID   primitive.ObjectID `bson:"userId" json:"userId"`
	Lines    []InvoiceLine      `bson:"lines" json:"lines"`
	Subtotal float64            `bson:"subtotal" json:"subtotal"`
	Discount float64            `bson:"discount" json:"discount"`
	Total    float64            `bson:"total" json:"total"`
	FilePath string             `bson:"filePath" json:"-"`
	IssuedAt time.Time          `bson:"issuedAt" json:"issuedAt"`
}
