package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type CartItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Size      string             `bson:"size,omitempty" json:"size,omitempty"`
	ImagePath string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Price     float64            `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
}

// Matches reports whether the line is for the given product and size.
func (i CartItem) Matches(productID primitive.ObjectID, size string) bool {
	return i.ProductID == productID && strings.EqualFold(strings.TrimSpace(i.Size), strings.TrimSpace(size))
}

// Cart is the single cart document owned by a user.
type Cart struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Items       []CartItem         `bson:"items" json:"items"`
	TotalAmount float64            `bson:"totalAmount" json:"totalAmount"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FindItem returns the index of the line for (productID, size) or -1.
func (c *Cart) FindItem(productID primitive.ObjectID, size string) int {
	for i, item := range c.Items {
		if item.Matches(productID, size) {
			return i
		}
	}
	return -1
}
