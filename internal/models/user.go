package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Address represents a single shipping address entry for a user.
type Address struct {
	ID         string `bson:"id" json:"id"`
	Title      string `bson:"title" json:"title"`
	FullName   string `bson:"fullName" json:"fullName"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Line       string `bson:"line" json:"line"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string `bson:"country" json:"country"`
	IsDefault  bool   `bson:"isDefault" json:"isDefault"`
}

// User represents the application user account. Admin capability is a flag on
// the same document.
type User struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name          string               `bson:"name" json:"name"`
	Email         string               `bson:"email" json:"email"`
	PasswordHash  string               `bson:"passwordHash" json:"-"`
	IsAdmin       bool                 `bson:"isAdmin" json:"isAdmin"`
	Addresses     []Address            `bson:"addresses" json:"addresses"`
	Wishlist      []primitive.ObjectID `bson:"wishlist" json:"wishlist"`
	UsedDiscounts []primitive.ObjectID `bson:"usedDiscounts" json:"usedDiscounts"`
	CreatedAt     time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// FindAddress returns the address with the given id.
func (u *User) FindAddress(id string) (Address, bool) {
	for _, addr := range u.Addresses {
		if addr.ID == id {
			return addr, true
		}
	}
	return Address{}, false
}
