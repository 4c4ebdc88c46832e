package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Discount struct {
	ID                 primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name               string              `bson:"name" json:"name"`
	Code               string              `bson:"code,omitempty" json:"code,omitempty"`
	Type               DiscountType        `bson:"type" json:"type"`
	Value              float64             `bson:"value" json:"value"`
	StartDate          time.Time           `bson:"startDate" json:"startDate"`
	EndDate            time.Time           `bson:"endDate" json:"endDate"`
	MinPurchaseAmount  float64             `bson:"minPurchaseAmount" json:"minPurchaseAmount"`
	MaxDiscountAmount  *float64            `bson:"maxDiscountAmount,omitempty" json:"maxDiscountAmount,omitempty"`
	UsageLimit         *int                `bson:"usageLimit,omitempty" json:"usageLimit,omitempty"`
	UsedCount          int                 `bson:"usedCount" json:"usedCount"`
	IsActive           bool                `bson:"isActive" json:"isActive"`
	IsCategoryDiscount bool                `bson:"isCategoryDiscount" json:"isCategoryDiscount"`
	CategoryID         *primitive.ObjectID `bson:"categoryId,omitempty" json:"categoryId,omitempty"`
	AutoApply          bool                `bson:"autoApply" json:"autoApply"`
	CreatedAt          time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// ActiveAt reports whether the discount is switched on and inside its window.
func (d *Discount) ActiveAt(now time.Time) bool {
	return d.IsActive && !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// LimitReached reports whether the usage cap has been exhausted.
func (d *Discount) LimitReached() bool {
	return d.UsageLimit != nil && d.UsedCount >= *d.UsageLimit
}

// DiscountUsage is the single source of truth for "user U redeemed discount D".
// The (userId, discountId) pair is unique.
type DiscountUsage struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID  `bson:"userId" json:"userId"`
	DiscountID primitive.ObjectID  `bson:"discountId" json:"discountId"`
	OrderID    *primitive.ObjectID `bson:"orderId,omitempty" json:"orderId,omitempty"`
	Amount     float64             `bson:"amount" json:"amount"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
}
