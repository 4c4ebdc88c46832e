package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Variant is a per-size stock record. When a product has variants they are the
// source of truth for stock and Product.Stock holds their sum.
type Variant struct {
	Size  string `bson:"size" json:"size"`
	Stock int    `bson:"stock" json:"stock"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Brand       string             `bson:"brand,omitempty" json:"brand,omitempty"`
	ImagePath   string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
	Price       float64            `bson:"price" json:"price"`
	SaleEnabled bool               `bson:"saleEnabled" json:"saleEnabled"`
	SalePrice   float64            `bson:"salePrice" json:"salePrice"`
	IsOnSale    bool               `bson:"-" json:"isOnSale"`
	Stock       int                `bson:"stock" json:"stock"`
	InStock     bool               `bson:"-" json:"inStock"`
	Variants    []Variant          `bson:"variants,omitempty" json:"variants,omitempty"`
	CategoryID  primitive.ObjectID `bson:"categoryId" json:"categoryId"`
	SoldCount   int                `bson:"soldCount" json:"soldCount"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	IsDeleted   bool               `bson:"isDeleted" json:"isDeleted,omitempty"`
	DeletedAt   *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// HasVariants reports whether stock is tracked per size.
func (p *Product) HasVariants() bool {
	return len(p.Variants) > 0
}

// Variant returns the variant for size, matched case-insensitively.
func (p *Product) Variant(size string) (Variant, bool) {
	size = strings.TrimSpace(size)
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, size) {
			return v, true
		}
	}
	return Variant{}, false
}

// AvailableStock returns the stock that applies to a line with the given size.
func (p *Product) AvailableStock(size string) (int, bool) {
	if p.HasVariants() && strings.TrimSpace(size) != "" {
		v, ok := p.Variant(size)
		return v.Stock, ok
	}
	return p.Stock, true
}

// Normalize fills the computed JSON fields.
func (p *Product) Normalize() {
	p.IsOnSale = IsOnSale(p.Price, p.SaleEnabled, p.SalePrice)
	p.InStock = p.Stock > 0
}

// EffectivePrice is the unit price a customer pays right now.
func (p *Product) EffectivePrice() float64 {
	if IsOnSale(p.Price, p.SaleEnabled, p.SalePrice) {
		return p.SalePrice
	}
	return p.Price
}

func IsOnSale(price float64, saleEnabled bool, salePrice float64) bool {
	return saleEnabled && salePrice > 0 && salePrice < price
}

// SumVariantStock returns the aggregate stock of all variants.
func SumVariantStock(variants []Variant) int {
	total := 0
	for _, v := range variants {
		total += v.Stock
	}
	return total
}
