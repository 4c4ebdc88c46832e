// Package inventory resolves product variants and moves stock. Variants are
// the stock of record for sized products; every movement is one conditional
// update in the store.
package inventory

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
)

var (
	ErrProductNotFound   = apperr.NotFound("product not found")
	ErrVariantNotFound   = apperr.NotFound("variant not found")
	ErrSizeRequired      = apperr.BadRequest("size is required for this product")
	ErrInsufficientStock = apperr.BadRequest("insufficient stock")
	ErrInvalidQuantity   = apperr.BadRequest("quantity must be greater than zero")
)

type ProductStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	AdjustStock(ctx context.Context, id primitive.ObjectID, size string, delta, soldDelta int) error
}

// Key identifies a stock bucket: a product, or one size of it.
type Key struct {
	ProductID primitive.ObjectID
	Size      string
}

func NewKey(productID primitive.ObjectID, size string) Key {
	return Key{ProductID: productID, Size: NormalizeSize(size)}
}

func NormalizeSize(size string) string {
	return strings.ToUpper(strings.TrimSpace(size))
}

// Load fetches a product that can be sold.
func Load(ctx context.Context, products ProductStore, id primitive.ObjectID) (*models.Product, error) {
	p, err := products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, errors.Wrap(err, "find product")
	}
	if !p.IsActive || p.IsDeleted {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// Resolve returns the stored size a line should use and the stock available
// to it. Products without variants ignore size.
func Resolve(p *models.Product, size string) (string, int, error) {
	if !p.HasVariants() {
		return "", p.Stock, nil
	}
	if strings.TrimSpace(size) == "" {
		return "", 0, ErrSizeRequired
	}
	v, ok := p.Variant(size)
	if !ok {
		return "", 0, ErrVariantNotFound.WithDetails(map[string]string{"size": size})
	}
	return v.Size, v.Stock, nil
}

// Take removes qty units from stock and adds sold to soldCount. It fails with
// ErrInsufficientStock when less than qty is left.
func Take(ctx context.Context, products ProductStore, id primitive.ObjectID, size string, qty, sold int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	err := products.AdjustStock(ctx, id, size, -qty, sold)
	if errors.Is(err, store.ErrNotMatched) {
		return ErrInsufficientStock
	}
	return err
}

// Return puts qty units back and removes unsold from soldCount.
func Return(ctx context.Context, products ProductStore, id primitive.ObjectID, size string, qty, unsold int) error {
	if qty < 0 {
		return ErrInvalidQuantity
	}
	err := products.AdjustStock(ctx, id, size, qty, -unsold)
	if errors.Is(err, store.ErrNotMatched) {
		return ErrProductNotFound
	}
	return err
}

// InsufficientStock decorates ErrInsufficientStock with the offending line.
func InsufficientStock(productID primitive.ObjectID, size string, available, requested int) error {
	details := map[string]any{
		"productId": productID.Hex(),
		"available": available,
		"requested": requested,
	}
	if size != "" {
		details["size"] = size
	}
	return ErrInsufficientStock.WithDetails(details)
}
