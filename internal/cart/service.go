// Package cart manages the per-user cart. Cart lines hold stock: adding or
// growing a line takes stock, shrinking or removing a line gives it back.
package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/inventory"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/pricing"
)

var (
	ErrItemNotFound = apperr.NotFound("cart item not found")
	ErrEmptyCart    = apperr.BadRequest("cart is empty")
)

type Store interface {
	FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error)
	Save(ctx context.Context, c *models.Cart) error
}

// Quoter prices cart lines.
type Quoter interface {
	Quote(ctx context.Context, userID primitive.ObjectID, lines []pricing.Line, code string) (*pricing.Quote, error)
}

type Service struct {
	carts    Store
	products inventory.ProductStore
	quoter   Quoter
	now      func() time.Time
}

func NewService(carts Store, products inventory.ProductStore, quoter Quoter) *Service {
	return &Service{
		carts:    carts,
		products: products,
		quoter:   quoter,
		now:      time.Now,
	}
}

// LineInput addresses one cart line.
type LineInput struct {
	ProductID primitive.ObjectID
	Quantity  int
	Size      string
}

func (s *Service) Get(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, err := s.carts.FindByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// Add puts quantity units of a product in the cart, taking them from stock.
func (s *Service) Add(ctx context.Context, userID primitive.ObjectID, in LineInput) (*models.Cart, error) {
	if in.Quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	lg := logger.Component(ctx, "cart")

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := inventory.Load(ctx, s.products, in.ProductID)
	if err != nil {
		return nil, err
	}
	size, available, err := inventory.Resolve(p, in.Size)
	if err != nil {
		return nil, err
	}
	if available < in.Quantity {
		return nil, inventory.InsufficientStock(p.ID, size, available, in.Quantity)
	}
	if err := inventory.Take(ctx, s.products, p.ID, size, in.Quantity, 0); err != nil {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			return nil, inventory.InsufficientStock(p.ID, size, available, in.Quantity)
		}
		return nil, err
	}

	if idx := c.FindItem(p.ID, size); idx >= 0 {
		c.Items[idx].Quantity += in.Quantity
		c.Items[idx].Price = p.EffectivePrice()
		c.Items[idx].Name = p.Name
	} else {
		c.Items = append(c.Items, models.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Size:      size,
			ImagePath: p.ImagePath,
			Price:     p.EffectivePrice(),
			Quantity:  in.Quantity,
		})
	}

	if err := s.save(ctx, c); err != nil {
		if relErr := inventory.Return(ctx, s.products, p.ID, size, in.Quantity, 0); relErr != nil {
			lg.Error().Err(relErr).Str("product_id", p.ID.Hex()).Msg("release after failed cart save")
		}
		return nil, err
	}
	lg.Info().Str("product_id", p.ID.Hex()).Str("size", size).Int("quantity", in.Quantity).Msg("cart item added")
	return c, nil
}

// Update sets the quantity of an existing line and moves the difference in
// or out of stock. Nothing is written when stock does not cover the increase.
func (s *Service) Update(ctx context.Context, userID primitive.ObjectID, in LineInput) (*models.Cart, error) {
	if in.Quantity <= 0 {
		return nil, inventory.ErrInvalidQuantity
	}
	lg := logger.Component(ctx, "cart")

	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.FindItem(in.ProductID, in.Size)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	line := c.Items[idx]

	p, err := inventory.Load(ctx, s.products, in.ProductID)
	if err != nil {
		return nil, err
	}
	size := ""
	available := p.Stock
	if p.HasVariants() && line.Size != "" {
		v, ok := p.Variant(line.Size)
		if !ok {
			return nil, inventory.ErrVariantNotFound.WithDetails(map[string]string{"size": line.Size})
		}
		size, available = v.Size, v.Stock
	}

	diff := in.Quantity - line.Quantity
	switch {
	case diff > 0:
		if available < diff {
			return nil, inventory.InsufficientStock(p.ID, size, available, diff)
		}
		if err := inventory.Take(ctx, s.products, p.ID, size, diff, 0); err != nil {
			if errors.Is(err, inventory.ErrInsufficientStock) {
				return nil, inventory.InsufficientStock(p.ID, size, available, diff)
			}
			return nil, err
		}
	case diff < 0:
		if err := inventory.Return(ctx, s.products, p.ID, size, -diff, 0); err != nil {
			return nil, err
		}
	}

	c.Items[idx].Quantity = in.Quantity
	if err := s.save(ctx, c); err != nil {
		s.undo(ctx, p.ID, size, diff)
		return nil, err
	}
	lg.Info().Str("product_id", p.ID.Hex()).Int("diff", diff).Msg("cart item updated")
	return c, nil
}

// Remove drops a line and releases its stock.
func (s *Service) Remove(ctx context.Context, userID, productID primitive.ObjectID, size string) (*models.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	idx := c.FindItem(productID, size)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	line := c.Items[idx]
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.release(ctx, []models.CartItem{line})
	return c, nil
}

// Clear empties the cart and releases every line.
func (s *Service) Clear(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	lines := c.Items
	c.Items = []models.CartItem{}
	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	s.release(ctx, lines)
	return c, nil
}

// Quote prices the cart with category discounts and an optional code.
func (s *Service) Quote(ctx context.Context, userID primitive.ObjectID, code string) (*pricing.Quote, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}
	return s.quoter.Quote(ctx, userID, Lines(c), code)
}

// Lines converts cart lines into pricing lines.
func Lines(c *models.Cart) []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, pricing.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: pricing.Money(item.Price),
		})
	}
	return lines
}

// Total is the sum of price times quantity over all lines.
func Total(items []models.CartItem) float64 {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(pricing.Money(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return pricing.Float(total)
}

func (s *Service) save(ctx context.Context, c *models.Cart) error {
	c.TotalAmount = Total(c.Items)
	c.UpdatedAt = s.now()
	if err := s.carts.Save(ctx, c); err != nil {
		return errors.Wrap(err, "save cart")
	}
	return nil
}

func (s *Service) release(ctx context.Context, lines []models.CartItem) {
	lg := logger.Component(ctx, "cart")
	for _, line := range lines {
		if err := inventory.Return(ctx, s.products, line.ProductID, line.Size, line.Quantity, 0); err != nil {
			lg.Warn().Err(err).Str("product_id", line.ProductID.Hex()).Int("quantity", line.Quantity).Msg("stock not released")
		}
	}
}

func (s *Service) undo(ctx context.Context, productID primitive.ObjectID, size string, diff int) {
	var err error
	switch {
	case diff > 0:
		err = inventory.Return(ctx, s.products, productID, size, diff, 0)
	case diff < 0:
		err = inventory.Take(ctx, s.products, productID, size, -diff, 0)
	}
	if err != nil {
		lg := logger.Component(ctx, "cart")
		lg.Error().Err(err).Str("product_id", productID.Hex()).Int("diff", diff).Msg("stock not restored after failed cart save")
	}
}
