package cart

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/inventory"
	"storefront/internal/models"
)

// Held returns the quantities the user's cart currently holds per stock bucket.
func (s *Service) Held(ctx context.Context, userID primitive.ObjectID) (map[inventory.Key]int, error) {
	c, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	held := make(map[inventory.Key]int, len(c.Items))
	for _, item := range c.Items {
		held[inventory.NewKey(item.ProductID, item.Size)] += item.Quantity
	}
	return held, nil
}

// Consume takes quantities out of the cart without releasing their stock,
// which now belongs to an order.
func (s *Service) Consume(ctx context.Context, userID primitive.ObjectID, taken map[inventory.Key]int) error {
	if len(taken) == 0 {
		return nil
	}
	c, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	remaining := make(map[inventory.Key]int, len(taken))
	for k, v := range taken {
		remaining[k] = v
	}
	kept := make([]models.CartItem, 0, len(c.Items))
	for _, item := range c.Items {
		key := inventory.NewKey(item.ProductID, item.Size)
		if n := remaining[key]; n > 0 {
			used := min(n, item.Quantity)
			item.Quantity -= used
			remaining[key] = n - used
		}
		if item.Quantity > 0 {
			kept = append(kept, item)
		}
	}
	c.Items = kept
	return s.save(ctx, c)
}
