// Package recommend suggests products from a user's order and wishlist history.
package recommend

import (
	"context"
	"sort"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

const (
	DefaultLimit = 10
	MaxLimit     = 20
	// candidatePool bounds how many products per request are ranked.
	candidatePool = 200
)

type ProductSource interface {
	Top(ctx context.Context, f store.ProductFilter, limit int64) ([]models.Product, error)
	CategoryIDs(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]primitive.ObjectID, error)
}

type OrderHistory interface {
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
}

type UserFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type Service struct {
	products ProductSource
	orders   OrderHistory
	users    UserFinder
}

func NewService(products ProductSource, orders OrderHistory, users UserFinder) *Service {
	return &Service{products: products, orders: orders, users: users}
}

// ClampLimit maps a requested limit onto [1, MaxLimit], defaulting when unset.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// BestSellers returns active products ordered by soldCount.
func (s *Service) BestSellers(ctx context.Context, limit int) ([]models.Product, error) {
	items, err := s.products.Top(ctx, store.ProductFilter{ActiveOnly: true}, int64(ClampLimit(limit)))
	if err != nil {
		return nil, errors.Wrap(err, "best sellers")
	}
	return items, nil
}

// For returns recommendations for userID. A nil user gets best sellers.
func (s *Service) For(ctx context.Context, userID *primitive.ObjectID, limit int) ([]models.Product, error) {
	limit = ClampLimit(limit)
	if userID == nil {
		return s.BestSellers(ctx, limit)
	}

	profile, err := s.profile(ctx, *userID)
	if err != nil {
		return nil, err
	}

	var picked []models.Product
	if len(profile.weights) > 0 {
		candidates, err := s.products.Top(ctx, store.ProductFilter{
			ActiveOnly:  true,
			CategoryIDs: profile.categories(),
			ExcludeIDs:  profile.seen(),
		}, candidatePool)
		if err != nil {
			return nil, errors.Wrap(err, "recommendation candidates")
		}
		picked = Rank(candidates, profile.weights, limit)
	}

	if missing := limit - len(picked); missing > 0 {
		exclude := profile.seen()
		for _, p := range picked {
			exclude = append(exclude, p.ID)
		}
		fill, err := s.products.Top(ctx, store.ProductFilter{ActiveOnly: true, ExcludeIDs: exclude}, int64(missing))
		if err != nil {
			return nil, errors.Wrap(err, "best sellers")
		}
		picked = append(picked, fill...)
	}

	lg := logger.Component(ctx, "recommend")
	lg.Debug().Str("user_id", userID.Hex()).Int("categories", len(profile.weights)).Int("count", len(picked)).Msg("recommendations built")
	return picked, nil
}

// Rank orders candidates by category weight, then soldCount, then newest,
// and keeps at most limit of them. Products outside weighted categories are
// dropped.
func Rank(candidates []models.Product, weights map[primitive.ObjectID]int, limit int) []models.Product {
	ranked := make([]models.Product, 0, len(candidates))
	for _, p := range candidates {
		if weights[p.CategoryID] > 0 {
			ranked = append(ranked, p)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		wi, wj := weights[ranked[i].CategoryID], weights[ranked[j].CategoryID]
		if wi != wj {
			return wi > wj
		}
		if ranked[i].SoldCount != ranked[j].SoldCount {
			return ranked[i].SoldCount > ranked[j].SoldCount
		}
		return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

type profile struct {
	weights    map[primitive.ObjectID]int
	bought     map[primitive.ObjectID]struct{}
	wishlisted map[primitive.ObjectID]struct{}
}

func (p profile) categories() []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(p.weights))
	for id := range p.weights {
		out = append(out, id)
	}
	return out
}

func (p profile) seen() []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(p.bought)+len(p.wishlisted))
	for id := range p.bought {
		out = append(out, id)
	}
	for id := range p.wishlisted {
		if _, ok := p.bought[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// profile weighs categories by quantities ordered plus one per wishlisted
// product.
func (s *Service) profile(ctx context.Context, userID primitive.ObjectID) (profile, error) {
	pr := profile{
		weights:    map[primitive.ObjectID]int{},
		bought:     map[primitive.ObjectID]struct{}{},
		wishlisted: map[primitive.ObjectID]struct{}{},
	}

	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return pr, errors.Wrap(err, "order history")
	}
	var unresolved []primitive.ObjectID
	pending := map[primitive.ObjectID]int{}
	for _, o := range orders {
		for _, item := range o.Items {
			pr.bought[item.ProductID] = struct{}{}
			if !item.CategoryID.IsZero() {
				pr.weights[item.CategoryID] += item.Quantity
				continue
			}
			if _, ok := pending[item.ProductID]; !ok {
				unresolved = append(unresolved, item.ProductID)
			}
			pending[item.ProductID] += item.Quantity
		}
	}

	u, err := s.users.FindByID(ctx, userID)
	switch {
	case err == nil:
		for _, id := range u.Wishlist {
			pr.wishlisted[id] = struct{}{}
			if _, ok := pending[id]; !ok {
				unresolved = append(unresolved, id)
			}
			pending[id]++
		}
	case !errors.Is(err, store.ErrNotFound):
		return pr, errors.Wrap(err, "load wishlist")
	}

	if len(unresolved) == 0 {
		return pr, nil
	}
	cats, err := s.products.CategoryIDs(ctx, unresolved)
	if err != nil {
		return pr, errors.Wrap(err, "resolve categories")
	}
	for id, n := range pending {
		if cat, ok := cats[id]; ok && !cat.IsZero() {
			pr.weights[cat] += n
		}
	}
	return pr, nil
}
