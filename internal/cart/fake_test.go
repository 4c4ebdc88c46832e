package cart

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[primitive.ObjectID]models.Cart
	saveErr error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[primitive.ObjectID]models.Cart{}}
}

func (f *fakeCarts) FindByUser(_ context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[userID]
	if !ok {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	c.Items = append([]models.CartItem{}, c.Items...)
	return &c, nil
}

func (f *fakeCarts) Save(_ context.Context, c *models.Cart) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *c
	cp.Items = append([]models.CartItem{}, c.Items...)
	f.carts[c.UserID] = cp
	return nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{products: map[primitive.ObjectID]*models.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	cp.Variants = append([]models.Variant(nil), p.Variants...)
	return &cp, nil
}

func (f *fakeProducts) AdjustStock(_ context.Context, id primitive.ObjectID, size string, delta, soldDelta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return store.ErrNotMatched
	}
	if size == "" {
		if p.Stock+delta < 0 {
			return store.ErrNotMatched
		}
		p.Stock += delta
		p.SoldCount += soldDelta
		return nil
	}
	for i := range p.Variants {
		if p.Variants[i].Size != size {
			continue
		}
		if p.Variants[i].Stock+delta < 0 {
			return store.ErrNotMatched
		}
		p.Variants[i].Stock += delta
		p.Stock += delta
		p.SoldCount += soldDelta
		return nil
	}
	return store.ErrNotMatched
}

type stubQuoter struct {
	lines []pricing.Line
	code  string
}

func (q *stubQuoter) Quote(_ context.Context, _ primitive.ObjectID, lines []pricing.Line, code string) (*pricing.Quote, error) {
	q.lines = lines
	q.code = code
	subtotal := pricing.Subtotal(lines)
	return &pricing.Quote{Subtotal: subtotal, Total: subtotal}, nil
}
