package inventory

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/store"
)

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
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
	if !ok || p.IsDeleted {
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
		if p.Variants[i].Size == size {
			if p.Variants[i].Stock+delta < 0 {
				return store.ErrNotMatched
			}
			p.Variants[i].Stock += delta
			p.Stock += delta
			p.SoldCount += soldDelta
			return nil
		}
	}
	return store.ErrNotMatched
}
