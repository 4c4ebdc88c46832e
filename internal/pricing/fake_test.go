package pricing

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
	"storefront/internal/store"
)

type usageKey struct {
	user     primitive.ObjectID
	discount primitive.ObjectID
}

type fakeDiscountStore struct {
	mu        sync.Mutex
	discounts []*models.Discount
	usages    map[usageKey]*models.DiscountUsage
}

func newFakeDiscountStore(discounts ...*models.Discount) *fakeDiscountStore {
	return &fakeDiscountStore{
		discounts: discounts,
		usages:    map[usageKey]*models.DiscountUsage{},
	}
}

func (f *fakeDiscountStore) FindActiveByCode(_ context.Context, code string, now time.Time) (*models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range f.discounts {
		if d.Code == code && d.ActiveAt(now) {
			cp := *d
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeDiscountStore) ListAutoCategory(_ context.Context, now time.Time) ([]models.Discount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := []models.Discount{}
	for _, d := range f.discounts {
		if d.IsCategoryDiscount && d.AutoApply && d.ActiveAt(now) {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDiscountStore) FindUsage(_ context.Context, userID, discountID primitive.ObjectID) (*models.DiscountUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.usages[usageKey{userID, discountID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeDiscountStore) InsertUsage(_ context.Context, usage *models.DiscountUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := usageKey{usage.UserID, usage.DiscountID}
	if _, ok := f.usages[key]; ok {
		return store.ErrDuplicate
	}
	cp := *usage
	f.usages[key] = &cp
	return nil
}

func (f *fakeDiscountStore) DeleteUsage(_ context.Context, userID, discountID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.usages, usageKey{userID, discountID})
	return nil
}

func (f *fakeDiscountStore) AttachUsage(_ context.Context, userID, discountID, orderID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.usages[usageKey{userID, discountID}]
	if !ok || u.OrderID != nil {
		return store.ErrNotMatched
	}
	u.OrderID = &orderID
	return nil
}

func (f *fakeDiscountStore) IncrementUsedCount(_ context.Context, discountID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, d := range f.discounts {
		if d.ID != discountID {
			continue
		}
		if d.LimitReached() {
			return store.ErrNotMatched
		}
		d.UsedCount++
		return nil
	}
	return store.ErrNotMatched
}

func (f *fakeDiscountStore) usageCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.usages)
}

type fakeCategories map[primitive.ObjectID]primitive.ObjectID

func (f fakeCategories) CategoryIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]primitive.ObjectID, error) {
	out := map[primitive.ObjectID]primitive.ObjectID{}
	for _, id := range ids {
		if cat, ok := f[id]; ok {
			out[id] = cat
		}
	}
	return out, nil
}

type fakeProjection struct {
	mu    sync.Mutex
	added map[primitive.ObjectID][]primitive.ObjectID
}

func (f *fakeProjection) AddUsedDiscount(_ context.Context, userID, discountID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.added == nil {
		f.added = map[primitive.ObjectID][]primitive.ObjectID{}
	}
	f.added[userID] = append(f.added[userID], discountID)
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestEngine(ds *fakeDiscountStore, cats fakeCategories, users *fakeProjection) *Engine {
	var projection UsageProjection
	if users != nil {
		projection = users
	}
	e := NewEngine(ds, cats, projection)
	e.now = func() time.Time { return fixedNow }
	return e
}

func activeDiscount(code string, typ models.DiscountType, value float64) *models.Discount {
	return &models.Discount{
		ID:        primitive.NewObjectID(),
		Name:      code,
		Code:      code,
		Type:      typ,
		Value:     value,
		StartDate: fixedNow.Add(-24 * time.Hour),
		EndDate:   fixedNow.Add(24 * time.Hour),
		IsActive:  true,
		CreatedAt: fixedNow.Add(-48 * time.Hour),
	}
}

func ptr[T any](v T) *T { return &v }
