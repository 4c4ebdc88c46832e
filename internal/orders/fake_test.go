package orders

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/inventory"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fakeOrders struct {
	mu        sync.Mutex
	orders    map[primitive.ObjectID]*models.Order
	insertErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{orders: map[primitive.ObjectID]*models.Order{}}
}

func (f *fakeOrders) Insert(_ context.Context, o *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	cp.StatusHistory = append([]models.StatusChange{}, o.StatusHistory...)
	return &cp, nil
}

func (f *fakeOrders) List(_ context.Context, userID *primitive.ObjectID, status models.OrderStatus, _ store.Page) ([]models.Order, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Order
	for _, o := range f.orders {
		if userID != nil && o.UserID != *userID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (f *fakeOrders) AppendStatus(_ context.Context, id primitive.ObjectID, change models.StatusChange, from ...models.OrderStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return store.ErrNotMatched
	}
	if len(from) > 0 {
		matched := false
		for _, st := range from {
			if o.Status == st {
				matched = true
			}
		}
		if !matched {
			return store.ErrNotMatched
		}
	}
	o.Status = change.Status
	o.StatusHistory = append(o.StatusHistory, change)
	return nil
}

func (f *fakeOrders) Delete(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeProducts struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
	failOn   map[primitive.ObjectID]bool
}

func newFakeProducts(products ...*models.Product) *fakeProducts {
	f := &fakeProducts{
		products: map[primitive.ObjectID]*models.Product{},
		failOn:   map[primitive.ObjectID]bool{},
	}
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
	if delta < 0 && f.failOn[id] {
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

type fakeUsers map[primitive.ObjectID]*models.User

func (f fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

type fakeCategories struct {
	mu   sync.Mutex
	sold map[primitive.ObjectID]int
}

func (f *fakeCategories) IncrementSold(_ context.Context, id primitive.ObjectID, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sold == nil {
		f.sold = map[primitive.ObjectID]int{}
	}
	f.sold[id] += delta
	return nil
}

// stubPricer charges list prices and knows a single discount code.
type stubPricer struct {
	discount  *models.Discount
	redeemErr error
	redeemed  int
	attached  []primitive.ObjectID
}

func (p *stubPricer) PriceLines(_ context.Context, lines []pricing.Line) (*pricing.Quote, error) {
	subtotal := pricing.Subtotal(lines).Round(2)
	return &pricing.Quote{Subtotal: subtotal, Total: subtotal}, nil
}

func (p *stubPricer) Prepare(_ context.Context, code string, _ primitive.ObjectID, subtotal decimal.Decimal) (*pricing.CodeResult, error) {
	if p.discount == nil || pricing.NormalizeCode(code) != p.discount.Code {
		return nil, pricing.ErrDiscountNotFound
	}
	amount := pricing.DiscountAmount(p.discount, subtotal)
	return &pricing.CodeResult{
		Discount:       p.discount,
		DiscountAmount: amount,
		FinalAmount:    pricing.Subtract(subtotal, amount),
	}, nil
}

func (p *stubPricer) Redeem(_ context.Context, _ primitive.ObjectID, res *pricing.CodeResult) error {
	if p.redeemErr != nil {
		return p.redeemErr
	}
	p.redeemed++
	res.Redeemed = true
	return nil
}

func (p *stubPricer) Attach(_ context.Context, _, _, orderID primitive.ObjectID) error {
	p.attached = append(p.attached, orderID)
	return nil
}

type fakeReservations struct {
	held     map[inventory.Key]int
	consumed map[inventory.Key]int
}

func (f *fakeReservations) Held(context.Context, primitive.ObjectID) (map[inventory.Key]int, error) {
	out := map[inventory.Key]int{}
	for k, v := range f.held {
		out[k] = v
	}
	return out, nil
}

func (f *fakeReservations) Consume(_ context.Context, _ primitive.ObjectID, taken map[inventory.Key]int) error {
	f.consumed = taken
	return nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (n *recordingNotifier) Enqueue(msg notify.Message) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return true
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Kind)
	}
	return out
}
