package orders

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/inventory"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

type ItemInput struct {
	ProductID primitive.ObjectID
	Quantity  int
	Size      string
}

// CreateInput is a checkout request. The shipping address is either one of
// the user's saved addresses or given inline; with neither, the user's
// default address is used.
type CreateInput struct {
	Items             []ItemInput
	ShippingAddressID string
	ShippingAddress   *models.Address
	PaymentMethod     string
	DiscountCode      string
}

// line is one validated order line and its stock plan.
type line struct {
	product *models.Product
	key     inventory.Key
	size    string
	qty     int
	// held is the part of qty already reserved by the user's cart.
	held int
}

func (l line) need() int {
	return l.qty - l.held
}

// Create validates and prices the request, takes stock, redeems the discount
// code, charges payment and stores the order. Every validation runs before
// the first write; a failed stock take undoes the ones applied before it.
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, in CreateInput) (*models.Order, error) {
	lg := logger.Component(ctx, "order")

	items, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}
	method := payment.NormalizeMethod(in.PaymentMethod)
	if !payment.ValidMethod(method) {
		return nil, ErrInvalidPaymentMethod
	}

	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	addr, err := shippingAddress(user, in)
	if err != nil {
		return nil, err
	}

	held := map[inventory.Key]int{}
	if s.reservations != nil {
		if held, err = s.reservations.Held(ctx, userID); err != nil {
			return nil, errors.Wrap(err, "load cart reservations")
		}
	}

	lines, priced, err := s.plan(ctx, items, held)
	if err != nil {
		return nil, err
	}

	quote, err := s.pricer.PriceLines(ctx, priced)
	if err != nil {
		return nil, err
	}
	var code *pricing.CodeResult
	if pricing.NormalizeCode(in.DiscountCode) != "" {
		code, err = s.pricer.Prepare(ctx, in.DiscountCode, userID, pricing.Subtract(quote.Subtotal, quote.CategoryDiscount))
		if err != nil {
			s.metrics.Redemption("rejected")
			return nil, err
		}
		quote.ApplyCode(code)
	}

	applied, err := s.takeStock(ctx, lines)
	if err != nil {
		return nil, err
	}

	if code != nil && !code.Redeemed {
		if err := s.pricer.Redeem(ctx, userID, code); err != nil {
			s.metrics.Redemption("rejected")
			s.returnStock(ctx, applied)
			return nil, err
		}
		s.metrics.Redemption("redeemed")
	}

	order := &models.Order{
		ID:               primitive.NewObjectID(),
		UserID:           userID,
		Items:            orderItems(lines),
		Subtotal:         pricing.Float(quote.Subtotal),
		CategoryDiscount: pricing.Float(quote.CategoryDiscount),
		DiscountAmount:   pricing.Float(quote.CodeDiscount()),
		TotalAmount:      pricing.Float(quote.Total),
		Status:           models.OrderPending,
		StatusHistory:    []models.StatusChange{},
		ShippingAddress:  addr,
		PaymentMethod:    method,
	}
	if code != nil {
		order.DiscountCode = code.Discount.Code
	}

	status, err := s.payments.Charge(ctx, payment.Charge{
		OrderRef: order.ID.Hex(),
		UserID:   userID.Hex(),
		Method:   method,
		Amount:   order.TotalAmount,
	})
	if err != nil {
		s.returnStock(ctx, applied)
		return nil, err
	}
	order.PaymentStatus = status

	now := s.now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if err := s.orders.Insert(ctx, order); err != nil {
		s.returnStock(ctx, applied)
		return nil, errors.Wrap(err, "insert order")
	}

	if code != nil {
		if err := s.pricer.Attach(ctx, userID, code.Discount.ID, order.ID); err != nil {
			lg.Warn().Err(err).Str("order_id", order.ID.Hex()).Msg("discount usage not attached to order")
		}
	}
	s.countCategorySales(ctx, order.Items)
	s.consumeReservations(ctx, userID, lines)

	msg, err := notify.OrderPlaced(s.adminEmail, order)
	s.enqueue(ctx, msg, err)
	s.metrics.OrderEvent("created")

	lg.Info().
		Str("order_id", order.ID.Hex()).
		Str("user_id", userID.Hex()).
		Float64("total", order.TotalAmount).
		Int("items", len(order.Items)).
		Msg("order created")
	return order, nil
}

// mergeItems validates quantities and folds repeated (product, size) pairs.
func mergeItems(in []ItemInput) ([]ItemInput, error) {
	if len(in) == 0 {
		return nil, ErrEmptyCart
	}
	out := make([]ItemInput, 0, len(in))
	index := make(map[inventory.Key]int, len(in))
	for _, item := range in {
		if item.Quantity <= 0 {
			return nil, inventory.ErrInvalidQuantity
		}
		key := inventory.NewKey(item.ProductID, item.Size)
		if i, ok := index[key]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[key] = len(out)
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "find user")
	}
	return u, nil
}

func shippingAddress(u *models.User, in CreateInput) (models.Address, error) {
	if id := strings.TrimSpace(in.ShippingAddressID); id != "" {
		addr, ok := u.FindAddress(id)
		if !ok {
			return models.Address{}, ErrAddressNotFound
		}
		return addr, nil
	}
	if a := in.ShippingAddress; a != nil {
		if strings.TrimSpace(a.Line) == "" || strings.TrimSpace(a.City) == "" {
			return models.Address{}, ErrAddressRequired
		}
		addr := *a
		if strings.TrimSpace(addr.FullName) == "" {
			addr.FullName = u.Name
		}
		return addr, nil
	}
	for _, addr := range u.Addresses {
		if addr.IsDefault {
			return addr, nil
		}
	}
	return models.Address{}, ErrAddressRequired
}

// plan loads every product and checks stock for the part of each line the
// cart does not already hold. Nothing is written.
func (s *Service) plan(ctx context.Context, items []ItemInput, held map[inventory.Key]int) ([]line, []pricing.Line, error) {
	lines := make([]line, 0, len(items))
	priced := make([]pricing.Line, 0, len(items))
	for _, item := range items {
		p, err := inventory.Load(ctx, s.products, item.ProductID)
		if err != nil {
			return nil, nil, err
		}
		size, available, err := inventory.Resolve(p, item.Size)
		if err != nil {
			return nil, nil, err
		}
		l := line{
			product: p,
			key:     inventory.NewKey(p.ID, size),
			size:    size,
			qty:     item.Quantity,
		}
		l.held = min(held[l.key], l.qty)
		if available < l.need() {
			return nil, nil, inventory.InsufficientStock(p.ID, size, available+l.held, l.qty)
		}
		lines = append(lines, l)
		priced = append(priced, pricing.Line{
			ProductID:  p.ID,
			CategoryID: p.CategoryID,
			Quantity:   l.qty,
			UnitPrice:  pricing.Money(p.EffectivePrice()),
		})
	}
	return lines, priced, nil
}

// takeStock applies one conditional update per line. On failure the lines
// already applied are returned and the error reports the failing line.
func (s *Service) takeStock(ctx context.Context, lines []line) ([]line, error) {
	applied := make([]line, 0, len(lines))
	for _, l := range lines {
		err := inventory.Take(ctx, s.products, l.product.ID, l.size, l.need(), l.qty)
		if err != nil {
			s.returnStock(ctx, applied)
			if errors.Is(err, inventory.ErrInsufficientStock) {
				s.metrics.StockConflict()
				return nil, inventory.InsufficientStock(l.product.ID, l.size, 0, l.qty)
			}
			return nil, err
		}
		applied = append(applied, l)
	}
	return applied, nil
}

func (s *Service) returnStock(ctx context.Context, applied []line) {
	lg := logger.Component(ctx, "order")
	for _, l := range applied {
		if err := inventory.Return(ctx, s.products, l.product.ID, l.size, l.need(), l.qty); err != nil {
			lg.Error().Err(err).
				Str("product_id", l.product.ID.Hex()).
				Str("size", l.size).
				Int("quantity", l.need()).
				Msg("stock compensation failed")
		}
	}
}

func (s *Service) countCategorySales(ctx context.Context, items []models.OrderItem) {
	if s.categories == nil {
		return
	}
	lg := logger.Component(ctx, "order")
	perCategory := map[primitive.ObjectID]int{}
	for _, item := range items {
		if !item.CategoryID.IsZero() {
			perCategory[item.CategoryID] += item.Quantity
		}
	}
	for id, qty := range perCategory {
		if err := s.categories.IncrementSold(ctx, id, qty); err != nil {
			lg.Warn().Err(err).Str("category_id", id.Hex()).Msg("category soldCount not updated")
		}
	}
}

func (s *Service) consumeReservations(ctx context.Context, userID primitive.ObjectID, lines []line) {
	if s.reservations == nil {
		return
	}
	taken := map[inventory.Key]int{}
	for _, l := range lines {
		if l.held > 0 {
			taken[l.key] += l.held
		}
	}
	if err := s.reservations.Consume(ctx, userID, taken); err != nil {
		lg := logger.Component(ctx, "order")
		lg.Warn().Err(err).Str("user_id", userID.Hex()).Msg("cart not updated after order")
	}
}

func orderItems(lines []line) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			ProductID:  l.product.ID,
			CategoryID: l.product.CategoryID,
			Name:       l.product.Name,
			Size:       l.size,
			Price:      l.product.EffectivePrice(),
			Quantity:   l.qty,
		})
	}
	return items
}
