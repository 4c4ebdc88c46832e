// Package orders implements checkout and the order lifecycle.
package orders

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/inventory"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

var (
	ErrEmptyCart            = apperr.BadRequest("cart is empty")
	ErrOrderNotFound        = apperr.NotFound("order not found")
	ErrNotOwner             = apperr.Unauthorized("not allowed to access this order")
	ErrOrderNotCancellable  = apperr.BadRequest("only pending orders can be cancelled")
	ErrInvalidStatus        = apperr.BadRequest("invalid order status")
	ErrStatusConflict       = apperr.Conflict("order status changed concurrently")
	ErrAddressNotFound      = apperr.NotFound("shipping address not found")
	ErrAddressRequired      = apperr.BadRequest("shipping address is required")
	ErrUserNotFound         = apperr.NotFound("user not found")
	ErrInvalidPaymentMethod = apperr.BadRequest("payment method must be cash or card")
)

type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	List(ctx context.Context, userID *primitive.ObjectID, status models.OrderStatus, page store.Page) ([]models.Order, int64, error)
	AppendStatus(ctx context.Context, id primitive.ObjectID, change models.StatusChange, from ...models.OrderStatus) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

type CategoryCounter interface {
	IncrementSold(ctx context.Context, id primitive.ObjectID, delta int) error
}

// Pricer prices order lines and redeems discount codes.
type Pricer interface {
	PriceLines(ctx context.Context, lines []pricing.Line) (*pricing.Quote, error)
	Prepare(ctx context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*pricing.CodeResult, error)
	Redeem(ctx context.Context, userID primitive.ObjectID, res *pricing.CodeResult) error
	Attach(ctx context.Context, userID, discountID, orderID primitive.ObjectID) error
}

// Reservations exposes the stock already held by a user's cart.
type Reservations interface {
	Held(ctx context.Context, userID primitive.ObjectID) (map[inventory.Key]int, error)
	Consume(ctx context.Context, userID primitive.ObjectID, taken map[inventory.Key]int) error
}

type Deps struct {
	Orders       OrderStore
	Products     inventory.ProductStore
	Users        UserStore
	Categories   CategoryCounter
	Pricer       Pricer
	Reservations Reservations
	Payments     payment.Gateway
	Notifier     notify.Notifier
	Metrics      *metrics.Metrics
	AdminEmail   string
}

type Service struct {
	orders       OrderStore
	products     inventory.ProductStore
	users        UserStore
	categories   CategoryCounter
	pricer       Pricer
	reservations Reservations
	payments     payment.Gateway
	notifier     notify.Notifier
	metrics      *metrics.Metrics
	adminEmail   string
	now          func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		orders:       d.Orders,
		products:     d.Products,
		users:        d.Users,
		categories:   d.Categories,
		pricer:       d.Pricer,
		reservations: d.Reservations,
		payments:     d.Payments,
		notifier:     d.Notifier,
		metrics:      d.Metrics,
		adminEmail:   d.AdminEmail,
		now:          time.Now,
	}
}

// Get returns an order visible to the caller: its owner or an admin.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin && o.UserID != caller.UserID {
		return nil, ErrNotOwner
	}
	return o, nil
}

func (s *Service) ListMine(ctx context.Context, userID primitive.ObjectID, page store.Page) ([]models.Order, int64, error) {
	items, total, err := s.orders.List(ctx, &userID, "", page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list user orders")
	}
	return items, total, nil
}

// ListAll lists every order, optionally narrowed to one status.
func (s *Service) ListAll(ctx context.Context, status models.OrderStatus, page store.Page) ([]models.Order, int64, error) {
	if status != "" && !status.Valid() {
		return nil, 0, ErrInvalidStatus
	}
	items, total, err := s.orders.List(ctx, nil, status, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return items, total, nil
}

func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if err := s.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrOrderNotFound
		}
		return errors.Wrap(err, "delete order")
	}
	s.metrics.OrderEvent("deleted")
	return nil
}

func (s *Service) find(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "find order")
	}
	return o, nil
}

func (s *Service) enqueue(ctx context.Context, msg notify.Message, err error) {
	lg := logger.Component(ctx, "order")
	if err != nil {
		lg.Warn().Err(err).Msg("notification not rendered")
		return
	}
	if s.notifier == nil {
		return
	}
	if !s.notifier.Enqueue(msg) {
		lg.Debug().Str("kind", msg.Kind).Msg("notification not queued")
	}
}
