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
	"storefront/internal/store"
)

const cancelNote = "cancelled by customer"

// Cancel lets the owner cancel a pending order. Stock is returned once the
// status change has been written; sales counters stay as they were.
func (s *Service) Cancel(ctx context.Context, userID, orderID primitive.ObjectID) (*models.Order, error) {
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrNotOwner
	}
	if o.Status != models.OrderPending {
		return nil, ErrOrderNotCancellable
	}

	change := models.StatusChange{Status: models.OrderCancelled, Timestamp: s.now(), Note: cancelNote}
	if err := s.orders.AppendStatus(ctx, o.ID, change, models.OrderPending); err != nil {
		if errors.Is(err, store.ErrNotMatched) {
			return nil, ErrOrderNotCancellable
		}
		return nil, errors.Wrap(err, "cancel order")
	}
	apply(o, change)

	s.restock(ctx, o)
	s.notifyCustomer(ctx, o, change)
	s.metrics.OrderEvent("cancelled")
	lg := logger.Component(ctx, "order")
	lg.Info().Str("order_id", o.ID.Hex()).Msg("order cancelled by customer")
	return o, nil
}

// UpdateStatus writes any valid status. Moving into cancelled reverses stock;
// leaving cancelled does not take it again.
func (s *Service) UpdateStatus(ctx context.Context, orderID primitive.ObjectID, status models.OrderStatus, note string) (*models.Order, error) {
	status = models.OrderStatus(strings.ToLower(strings.TrimSpace(string(status))))
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	o, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}

	previous := o.Status
	change := models.StatusChange{Status: status, Timestamp: s.now(), Note: strings.TrimSpace(note)}
	if err := s.orders.AppendStatus(ctx, o.ID, change, previous); err != nil {
		if errors.Is(err, store.ErrNotMatched) {
			return nil, ErrStatusConflict
		}
		return nil, errors.Wrap(err, "update order status")
	}
	apply(o, change)

	if status == models.OrderCancelled && previous != models.OrderCancelled {
		s.restock(ctx, o)
		s.metrics.OrderEvent("cancelled")
	}
	s.notifyCustomer(ctx, o, change)
	s.metrics.OrderEvent("status_" + string(status))

	lg := logger.Component(ctx, "order")
	lg.Info().
		Str("order_id", o.ID.Hex()).
		Str("from", string(previous)).
		Str("to", string(status)).
		Msg("order status updated")
	return o, nil
}

func apply(o *models.Order, change models.StatusChange) {
	o.Status = change.Status
	o.StatusHistory = append(o.StatusHistory, change)
	o.UpdatedAt = change.Timestamp
}

// restock returns every item to its variant, or to the product stock for
// unsized items. soldCount only grows, so it is left alone.
func (s *Service) restock(ctx context.Context, o *models.Order) {
	lg := logger.Component(ctx, "order")
	for _, item := range o.Items {
		if err := inventory.Return(ctx, s.products, item.ProductID, item.Size, item.Quantity, 0); err != nil {
			lg.Error().Err(err).
				Str("order_id", o.ID.Hex()).
				Str("product_id", item.ProductID.Hex()).
				Str("size", item.Size).
				Int("quantity", item.Quantity).
				Msg("stock not restored")
		}
	}
}

func (s *Service) notifyCustomer(ctx context.Context, o *models.Order, change models.StatusChange) {
	u, err := s.users.FindByID(ctx, o.UserID)
	if err != nil {
		lg := logger.Component(ctx, "order")
		lg.Warn().Err(err).Str("order_id", o.ID.Hex()).Msg("customer not notified")
		return
	}
	msg, err := notify.StatusChanged(u.Email, u.Name, o, change)
	s.enqueue(ctx, msg, err)
}
