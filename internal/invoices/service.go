// Package invoices issues plain-text invoices for orders and keeps the
// rendered documents on local disk under the upload directory.
package invoices

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

const subdir = "invoices"

var (
	ErrInvoiceNotFound = apperr.NotFound("invoice not found")
	ErrOrderNotFound   = apperr.NotFound("order not found")
	ErrNotOwner        = apperr.Unauthorized("not allowed to access this invoice")
	ErrOrderCancelled  = apperr.BadRequest("cancelled orders cannot be invoiced")
)

type InvoiceStore interface {
	Insert(ctx context.Context, inv *models.Invoice) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error)
	FindByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Invoice, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID, page store.Page) ([]models.Invoice, int64, error)
}

type OrderFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
}

type Service struct {
	invoices InvoiceStore
	orders   OrderFinder
	root     string
	now      func() time.Time
}

// NewService stores documents below root/invoices.
func NewService(invoices InvoiceStore, orders OrderFinder, root string) *Service {
	return &Service{
		invoices: invoices,
		orders:   orders,
		root:     root,
		now:      time.Now,
	}
}

// Generate issues the invoice for an order, or returns the one already issued.
func (s *Service) Generate(ctx context.Context, caller auth.Identity, orderID primitive.ObjectID) (*models.Invoice, error) {
	lg := logger.Component(ctx, "invoice")

	o, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "find order")
	}
	if !caller.IsAdmin && o.UserID != caller.UserID {
		return nil, ErrNotOwner
	}

	existing, err := s.invoices.FindByOrder(ctx, o.ID)
	switch {
	case err == nil:
		return existing, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, errors.Wrap(err, "find invoice")
	}
	if o.Status == models.OrderCancelled {
		return nil, ErrOrderCancelled
	}

	inv := build(o, s.now())
	body, err := render(inv, o)
	if err != nil {
		return nil, err
	}
	path := s.Path(inv)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create invoice dir")
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, errors.Wrap(err, "write invoice")
	}

	if err := s.invoices.Insert(ctx, inv); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			lg.Warn().Err(rmErr).Str("path", path).Msg("orphan invoice file not removed")
		}
		if errors.Is(err, store.ErrDuplicate) {
			return s.invoices.FindByOrder(ctx, o.ID)
		}
		return nil, errors.Wrap(err, "insert invoice")
	}

	lg.Info().Str("invoice", inv.Number).Str("order_id", o.ID.Hex()).Msg("invoice issued")
	return inv, nil
}

// Get returns an invoice visible to the caller.
func (s *Service) Get(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Invoice, error) {
	inv, err := s.invoices.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, errors.Wrap(err, "find invoice")
	}
	if !caller.IsAdmin && inv.UserID != caller.UserID {
		return nil, ErrNotOwner
	}
	return inv, nil
}

func (s *Service) ListMine(ctx context.Context, userID primitive.ObjectID, page store.Page) ([]models.Invoice, int64, error) {
	items, total, err := s.invoices.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list invoices")
	}
	return items, total, nil
}

// Path is where the rendered document of inv lives on disk.
func (s *Service) Path(inv *models.Invoice) string {
	return filepath.Join(s.root, filepath.FromSlash(inv.FilePath))
}

// Number formats an invoice number as INV-YYYYMMDD-XXXXXX.
func Number(issued time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return "INV-" + issued.UTC().Format("20060102") + "-" + strings.ToUpper(suffix)
}

func build(o *models.Order, now time.Time) *models.Invoice {
	number := Number(now)
	lines := make([]models.InvoiceLine, 0, len(o.Items))
	for _, item := range o.Items {
		desc := item.Name
		if item.Size != "" {
			desc += " (" + item.Size + ")"
		}
		lines = append(lines, models.InvoiceLine{
			Description: desc,
			Quantity:    item.Quantity,
			UnitPrice:   item.Price,
			Total:       lineTotal(item),
		})
	}
	return &models.Invoice{
		Number:   number,
		OrderID:  o.ID,
		UserID:   o.UserID,
		Lines:    lines,
		Subtotal: o.Subtotal,
		Discount: discountTotal(o),
		Total:    o.TotalAmount,
		FilePath: subdir + "/" + number + ".txt",
		IssuedAt: now,
	}
}
