package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// DiscountStore is the persistence surface the engine needs.
type DiscountStore interface {
	FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Discount, error)
	ListAutoCategory(ctx context.Context, now time.Time) ([]models.Discount, error)
	FindUsage(ctx context.Context, userID, discountID primitive.ObjectID) (*models.DiscountUsage, error)
	InsertUsage(ctx context.Context, usage *models.DiscountUsage) error
	DeleteUsage(ctx context.Context, userID, discountID primitive.ObjectID) error
	AttachUsage(ctx context.Context, userID, discountID, orderID primitive.ObjectID) error
	IncrementUsedCount(ctx context.Context, discountID primitive.ObjectID) error
}

// CategoryLookup resolves product ids to their category ids.
type CategoryLookup interface {
	CategoryIDs(ctx context.Context, productIDs []primitive.ObjectID) (map[primitive.ObjectID]primitive.ObjectID, error)
}

// UsageProjection mirrors redemptions onto the user document.
type UsageProjection interface {
	AddUsedDiscount(ctx context.Context, userID, discountID primitive.ObjectID) error
}

type Engine struct {
	discounts  DiscountStore
	categories CategoryLookup
	users      UsageProjection
	now        func() time.Time
}

func NewEngine(discounts DiscountStore, categories CategoryLookup, users UsageProjection) *Engine {
	return &Engine{
		discounts:  discounts,
		categories: categories,
		users:      users,
		now:        time.Now,
	}
}

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Line is one priced cart or order line.
type Line struct {
	ProductID  primitive.ObjectID
	CategoryID primitive.ObjectID
	Quantity   int
	UnitPrice  decimal.Decimal
}

// Total returns unit price times quantity.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums the line totals.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}
