package pricing

import (
	"context"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

// AppliedDiscount records one auto-applied category discount on one line.
type AppliedDiscount struct {
	ProductID    primitive.ObjectID `json:"productId"`
	CategoryID   primitive.ObjectID `json:"categoryId"`
	DiscountID   primitive.ObjectID `json:"discountId"`
	DiscountName string             `json:"discountName"`
	Amount       float64            `json:"amount"`
}

type CategoryResult struct {
	Total   decimal.Decimal
	Applied []AppliedDiscount
}

// ApplyCategoryDiscounts evaluates the auto-apply category discounts that are
// active now against lines. It never records usage and is safe to call
// repeatedly. When several discounts target one category the most recently
// created one wins.
func (e *Engine) ApplyCategoryDiscounts(ctx context.Context, lines []Line) (*CategoryResult, error) {
	result := &CategoryResult{Total: decimal.Zero, Applied: []AppliedDiscount{}}
	if len(lines) == 0 {
		return result, nil
	}

	now := e.now()
	discounts, err := e.discounts.ListAutoCategory(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list category discounts")
	}
	byCategory := pickCategoryDiscounts(discounts, now)
	if len(byCategory) == 0 {
		return result, nil
	}

	lines, err = e.resolveCategories(ctx, lines)
	if err != nil {
		return nil, err
	}

	// minPurchaseAmount is measured against the lines of the discounted category.
	categoryTotals := map[primitive.ObjectID]decimal.Decimal{}
	for _, l := range lines {
		categoryTotals[l.CategoryID] = categoryTotals[l.CategoryID].Add(l.Total())
	}

	for _, l := range lines {
		d, ok := byCategory[l.CategoryID]
		if !ok || l.Quantity <= 0 {
			continue
		}
		if categoryTotals[l.CategoryID].LessThan(Money(d.MinPurchaseAmount)) {
			continue
		}
		amount := lineDiscount(d, l.UnitPrice, l.Quantity)
		if !amount.IsPositive() {
			continue
		}
		result.Total = result.Total.Add(amount)
		result.Applied = append(result.Applied, AppliedDiscount{
			ProductID:    l.ProductID,
			CategoryID:   l.CategoryID,
			DiscountID:   d.ID,
			DiscountName: d.Name,
			Amount:       Float(amount),
		})
	}
	result.Total = result.Total.Round(2)
	return result, nil
}

func (e *Engine) resolveCategories(ctx context.Context, lines []Line) ([]Line, error) {
	missing := make([]primitive.ObjectID, 0)
	for _, l := range lines {
		if l.CategoryID.IsZero() {
			missing = append(missing, l.ProductID)
		}
	}
	if len(missing) == 0 {
		return lines, nil
	}

	resolved, err := e.categories.CategoryIDs(ctx, missing)
	if err != nil {
		return nil, errors.Wrap(err, "resolve categories")
	}
	out := make([]Line, len(lines))
	for i, l := range lines {
		if l.CategoryID.IsZero() {
			l.CategoryID = resolved[l.ProductID]
		}
		out[i] = l
	}
	return out, nil
}

// pickCategoryDiscounts keeps one discount per category, newest first.
func pickCategoryDiscounts(discounts []models.Discount, now time.Time) map[primitive.ObjectID]*models.Discount {
	sorted := make([]models.Discount, 0, len(discounts))
	for _, d := range discounts {
		if d.IsCategoryDiscount && d.AutoApply && d.CategoryID != nil && d.ActiveAt(now) {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.Hex() > sorted[j].ID.Hex()
	})

	out := make(map[primitive.ObjectID]*models.Discount, len(sorted))
	for i := range sorted {
		cat := *sorted[i].CategoryID
		if _, taken := out[cat]; !taken {
			out[cat] = &sorted[i]
		}
	}
	return out
}
