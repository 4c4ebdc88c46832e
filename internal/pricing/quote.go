package pricing

import (
	"context"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Quote is a priced breakdown of a set of lines.
type Quote struct {
	Subtotal         decimal.Decimal
	CategoryDiscount decimal.Decimal
	Applied          []AppliedDiscount
	Code             *CodeResult
	Total            decimal.Decimal
}

// CodeDiscount returns the amount taken off by the discount code, if any.
func (q *Quote) CodeDiscount() decimal.Decimal {
	if q.Code == nil {
		return decimal.Zero
	}
	return q.Code.DiscountAmount
}

// Quote prices lines: category auto-discounts first, then the optional code
// against what remains. The code is checked, never recorded.
func (e *Engine) Quote(ctx context.Context, userID primitive.ObjectID, lines []Line, code string) (*Quote, error) {
	q, err := e.priceLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	if NormalizeCode(code) != "" {
		res, err := e.Prepare(ctx, code, userID, Subtract(q.Subtotal, q.CategoryDiscount))
		if err != nil {
			return nil, err
		}
		q.ApplyCode(res)
	}
	return q, nil
}

// ApplyCode attaches a code result and recomputes the total.
func (q *Quote) ApplyCode(res *CodeResult) {
	q.Code = res
	q.Total = q.finalTotal()
}

func (e *Engine) priceLines(ctx context.Context, lines []Line) (*Quote, error) {
	subtotal := Subtotal(lines)
	cat, err := e.ApplyCategoryDiscounts(ctx, lines)
	if err != nil {
		return nil, err
	}
	q := &Quote{
		Subtotal:         subtotal.Round(2),
		CategoryDiscount: cat.Total,
		Applied:          cat.Applied,
	}
	q.Total = q.finalTotal()
	return q, nil
}

// PriceLines is Quote without a discount code.
func (e *Engine) PriceLines(ctx context.Context, lines []Line) (*Quote, error) {
	return e.priceLines(ctx, lines)
}

func (q *Quote) finalTotal() decimal.Decimal {
	return Subtract(Subtract(q.Subtotal, q.CategoryDiscount), q.CodeDiscount()).Round(2)
}
