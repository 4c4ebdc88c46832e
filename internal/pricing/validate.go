package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

// CodeResult is the outcome of evaluating a discount code against a subtotal.
type CodeResult struct {
	Discount       *models.Discount
	DiscountAmount decimal.Decimal
	FinalAmount    decimal.Decimal
	// Redeemed is true once the usage is recorded for this user.
	Redeemed bool
}

// Validate checks code for userID and records the usage on success.
func (e *Engine) Validate(ctx context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*CodeResult, error) {
	res, err := e.Check(ctx, code, userID, subtotal)
	if err != nil {
		return nil, err
	}
	if err := e.Redeem(ctx, userID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// Check runs every validation without recording usage.
func (e *Engine) Check(ctx context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*CodeResult, error) {
	d, usage, err := e.lookup(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		return nil, ErrDiscountAlreadyUsed
	}
	if d.LimitReached() {
		return nil, ErrUsageLimitExceeded
	}
	return evaluate(d, subtotal)
}

// Prepare is used at checkout. A redemption recorded earlier through Validate
// and not yet attached to an order is honoured; otherwise it behaves like Check.
func (e *Engine) Prepare(ctx context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*CodeResult, error) {
	d, usage, err := e.lookup(ctx, code, userID)
	if err != nil {
		return nil, err
	}
	if usage != nil {
		if usage.OrderID != nil {
			return nil, ErrDiscountAlreadyUsed
		}
		res, err := evaluate(d, subtotal)
		if err != nil {
			return nil, err
		}
		res.Redeemed = true
		return res, nil
	}
	if d.LimitReached() {
		return nil, ErrUsageLimitExceeded
	}
	return evaluate(d, subtotal)
}

// Redeem records the usage of res.Discount by userID. The (user, discount)
// pair is unique in the store and the counter increment is conditional on the
// limit, so concurrent redemptions cannot exceed it.
func (e *Engine) Redeem(ctx context.Context, userID primitive.ObjectID, res *CodeResult) error {
	if res == nil || res.Discount == nil || res.Redeemed {
		return nil
	}
	lg := logger.Component(ctx, "discount")
	d := res.Discount

	usage := &models.DiscountUsage{
		UserID:     userID,
		DiscountID: d.ID,
		Amount:     Float(res.DiscountAmount),
		CreatedAt:  e.now(),
	}
	if err := e.discounts.InsertUsage(ctx, usage); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return ErrDiscountAlreadyUsed
		}
		return errors.Wrap(err, "insert discount usage")
	}

	if err := e.discounts.IncrementUsedCount(ctx, d.ID); err != nil {
		if delErr := e.discounts.DeleteUsage(ctx, userID, d.ID); delErr != nil {
			lg.Error().Err(delErr).Str("discount_id", d.ID.Hex()).Msg("release discount usage failed")
		}
		if errors.Is(err, store.ErrNotMatched) {
			return ErrUsageLimitExceeded
		}
		return errors.Wrap(err, "increment discount usage")
	}

	if e.users != nil {
		if err := e.users.AddUsedDiscount(ctx, userID, d.ID); err != nil {
			lg.Warn().Err(err).Str("discount_id", d.ID.Hex()).Msg("usedDiscounts projection not updated")
		}
	}

	res.Redeemed = true
	lg.Info().Str("discount_id", d.ID.Hex()).Str("user_id", userID.Hex()).Msg("discount redeemed")
	return nil
}

// Attach marks the user's redemption as consumed by orderID.
func (e *Engine) Attach(ctx context.Context, userID, discountID, orderID primitive.ObjectID) error {
	return e.discounts.AttachUsage(ctx, userID, discountID, orderID)
}

func (e *Engine) lookup(ctx context.Context, code string, userID primitive.ObjectID) (*models.Discount, *models.DiscountUsage, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, nil, ErrDiscountNotFound
	}

	now := e.now()
	d, err := e.discounts.FindActiveByCode(ctx, code, now)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrDiscountNotFound
		}
		return nil, nil, errors.Wrap(err, "find discount")
	}
	if !d.ActiveAt(now) {
		return nil, nil, ErrDiscountNotFound
	}

	usage, err := e.discounts.FindUsage(ctx, userID, d.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return d, nil, nil
		}
		return nil, nil, errors.Wrap(err, "find discount usage")
	}
	return d, usage, nil
}

func evaluate(d *models.Discount, subtotal decimal.Decimal) (*CodeResult, error) {
	if !subtotal.IsPositive() {
		return nil, ErrInvalidSubtotal
	}
	if subtotal.LessThan(Money(d.MinPurchaseAmount)) {
		return nil, ErrMinimumNotMet.WithDetails(map[string]float64{
			"minPurchaseAmount": d.MinPurchaseAmount,
		})
	}
	amount := DiscountAmount(d, subtotal)
	return &CodeResult{
		Discount:       d,
		DiscountAmount: amount,
		FinalAmount:    Subtract(subtotal, amount).Round(2),
	}, nil
}
