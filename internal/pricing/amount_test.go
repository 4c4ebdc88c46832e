package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"storefront/internal/models"
)

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		name     string
		discount *models.Discount
		base     float64
		want     string
	}{
		{
			name:     "percentage",
			discount: &models.Discount{Type: models.DiscountPercentage, Value: 10},
			base:     200,
			want:     "20",
		},
		{
			name:     "percentage clamped to max",
			discount: &models.Discount{Type: models.DiscountPercentage, Value: 50, MaxDiscountAmount: ptr(30.0)},
			base:     200,
			want:     "30",
		},
		{
			name:     "percentage below max",
			discount: &models.Discount{Type: models.DiscountPercentage, Value: 10, MaxDiscountAmount: ptr(30.0)},
			base:     120,
			want:     "12",
		},
		{
			name:     "fixed",
			discount: &models.Discount{Type: models.DiscountFixed, Value: 25},
			base:     100,
			want:     "25",
		},
		{
			name:     "fixed capped at base",
			discount: &models.Discount{Type: models.DiscountFixed, Value: 25},
			base:     19.99,
			want:     "19.99",
		},
		{
			name:     "rounded to cents",
			discount: &models.Discount{Type: models.DiscountPercentage, Value: 15},
			base:     33.33,
			want:     "5",
		},
		{
			name:     "unknown type",
			discount: &models.Discount{Type: "bogus", Value: 25},
			base:     100,
			want:     "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DiscountAmount(tt.discount, Money(tt.base))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestLineDiscountFixedPerUnit(t *testing.T) {
	d := &models.Discount{Type: models.DiscountFixed, Value: 5}

	assert.True(t, lineDiscount(d, Money(20), 3).Equal(Money(15)))
	assert.True(t, lineDiscount(d, Money(4), 2).Equal(Money(8)), "capped at the line total")
}

func TestSubtractFloorsAtZero(t *testing.T) {
	assert.True(t, Subtract(Money(10), Money(25)).IsZero())
	assert.True(t, Subtract(Money(25), Money(10)).Equal(Money(15)))
}
