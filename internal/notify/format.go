package notify

import "github.com/shopspring/decimal"

func formatMoney(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
