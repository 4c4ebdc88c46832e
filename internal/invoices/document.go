package invoices

import (
	"bytes"
	"text/template"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
	"storefront/internal/pricing"
)

var documentTmpl = template.Must(template.New("invoice").Funcs(template.FuncMap{
	"money": func(v float64) string { return decimal.NewFromFloat(v).StringFixed(2) },
	"date":  func(o *models.Invoice) string { return o.IssuedAt.UTC().Format("2006-01-02") },
}).Parse(`INVOICE {{.Invoice.Number}}
Date:  {{date .Invoice}}
Order: {{.Order.ID.Hex}}

Bill to:
  {{.Order.ShippingAddress.FullName}}
  {{.Order.ShippingAddress.Line}}
  {{.Order.ShippingAddress.City}} {{.Order.ShippingAddress.PostalCode}}
  {{.Order.ShippingAddress.Country}}

{{range .Invoice.Lines}}{{printf "%-40s" .Description}} {{printf "%4d" .Quantity}} x {{printf "%10s" (money .UnitPrice)}} = {{printf "%10s" (money .Total)}}
{{end}}
Subtotal: {{money .Invoice.Subtotal}}
Discount: {{money .Invoice.Discount}}
Total:    {{money .Invoice.Total}}

Payment: {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})
`))

func render(inv *models.Invoice, o *models.Order) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, map[string]any{"Invoice": inv, "Order": o}); err != nil {
		return nil, errors.Wrap(err, "render invoice")
	}
	return buf.Bytes(), nil
}

func lineTotal(item models.OrderItem) float64 {
	return pricing.Float(pricing.Money(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
}

func discountTotal(o *models.Order) float64 {
	return pricing.Float(pricing.Money(o.CategoryDiscount).Add(pricing.Money(o.DiscountAmount)))
}
