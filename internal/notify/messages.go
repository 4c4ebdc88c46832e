package notify

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/go-faster/errors"

	"storefront/internal/models"
)

const (
	KindOrderPlaced   = "order_placed"
	KindStatusChanged = "order_status_changed"
)

var funcs = template.FuncMap{
	"money": func(v float64) string { return formatMoney(v) },
	"hex":   func(o *models.Order) string { return o.ID.Hex() },
}

var orderPlacedTmpl = template.Must(template.New("orderPlaced").Funcs(funcs).Parse(
	`A new order has been placed.

Order:    {{hex .Order}}
Customer: {{.Order.ShippingAddress.FullName}}
Payment:  {{.Order.PaymentMethod}} ({{.Order.PaymentStatus}})

{{range .Order.Items}}- {{.Name}}{{if .Size}} [{{.Size}}]{{end}} x{{.Quantity}} @ {{money .Price}}
{{end}}
Subtotal:          {{money .Order.Subtotal}}
Category discount: {{money .Order.CategoryDiscount}}
Code discount:     {{money .Order.DiscountAmount}}{{if .Order.DiscountCode}} ({{.Order.DiscountCode}}){{end}}
Total:             {{money .Order.TotalAmount}}

Ship to: {{.Order.ShippingAddress.Line}}, {{.Order.ShippingAddress.City}} {{.Order.ShippingAddress.PostalCode}}, {{.Order.ShippingAddress.Country}}
`))

var statusChangedTmpl = template.Must(template.New("statusChanged").Funcs(funcs).Parse(
	`Hello {{.Name}},

your order {{hex .Order}} is now {{.Change.Status}}.
{{if .Change.Note}}
Note: {{.Change.Note}}
{{end}}
Total: {{money .Order.TotalAmount}}
`))

// OrderPlaced builds the admin notification for a new order.
func OrderPlaced(to string, order *models.Order) (Message, error) {
	body, err := render(orderPlacedTmpl, map[string]any{"Order": order})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:    KindOrderPlaced,
		To:      recipients(to),
		Subject: "New order " + order.ID.Hex(),
		Body:    body,
	}, nil
}

// StatusChanged builds the customer notification for a status transition.
func StatusChanged(to, name string, order *models.Order, change models.StatusChange) (Message, error) {
	body, err := render(statusChangedTmpl, map[string]any{
		"Name":   name,
		"Order":  order,
		"Change": change,
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		Kind:    KindStatusChanged,
		To:      recipients(to),
		Subject: "Your order is " + string(change.Status),
		Body:    body,
	}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render %s", tmpl.Name())
	}
	return buf.String(), nil
}

func recipients(to string) []string {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil
	}
	return []string{to}
}
