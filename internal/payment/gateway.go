// Package payment settles order payments. Only offline methods are supported:
// cash is collected on delivery and card payments are taken at the counter
// terminal and recorded as paid.
package payment

import (
	"context"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

const (
	MethodCash = "cash"
	MethodCard = "card"
)

var ErrUnsupportedMethod = apperr.BadRequest("unsupported payment method")

// Charge describes one payment request.
type Charge struct {
	OrderRef string
	UserID   string
	Method   string
	Amount   float64
}

// Gateway settles a charge and reports the resulting payment status.
type Gateway interface {
	Charge(ctx context.Context, charge Charge) (models.PaymentStatus, error)
}

type OfflineGateway struct{}

func NewOfflineGateway() OfflineGateway {
	return OfflineGateway{}
}

func (OfflineGateway) Charge(_ context.Context, charge Charge) (models.PaymentStatus, error) {
	switch NormalizeMethod(charge.Method) {
	case MethodCash:
		return models.PaymentPending, nil
	case MethodCard:
		return models.PaymentPaid, nil
	default:
		return models.PaymentFailed, ErrUnsupportedMethod
	}
}

func NormalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}

// ValidMethod reports whether method is accepted at checkout.
func ValidMethod(method string) bool {
	switch NormalizeMethod(method) {
	case MethodCash, MethodCard:
		return true
	}
	return false
}
