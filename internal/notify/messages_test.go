package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID: primitive.NewObjectID(),
		Items: []models.OrderItem{
			{Name: "Runner", Size: "42", Price: 59.9, Quantity: 2},
			{Name: "Socks", Price: 5, Quantity: 1},
		},
		Subtotal:         124.8,
		CategoryDiscount: 12,
		DiscountCode:     "SAVE10",
		DiscountAmount:   11.28,
		TotalAmount:      101.52,
		ShippingAddress:  models.Address{FullName: "Ada Lovelace", Line: "1 Main St", City: "London", Country: "UK"},
		PaymentMethod:    "cash",
		PaymentStatus:    models.PaymentPending,
	}
}

func TestOrderPlacedMessage(t *testing.T) {
	order := sampleOrder()

	m, err := OrderPlaced("admin@example.com", order)
	require.NoError(t, err)

	assert.Equal(t, KindOrderPlaced, m.Kind)
	assert.Equal(t, []string{"admin@example.com"}, m.To)
	assert.Contains(t, m.Subject, order.ID.Hex())
	assert.Contains(t, m.Body, "- Runner [42] x2 @ 59.90")
	assert.Contains(t, m.Body, "- Socks x1 @ 5.00")
	assert.Contains(t, m.Body, "101.52")
	assert.Contains(t, m.Body, "(SAVE10)")
}

func TestStatusChangedMessage(t *testing.T) {
	order := sampleOrder()
	change := models.StatusChange{Status: models.OrderShipped, Timestamp: time.Now(), Note: "tracking 123"}

	m, err := StatusChanged("ada@example.com", "Ada", order, change)
	require.NoError(t, err)

	assert.Equal(t, "Your order is shipped", m.Subject)
	assert.True(t, strings.HasPrefix(m.Body, "Hello Ada,"))
	assert.Contains(t, m.Body, "Note: tracking 123")
}

func TestRecipientlessMessage(t *testing.T) {
	m, err := OrderPlaced("  ", sampleOrder())
	require.NoError(t, err)
	assert.Empty(t, m.To)
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var (
		gotAddr string
		gotTo   []string
		gotRaw  string
	)
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, From: "shop@example.com"})
	m.send = func(e *email.Email, addr string, _ smtp.Auth) error {
		raw, err := e.Bytes()
		if err != nil {
			return err
		}
		gotAddr, gotTo, gotRaw = addr, e.To, string(raw)
		return nil
	}

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Body: "line1\nline2"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"a@example.com"}, gotTo)
	assert.Contains(t, gotRaw, "Subject: Hi\r\n")
	assert.Contains(t, gotRaw, "shop@example.com")
	assert.Contains(t, gotRaw, "line1")
	assert.Contains(t, gotRaw, "line2")
}

func TestSMTPMailerEncodesSubject(t *testing.T) {
	var gotRaw string
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "shop@example.com"})
	m.send = func(e *email.Email, _ string, _ smtp.Auth) error {
		raw, err := e.Bytes()
		gotRaw = string(raw)
		return err
	}

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Siparişiniz alındı", Body: "ok"})
	require.NoError(t, err)
	assert.NotContains(t, gotRaw, "Siparişiniz")
	assert.Contains(t, gotRaw, "=?UTF-8?")
}

func TestSMTPMailerHonoursContext(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "shop@example.com"})
	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("relay down") }

	err := m.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "Hi", Body: "ok"})
	require.ErrorContains(t, err, "relay down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.Send(ctx, Message{To: []string{"a@example.com"}, Subject: "Hi", Body: "ok"})
	require.ErrorIs(t, err, context.Canceled)
}
