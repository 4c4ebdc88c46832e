// Package metrics exposes the Prometheus collectors of the storefront.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the application collectors. A nil *Metrics is a no-op.
type Metrics struct {
	requests      *prometheus.HistogramVec
	orders        *prometheus.CounterVec
	stockConflict prometheus.Counter
	redemptions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

// New registers the collectors on reg. A nil registerer yields a no-op instance.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orders_total",
			Help: "Order lifecycle events.",
		}, []string{"event"}),
		stockConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stock_conflicts_total",
			Help: "Conditional stock updates that matched no document.",
		}),
		redemptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "discount_redemptions_total",
			Help: "Discount code redemption attempts by result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Outbound notifications by result.",
		}, []string{"result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_rate_limited_total",
			Help: "Auth requests rejected by the rate limiter.",
		}),
	}
	reg.MustRegister(m.requests, m.orders, m.stockConflict, m.redemptions, m.notifications, m.rateLimited)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(duration.Seconds())
}

// OrderEvent counts an order lifecycle event such as "created" or "cancelled".
func (m *Metrics) OrderEvent(event string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(event)).Inc()
}

func (m *Metrics) StockConflict() {
	if m == nil || m.stockConflict == nil {
		return
	}
	m.stockConflict.Inc()
}

func (m *Metrics) Redemption(result string) {
	if m == nil || m.redemptions == nil {
		return
	}
	m.redemptions.WithLabelValues(normalizeLabel(result)).Inc()
}

// Notification counts a notification outcome: sent, failed or dropped.
func (m *Metrics) Notification(result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil || m.rateLimited == nil {
		return
	}
	m.rateLimited.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
