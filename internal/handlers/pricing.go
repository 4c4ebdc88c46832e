package handlers

import (
	"storefront/internal/pricing"
)

type quoteResponse struct {
	Subtotal         float64                   `json:"subtotal"`
	CategoryDiscount float64                   `json:"categoryDiscount"`
	AppliedDiscounts []pricing.AppliedDiscount `json:"appliedDiscounts"`
	DiscountCode     string                    `json:"discountCode,omitempty"`
	DiscountAmount   float64                   `json:"discountAmount"`
	TotalAmount      float64                   `json:"totalAmount"`
}

func newQuoteResponse(q *pricing.Quote) quoteResponse {
	resp := quoteResponse{
		Subtotal:         pricing.Float(q.Subtotal),
		CategoryDiscount: pricing.Float(q.CategoryDiscount),
		AppliedDiscounts: q.Applied,
		DiscountAmount:   pricing.Float(q.CodeDiscount()),
		TotalAmount:      pricing.Float(q.Total),
	}
	if resp.AppliedDiscounts == nil {
		resp.AppliedDiscounts = []pricing.AppliedDiscount{}
	}
	if q.Code != nil && q.Code.Discount != nil {
		resp.DiscountCode = q.Code.Discount.Code
	}
	return resp
}
