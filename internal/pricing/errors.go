package pricing

import "storefront/internal/apperr"

var (
	ErrDiscountNotFound    = apperr.NotFound("discount code not found or expired")
	ErrDiscountAlreadyUsed = apperr.BadRequest("discount code already used")
	ErrUsageLimitExceeded  = apperr.BadRequest("discount usage limit exceeded")
	ErrMinimumNotMet       = apperr.BadRequest("minimum purchase amount not met")
	ErrInvalidSubtotal     = apperr.BadRequest("totalAmount must be greater than zero")
)
