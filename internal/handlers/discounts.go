package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/metrics"
	"storefront/internal/models"
	"storefront/internal/pricing"
	"storefront/internal/store"
)

var (
	errDiscountNotFound     = apperr.NotFound("discount not found")
	errDiscountCodeTaken    = apperr.Conflict("discount code already exists")
	errDiscountType         = apperr.BadRequest("type must be percentage or fixed")
	errDiscountValue        = apperr.BadRequest("value must be greater than 0")
	errDiscountPercentage   = apperr.BadRequest("percentage value must not exceed 100")
	errDiscountWindow       = apperr.BadRequest("endDate must be after startDate")
	errDiscountCodeRequired = apperr.BadRequest("code is required for non category discounts")
	errDiscountCategory     = apperr.BadRequest("categoryId is required for category discounts")
	errDiscountMaxAmount    = apperr.BadRequest("maxDiscountAmount must be greater than 0")
	errDiscountUsageLimit   = apperr.BadRequest("usageLimit must be greater than 0")
	errDiscountMinPurchase  = apperr.BadRequest("minPurchaseAmount must not be negative")
)

// DiscountEngine validates codes and evaluates category discounts.
type DiscountEngine interface {
	Validate(ctx context.Context, code string, userID primitive.ObjectID, subtotal decimal.Decimal) (*pricing.CodeResult, error)
	ApplyCategoryDiscounts(ctx context.Context, lines []pricing.Line) (*pricing.CategoryResult, error)
}

type DiscountStore interface {
	List(ctx context.Context, page store.Page) ([]models.Discount, int64, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Discount, error)
	Insert(ctx context.Context, d *models.Discount) error
	Replace(ctx context.Context, d *models.Discount) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type validateDiscountRequest struct {
	Code        string  `json:"code" binding:"required"`
	TotalAmount float64 `json:"totalAmount" binding:"gt=0"`
}

// categoryLineRequest takes unitPrice; price is accepted for older clients.
type categoryLineRequest struct {
	ProductID string   `json:"productId" binding:"required"`
	UnitPrice *float64 `json:"unitPrice" binding:"omitempty,gte=0"`
	Price     float64  `json:"price" binding:"gte=0"`
	Quantity  int      `json:"quantity" binding:"gt=0"`
}

func (r categoryLineRequest) unitPrice() float64 {
	if r.UnitPrice != nil {
		return *r.UnitPrice
	}
	return r.Price
}

type applyCategoryRequest struct {
	Items []categoryLineRequest `json:"items" binding:"required,dive"`
}

// discountRequest is the admin create and update body. autoApply defaults to
// true for category discounts.
type discountRequest struct {
	Name               string    `json:"name" binding:"required"`
	Code               string    `json:"code"`
	Type               string    `json:"type" binding:"required"`
	Value              float64   `json:"value"`
	StartDate          time.Time `json:"startDate" binding:"required"`
	EndDate            time.Time `json:"endDate" binding:"required"`
	MinPurchaseAmount  float64   `json:"minPurchaseAmount"`
	MaxDiscountAmount  *float64  `json:"maxDiscountAmount"`
	UsageLimit         *int      `json:"usageLimit"`
	IsActive           *bool     `json:"isActive"`
	IsCategoryDiscount bool      `json:"isCategoryDiscount"`
	CategoryID         string    `json:"categoryId"`
	AutoApply          *bool     `json:"autoApply"`
}

// ValidateDiscount checks a code against totalAmount and records the
// redemption for the caller.
func ValidateDiscount(engine DiscountEngine, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		var req validateDiscountRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := engine.Validate(c.Request.Context(), req.Code, id.UserID, pricing.Money(req.TotalAmount))
		if err != nil {
			m.Redemption("rejected")
			respondWithError(c, err)
			return
		}
		m.Redemption("redeemed")
		c.JSON(http.StatusOK, gin.H{
			"discount":       res.Discount,
			"discountAmount": pricing.Float(res.DiscountAmount),
			"finalAmount":    pricing.Float(res.FinalAmount),
		})
	}
}

// ApplyCategoryDiscounts previews the automatic category discounts for a
// set of lines. Lines for stored products are priced at the product's
// effective price; the client's unitPrice only covers unknown products.
// Nothing is recorded.
func ApplyCategoryDiscounts(engine DiscountEngine, products ProductBatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applyCategoryRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		lines := make([]pricing.Line, 0, len(req.Items))
		ids := make([]primitive.ObjectID, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := parseObjectID(item.ProductID, "productId")
			if err != nil {
				respondWithError(c, err)
				return
			}
			ids = append(ids, productID)
			lines = append(lines, pricing.Line{
				ProductID: productID,
				Quantity:  item.Quantity,
				UnitPrice: pricing.Money(item.unitPrice()),
			})
		}

		stored, err := products.FindByIDs(ctx, ids)
		if err != nil {
			respondWithError(c, err)
			return
		}
		known := make(map[primitive.ObjectID]*models.Product, len(stored))
		for i := range stored {
			known[stored[i].ID] = &stored[i]
		}
		for i, l := range lines {
			if p, ok := known[l.ProductID]; ok {
				lines[i].UnitPrice = pricing.Money(p.EffectivePrice())
				lines[i].CategoryID = p.CategoryID
			}
		}

		res, err := engine.ApplyCategoryDiscounts(ctx, lines)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"totalDiscount":    pricing.Float(res.Total),
			"appliedDiscounts": res.Applied,
		})
	}
}

func ListDiscounts(discounts DiscountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		items, total, err := discounts.List(c.Request.Context(), page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}

func CreateDiscount(discounts DiscountStore, categories CategoryFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req discountRequest
		if !bindJSON(c, &req) {
			return
		}
		d := &models.Discount{IsActive: true, CreatedAt: time.Now()}
		if err := req.applyTo(ctx, categories, d); err != nil {
			respondWithError(c, err)
			return
		}
		d.UpdatedAt = d.CreatedAt
		if err := discounts.Insert(ctx, d); err != nil {
			respondWithError(c, mapDuplicate(err, errDiscountCodeTaken))
			return
		}

		lg := logger.Component(ctx, "discount")
		lg.Info().Str("discount_id", d.ID.Hex()).Str("code", d.Code).Msg("discount created")
		c.JSON(http.StatusCreated, d)
	}
}

// UpdateDiscount replaces the editable fields; usedCount is kept.
func UpdateDiscount(discounts DiscountStore, categories CategoryFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		var req discountRequest
		if !bindJSON(c, &req) {
			return
		}
		d, err := discounts.FindByID(ctx, id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errDiscountNotFound))
			return
		}
		if err := req.applyTo(ctx, categories, d); err != nil {
			respondWithError(c, err)
			return
		}
		d.UpdatedAt = time.Now()
		if err := discounts.Replace(ctx, d); err != nil {
			respondWithError(c, mapDuplicate(mapNotFound(err, errDiscountNotFound), errDiscountCodeTaken))
			return
		}
		c.JSON(http.StatusOK, d)
	}
}

// DeleteDiscount removes the discount together with its redemptions.
func DeleteDiscount(discounts DiscountStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		if err := discounts.Delete(c.Request.Context(), id); err != nil {
			respondWithError(c, mapNotFound(err, errDiscountNotFound))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "discount deleted"})
	}
}

func (r discountRequest) applyTo(ctx context.Context, categories CategoryFinder, d *models.Discount) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errNameRequired
	}
	kind := models.DiscountType(strings.ToLower(strings.TrimSpace(r.Type)))
	switch kind {
	case models.DiscountPercentage, models.DiscountFixed:
	default:
		return errDiscountType
	}
	if r.Value <= 0 {
		return errDiscountValue
	}
	if kind == models.DiscountPercentage && r.Value > 100 {
		return errDiscountPercentage
	}
	if !r.EndDate.After(r.StartDate) {
		return errDiscountWindow
	}
	if r.MinPurchaseAmount < 0 {
		return errDiscountMinPurchase
	}
	if r.MaxDiscountAmount != nil && *r.MaxDiscountAmount <= 0 {
		return errDiscountMaxAmount
	}
	if r.UsageLimit != nil && *r.UsageLimit <= 0 {
		return errDiscountUsageLimit
	}

	code := pricing.NormalizeCode(r.Code)
	var categoryID *primitive.ObjectID
	if r.IsCategoryDiscount {
		if strings.TrimSpace(r.CategoryID) == "" {
			return errDiscountCategory
		}
		id, err := resolveCategory(ctx, categories, r.CategoryID)
		if err != nil {
			return err
		}
		categoryID = &id
	} else if code == "" {
		return errDiscountCodeRequired
	}

	d.Name = name
	d.Code = code
	d.Type = kind
	d.Value = r.Value
	d.StartDate = r.StartDate
	d.EndDate = r.EndDate
	d.MinPurchaseAmount = r.MinPurchaseAmount
	d.MaxDiscountAmount = r.MaxDiscountAmount
	d.UsageLimit = r.UsageLimit
	d.IsCategoryDiscount = r.IsCategoryDiscount
	d.CategoryID = categoryID
	d.AutoApply = r.IsCategoryDiscount && (r.AutoApply == nil || *r.AutoApply)
	if r.IsActive != nil {
		d.IsActive = *r.IsActive
	}
	return nil
}
