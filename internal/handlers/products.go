package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/inventory"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

var (
	errProductNotFound   = apperr.NotFound("product not found")
	errCategoryNotFound  = apperr.NotFound("category not found")
	errNameRequired      = apperr.BadRequest("name is required")
	errPricePositive     = apperr.BadRequest("price must be greater than 0")
	errStockNegative     = apperr.BadRequest("stock must not be negative")
	errStockFromVariants = apperr.BadRequest("stock is derived from variants for sized products")
)

type ProductStore interface {
	List(ctx context.Context, f store.ProductFilter, page store.Page) ([]models.Product, int64, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Insert(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, set, unset bson.M) error
	SoftDelete(ctx context.Context, id primitive.ObjectID) error
}

type CategoryFinder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
}

type BestSellerSource interface {
	BestSellers(ctx context.Context, limit int) ([]models.Product, error)
}

type variantRequest struct {
	Size  string `json:"size" binding:"required"`
	Stock int    `json:"stock" binding:"gte=0"`
}

type ProductUpdateRequest struct {
	Name        *string           `json:"name"`
	Price       *float64          `json:"price"`
	SaleEnabled *bool             `json:"saleEnabled"`
	SalePrice   *float64          `json:"salePrice"`
	CategoryID  *string           `json:"categoryId"`
	Description *string           `json:"description"`
	Brand       *string           `json:"brand"`
	Stock       *int              `json:"stock"`
	Variants    *[]variantRequest `json:"variants" binding:"omitempty,dive"`
	IsActive    *bool             `json:"isActive"`
}

// productPatch is a partial product change from either a form or JSON body.
type productPatch struct {
	Name        *string
	Price       *float64
	SaleEnabled *bool
	SalePrice   *float64
	CategoryID  *string
	Description *string
	Brand       *string
	Stock       *int
	Variants    *[]models.Variant
	IsActive    *bool
	ImagePath   *string
}

func patchFromForm(in MultipartProductInput) productPatch {
	var p productPatch
	if in.NameSet {
		p.Name = &in.Name
	}
	if in.PriceSet {
		p.Price = &in.Price
	}
	if in.SaleEnabledSet {
		p.SaleEnabled = &in.SaleEnabled
	}
	if in.SalePriceSet {
		p.SalePrice = &in.SalePrice
	}
	if in.CategoryIDSet {
		p.CategoryID = &in.CategoryID
	}
	if in.DescriptionSet {
		p.Description = &in.Description
	}
	if in.BrandSet {
		p.Brand = &in.Brand
	}
	if in.StockSet {
		p.Stock = &in.Stock
	}
	if in.VariantsSet {
		p.Variants = &in.Variants
	}
	if in.IsActiveSet {
		p.IsActive = &in.IsActive
	}
	return p
}

func patchFromJSON(req ProductUpdateRequest) (productPatch, error) {
	p := productPatch{
		Name:        req.Name,
		Price:       req.Price,
		SaleEnabled: req.SaleEnabled,
		SalePrice:   req.SalePrice,
		CategoryID:  req.CategoryID,
		Description: req.Description,
		Brand:       req.Brand,
		Stock:       req.Stock,
		IsActive:    req.IsActive,
	}
	if req.Variants != nil {
		raw := make([]string, 0, len(*req.Variants))
		for _, v := range *req.Variants {
			raw = append(raw, v.Size+":"+strconv.Itoa(v.Stock))
		}
		variants, err := parseVariants(raw)
		if err != nil {
			return productPatch{}, err
		}
		p.Variants = &variants
	}
	return p, nil
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/")
}

// ListProducts serves the catalog filtered by ?category, ?search and ?page.
// The admin listing includes inactive products.
func ListProducts(products ProductStore, includeInactive bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		filter := store.ProductFilter{Search: c.Query("search"), ActiveOnly: !includeInactive, IncludeOff: includeInactive}
		if raw := strings.TrimSpace(c.Query("category")); raw != "" {
			categoryID, err := parseObjectID(raw, "category")
			if err != nil {
				respondWithError(c, err)
				return
			}
			filter.CategoryID = &categoryID
		}

		items, total, err := products.List(c.Request.Context(), filter, page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}

func GetProduct(products ProductStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		p, err := products.FindByID(c.Request.Context(), id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}
		if !p.IsActive {
			respondWithError(c, errProductNotFound)
			return
		}
		p.Normalize()
		c.JSON(http.StatusOK, p)
	}
}

// BestSellers serves ?limit top selling products.
func BestSellers(source BestSellerSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		items, err := source.BestSellers(c.Request.Context(), limit)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// CreateProduct accepts a multipart form with an optional image file.
func CreateProduct(products ProductStore, categories CategoryFinder, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lg := logger.Component(ctx, "catalog")

		input, err := parseMultipartProductRequest(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if !input.NameSet || input.Name == "" {
			respondWithError(c, errNameRequired)
			return
		}
		if !input.PriceSet || input.Price <= 0 {
			respondWithError(c, errPricePositive)
			return
		}
		if input.Stock < 0 {
			respondWithError(c, errStockNegative)
			return
		}
		categoryID, err := resolveCategory(ctx, categories, input.CategoryID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if err := validateSaleFields(input.Price, input.SaleEnabled, input.SalePrice, input.SalePriceSet); err != nil {
			respondWithError(c, err)
			return
		}

		isActive := true
		if input.IsActiveSet {
			isActive = input.IsActive
		}
		now := time.Now()
		p := &models.Product{
			Name:        input.Name,
			Description: input.Description,
			Brand:       input.Brand,
			Price:       input.Price,
			SaleEnabled: input.SaleEnabled,
			SalePrice:   input.SalePrice,
			Stock:       input.Stock,
			Variants:    input.Variants,
			CategoryID:  categoryID,
			IsActive:    isActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if !p.SaleEnabled {
			p.SalePrice = 0
		}
		if p.HasVariants() {
			p.Stock = models.SumVariantStock(p.Variants)
		}

		if input.Image != nil {
			if p.ImagePath, err = saveImage(uploadDir, input.Image); err != nil {
				respondWithError(c, err)
				return
			}
		}

		if err := products.Insert(ctx, p); err != nil {
			if p.ImagePath != "" {
				if rmErr := safeDeleteUpload(uploadDir, p.ImagePath); rmErr != nil {
					lg.Warn().Err(rmErr).Str("path", p.ImagePath).Msg("orphan image not removed")
				}
			}
			respondWithError(c, err)
			return
		}

		lg.Info().Str("product_id", p.ID.Hex()).Str("name", p.Name).Msg("product created")
		p.Normalize()
		c.JSON(http.StatusCreated, p)
	}
}

// UpdateProduct accepts a multipart form or a JSON body with the fields to
// change. ?removeImage=true drops the current image when no new one is sent.
func UpdateProduct(products ProductStore, categories CategoryFinder, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		lg := logger.Component(ctx, "catalog")

		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		existing, err := products.FindByID(ctx, id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}

		removeImage := false
		if raw := strings.TrimSpace(c.Query("removeImage")); raw != "" {
			if removeImage, err = parseBoolValue(raw); err != nil {
				respondWithError(c, formError("removeImage", err))
				return
			}
		}

		var (
			patch productPatch
			image *multipart.FileHeader
		)
		if isMultipart(c) {
			input, err := parseMultipartProductRequest(c)
			if err != nil {
				respondWithError(c, err)
				return
			}
			patch = patchFromForm(input)
			image = input.Image
		} else {
			var req ProductUpdateRequest
			if !bindJSON(c, &req) {
				return
			}
			if patch, err = patchFromJSON(req); err != nil {
				respondWithError(c, err)
				return
			}
		}

		set, unset, err := buildProductUpdate(ctx, categories, existing, patch)
		if err != nil {
			respondWithError(c, err)
			return
		}

		if image != nil {
			path, err := saveImage(uploadDir, image)
			if err != nil {
				respondWithError(c, err)
				return
			}
			set["imagePath"] = path
		} else if removeImage {
			unset["imagePath"] = ""
		}

		if err := products.Update(ctx, id, set, unset); err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}
		if (image != nil || removeImage) && existing.ImagePath != "" {
			if err := safeDeleteUpload(uploadDir, existing.ImagePath); err != nil {
				lg.Warn().Err(err).Str("path", existing.ImagePath).Msg("previous image not removed")
			}
		}

		updated, err := products.FindByID(ctx, id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}
		lg.Info().Str("product_id", id.Hex()).Strs("fields", setKeys(set)).Msg("product updated")
		updated.Normalize()
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteProduct soft deletes a product and removes its image file.
func DeleteProduct(products ProductStore, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		existing, err := products.FindByID(ctx, id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}
		if err := products.SoftDelete(ctx, id); err != nil {
			respondWithError(c, mapNotFound(err, errProductNotFound))
			return
		}

		lg := logger.Component(ctx, "catalog")
		if err := safeDeleteUpload(uploadDir, existing.ImagePath); err != nil {
			lg.Warn().Err(err).Str("path", existing.ImagePath).Msg("product image not removed")
		}
		lg.Info().Str("product_id", id.Hex()).Msg("product deleted")
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}

func resolveCategory(ctx context.Context, categories CategoryFinder, raw string) (primitive.ObjectID, error) {
	id, err := parseObjectID(raw, "categoryId")
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := categories.FindByID(ctx, id); err != nil {
		return primitive.NilObjectID, mapNotFound(err, errCategoryNotFound)
	}
	return id, nil
}

// buildProductUpdate validates a patch against the stored product.
func buildProductUpdate(ctx context.Context, categories CategoryFinder, existing *models.Product, patch productPatch) (bson.M, bson.M, error) {
	set := bson.M{}
	unset := bson.M{}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, nil, errNameRequired
		}
		set["name"] = name
	}
	if patch.Price != nil && *patch.Price <= 0 {
		return nil, nil, errPricePositive
	}
	if patch.Description != nil {
		set["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Brand != nil {
		set["brand"] = strings.TrimSpace(*patch.Brand)
	}
	if patch.IsActive != nil {
		set["isActive"] = *patch.IsActive
	}
	if patch.CategoryID != nil {
		categoryID, err := resolveCategory(ctx, categories, *patch.CategoryID)
		if err != nil {
			return nil, nil, err
		}
		set["categoryId"] = categoryID
	}

	switch {
	case patch.Variants != nil && len(*patch.Variants) > 0:
		set["variants"] = *patch.Variants
		set["stock"] = models.SumVariantStock(*patch.Variants)
	case patch.Variants != nil:
		unset["variants"] = ""
		if patch.Stock != nil {
			if *patch.Stock < 0 {
				return nil, nil, errStockNegative
			}
			set["stock"] = *patch.Stock
		}
	case patch.Stock != nil:
		if existing.HasVariants() {
			return nil, nil, errStockFromVariants
		}
		if *patch.Stock < 0 {
			return nil, nil, errStockNegative
		}
		set["stock"] = *patch.Stock
	}

	sale, err := resolveSaleUpdate(existing.Price, existing.SaleEnabled, existing.SalePrice, saleUpdateInput{
		Price:       patch.Price,
		SaleEnabled: patch.SaleEnabled,
		SalePrice:   patch.SalePrice,
	})
	if err != nil {
		return nil, nil, err
	}
	if patch.Price != nil {
		set["price"] = sale.Price
	}
	if sale.SetSaleEnabled {
		set["saleEnabled"] = sale.SaleEnabled
	}
	if sale.SetSalePrice {
		set["salePrice"] = sale.SalePrice
	}

	return set, unset, nil
}

func setKeys(set bson.M) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return keys
}

func mapNotFound(err, notFound error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, inventory.ErrProductNotFound) {
		return notFound
	}
	return err
}
