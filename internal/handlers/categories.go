package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

var (
	errCategoryExists = apperr.Conflict("category already exists")
	errCategoryInUse  = apperr.Conflict("category still has products")
	errNoChanges      = apperr.BadRequest("no fields to update")
)

type CategoryStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.Category, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Category, error)
	Insert(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, id primitive.ObjectID, set bson.M) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProductCounter interface {
	CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error)
}

type CategoryCreateRequest struct {
	Name     string `json:"name" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

type CategoryUpdateRequest struct {
	Name     *string `json:"name"`
	IsActive *bool   `json:"isActive"`
}

// ListCategories returns active categories, or every category for the admin
// listing.
func ListCategories(categories CategoryStore, activeOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := categories.List(c.Request.Context(), activeOnly)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func CreateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CategoryCreateRequest
		if !bindJSON(c, &req) {
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			respondWithError(c, errNameRequired)
			return
		}

		isActive := true
		if req.IsActive != nil {
			isActive = *req.IsActive
		}
		category := &models.Category{
			Name:      name,
			Slug:      slugify(name),
			IsActive:  isActive,
			CreatedAt: time.Now(),
		}
		if err := categories.Insert(c.Request.Context(), category); err != nil {
			respondWithError(c, mapDuplicate(err, errCategoryExists))
			return
		}

		lg := logger.Component(c.Request.Context(), "catalog")
		lg.Info().Str("category_id", category.ID.Hex()).Str("name", name).Msg("category created")
		c.JSON(http.StatusCreated, category)
	}
}

func UpdateCategory(categories CategoryStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		var req CategoryUpdateRequest
		if !bindJSON(c, &req) {
			return
		}

		set := bson.M{}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				respondWithError(c, errNameRequired)
				return
			}
			set["name"] = name
			set["slug"] = slugify(name)
		}
		if req.IsActive != nil {
			set["isActive"] = *req.IsActive
		}
		if len(set) == 0 {
			respondWithError(c, errNoChanges)
			return
		}

		if err := categories.Update(ctx, id, set); err != nil {
			respondWithError(c, mapDuplicate(mapNotFound(err, errCategoryNotFound), errCategoryExists))
			return
		}
		updated, err := categories.FindByID(ctx, id)
		if err != nil {
			respondWithError(c, mapNotFound(err, errCategoryNotFound))
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteCategory refuses to remove a category that products still reference.
func DeleteCategory(categories CategoryStore, products ProductCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		count, err := products.CountByCategory(ctx, id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		if count > 0 {
			respondWithError(c, errCategoryInUse.WithDetails(gin.H{"products": count}))
			return
		}
		if err := categories.Delete(ctx, id); err != nil {
			respondWithError(c, mapNotFound(err, errCategoryNotFound))
			return
		}

		lg := logger.Component(ctx, "catalog")
		lg.Info().Str("category_id", id.Hex()).Msg("category deleted")
		c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
	}
}

func mapDuplicate(err, duplicate error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return duplicate
	}
	return err
}
