package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/models"
)

func TestCreateCategory(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/categories", gin.H{"name": " Kadın Ayakkabı "}, s.admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "Kadın Ayakkabı", body["name"])
	assert.Equal(t, "kadin-ayakkabi", body["slug"])
	assert.Equal(t, true, body["isActive"])

	w = s.do(t, http.MethodPost, "/api/categories", gin.H{"name": "Kadın Ayakkabı"}, s.admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/api/categories", gin.H{"name": "   "}, s.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/categories", gin.H{"name": "Hats"}, s.customer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListCategoriesHidesInactive(t *testing.T) {
	s := newTestServer(t)
	s.categories.add(models.Category{Name: "Shoes", IsActive: true})
	s.categories.add(models.Category{Name: "Archive", IsActive: false})

	w := s.do(t, http.MethodGet, "/api/categories", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["items"], 1)

	w = s.do(t, http.MethodGet, "/api/admin/categories", nil, s.admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody(t, w)["items"], 2)
}

func TestUpdateCategory(t *testing.T) {
	s := newTestServer(t)
	c := s.categories.add(models.Category{Name: "Shoes", Slug: "shoes", IsActive: true})

	w := s.do(t, http.MethodPut, "/api/categories/"+c.ID.Hex(), gin.H{"name": "Spor Çanta", "isActive": false}, s.admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "spor-canta", body["slug"])
	assert.Equal(t, false, body["isActive"])

	w = s.do(t, http.MethodPut, "/api/categories/"+c.ID.Hex(), gin.H{}, s.admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/categories/"+primitive.NewObjectID().Hex(), gin.H{"name": "x"}, s.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteCategoryInUse(t *testing.T) {
	s := newTestServer(t)
	c := s.categories.add(models.Category{Name: "Shoes", IsActive: true})
	p := &models.Product{Name: "Runner", Price: 10, IsActive: true, CategoryID: c.ID}
	s.products.add(p)

	w := s.do(t, http.MethodDelete, "/api/categories/"+c.ID.Hex(), nil, s.admin)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, map[string]any{"products": float64(1)}, decodeBody(t, w)["error"])

	s.products.items[p.ID].IsDeleted = true
	w = s.do(t, http.MethodDelete, "/api/categories/"+c.ID.Hex(), nil, s.admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodDelete, "/api/categories/"+c.ID.Hex(), nil, s.admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Kadın Ayakkabı":     "kadin-ayakkabi",
		"  Erkek  Giyim  ":   "erkek-giyim",
		"İç Giyim & Çorap":   "ic-giyim-corap",
		"Straße":             "strasse",
		"---":                "",
		"Café Crème 2024!":   "cafe-creme-2024",
		"Şapka/Şal":          "sapka-sal",
		"already-slugged-42": "already-slugged-42",
	}
	for in, want := range tests {
		assert.Equal(t, want, slugify(in), in)
	}
}
