package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront/internal/apperr"
	"storefront/internal/config"
	"storefront/internal/store"
)

var errInvalidPage = apperr.BadRequest("page must be a positive integer")

// parsePage reads the 1-based page query parameter. The page size is fixed.
func parsePage(c *gin.Context) (store.Page, error) {
	page := int64(1)
	if raw := strings.TrimSpace(c.Query("page")); raw != "" {
		p, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || p < 1 {
			return store.Page{}, errInvalidPage
		}
		page = p
	}
	return store.Page{Number: page, Size: config.PageSize}, nil
}

func pageCount(total, size int64) int64 {
	if size <= 0 || total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func paged[T any](items []T, page store.Page, total int64) gin.H {
	if items == nil {
		items = []T{}
	}
	return gin.H{
		"items": items,
		"page":  page.Number,
		"pages": pageCount(total, page.Size),
		"total": total,
	}
}
