package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
)

type InvoiceService interface {
	Generate(ctx context.Context, caller auth.Identity, orderID primitive.ObjectID) (*models.Invoice, error)
	Get(ctx context.Context, caller auth.Identity, id primitive.ObjectID) (*models.Invoice, error)
	ListMine(ctx context.Context, userID primitive.ObjectID, page store.Page) ([]models.Invoice, int64, error)
	Path(inv *models.Invoice) string
}

// GenerateInvoice issues the invoice of an order; repeated calls return the
// same invoice.
func GenerateInvoice(svc InvoiceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		inv, err := svc.Generate(c.Request.Context(), id, orderID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, inv)
	}
}

func ListMyInvoices(svc InvoiceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		items, total, err := svc.ListMine(c.Request.Context(), id.UserID, page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}

func DownloadInvoice(svc InvoiceService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		invoiceID, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		inv, err := svc.Get(c.Request.Context(), id, invoiceID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.FileAttachment(svc.Path(inv), inv.Number+".txt")
	}
}
