package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/store"
)

var errAddressNotFound = apperr.NotFound("address not found")

type AddressStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	SetAddresses(ctx context.Context, userID primitive.ObjectID, addresses []models.Address) error
}

type UserLister interface {
	List(ctx context.Context, page store.Page) ([]models.User, int64, error)
}

type addressRequest struct {
	Title      string `json:"title" binding:"required"`
	FullName   string `json:"fullName"`
	Phone      string `json:"phone"`
	Line       string `json:"line" binding:"required"`
	City       string `json:"city" binding:"required"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	IsDefault  bool   `json:"isDefault"`
}

func (r addressRequest) apply(addr *models.Address) {
	addr.Title = strings.TrimSpace(r.Title)
	addr.FullName = strings.TrimSpace(r.FullName)
	addr.Phone = strings.TrimSpace(r.Phone)
	addr.Line = strings.TrimSpace(r.Line)
	addr.City = strings.TrimSpace(r.City)
	addr.PostalCode = strings.TrimSpace(r.PostalCode)
	addr.Country = strings.TrimSpace(r.Country)
	addr.IsDefault = r.IsDefault
}

func ListAddresses(users AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identity(c)
		if !ok {
			return
		}
		user, err := users.FindByID(c.Request.Context(), id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": user.Addresses})
	}
}

// CreateAddress appends an address. The first address, or one sent with
// isDefault, becomes the only default.
func CreateAddress(users AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		var req addressRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.FindByID(ctx, id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}

		address := models.Address{ID: uuid.NewString()}
		req.apply(&address)
		if address.FullName == "" {
			address.FullName = user.Name
		}
		if len(user.Addresses) == 0 {
			address.IsDefault = true
		}
		addresses := append(user.Addresses, address)
		if address.IsDefault {
			keepOnlyDefault(addresses, address.ID)
		}

		if err := users.SetAddresses(ctx, id.UserID, addresses); err != nil {
			respondWithError(c, err)
			return
		}
		lg := logger.Component(ctx, "user")
		lg.Info().Str("address_id", address.ID).Msg("address created")
		c.JSON(http.StatusCreated, gin.H{"address": address})
	}
}

func UpdateAddress(users AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		var req addressRequest
		if !bindJSON(c, &req) {
			return
		}
		user, err := users.FindByID(ctx, id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		index := addressIndex(user.Addresses, addressID)
		if index < 0 {
			respondWithError(c, errAddressNotFound)
			return
		}
		wasDefault := user.Addresses[index].IsDefault
		req.apply(&user.Addresses[index])
		if user.Addresses[index].FullName == "" {
			user.Addresses[index].FullName = user.Name
		}
		// The default can move to another address but not disappear.
		if wasDefault && !req.IsDefault {
			user.Addresses[index].IsDefault = true
		}
		if user.Addresses[index].IsDefault {
			keepOnlyDefault(user.Addresses, addressID)
		}

		if err := users.SetAddresses(ctx, id.UserID, user.Addresses); err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"address": user.Addresses[index]})
	}
}

// DeleteAddress removes an address; when it was the default the first
// remaining address takes over.
func DeleteAddress(users AddressStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, ok := identity(c)
		if !ok {
			return
		}
		user, err := users.FindByID(ctx, id.UserID)
		if err != nil {
			respondWithError(c, mapNotFound(err, errNoIdentity))
			return
		}

		addressID := strings.TrimSpace(c.Param("id"))
		index := addressIndex(user.Addresses, addressID)
		if index < 0 {
			respondWithError(c, errAddressNotFound)
			return
		}
		removed := user.Addresses[index]
		remaining := append(user.Addresses[:index:index], user.Addresses[index+1:]...)
		if removed.IsDefault && len(remaining) > 0 {
			remaining[0].IsDefault = true
		}

		if err := users.SetAddresses(ctx, id.UserID, remaining); err != nil {
			respondWithError(c, err)
			return
		}
		lg := logger.Component(ctx, "user")
		lg.Info().Str("address_id", addressID).Msg("address deleted")
		c.JSON(http.StatusOK, gin.H{"message": "address deleted"})
	}
}

func addressIndex(addresses []models.Address, id string) int {
	for i, addr := range addresses {
		if addr.ID == id {
			return i
		}
	}
	return -1
}

func keepOnlyDefault(addresses []models.Address, id string) {
	for i := range addresses {
		addresses[i].IsDefault = addresses[i].ID == id
	}
}

// ListUsers is the paginated admin user listing.
func ListUsers(users UserLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := parsePage(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		items, total, err := users.List(c.Request.Context(), page)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, paged(items, page, total))
	}
}
