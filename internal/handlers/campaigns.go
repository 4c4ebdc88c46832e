package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"storefront/internal/apperr"
	"storefront/internal/logger"
	"storefront/internal/models"
)

var (
	errCampaignNotFound = apperr.NotFound("campaign not found")
	errTitleRequired    = apperr.BadRequest("title is required")
	errCampaignProducts = apperr.BadRequest("productIds must name at least one product")
)

type CampaignStore interface {
	ListRunning(ctx context.Context, now time.Time) ([]models.Campaign, error)
	Insert(ctx context.Context, c *models.Campaign) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type campaignRequest struct {
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	ProductIDs  []string  `json:"productIds" binding:"required"`
	StartDate   time.Time `json:"startDate" binding:"required"`
	EndDate     time.Time `json:"endDate" binding:"required"`
	IsActive    *bool     `json:"isActive"`
}

type campaignResponse struct {
	models.Campaign
	Products []models.Product `json:"products"`
}

// ListCampaigns returns the running campaigns with their active products.
func ListCampaigns(campaigns CampaignStore, products ProductBatch) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		running, err := campaigns.ListRunning(ctx, time.Now())
		if err != nil {
			respondWithError(c, err)
			return
		}

		var ids []primitive.ObjectID
		for _, campaign := range running {
			ids = append(ids, campaign.ProductIDs...)
		}
		found, err := products.FindByIDs(ctx, ids)
		if err != nil {
			respondWithError(c, err)
			return
		}
		byID := make(map[primitive.ObjectID]models.Product, len(found))
		for _, p := range found {
			if p.IsActive {
				byID[p.ID] = p
			}
		}

		items := make([]campaignResponse, 0, len(running))
		for _, campaign := range running {
			resp := campaignResponse{Campaign: campaign, Products: []models.Product{}}
			for _, id := range campaign.ProductIDs {
				if p, ok := byID[id]; ok {
					resp.Products = append(resp.Products, p)
				}
			}
			items = append(items, resp)
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func CreateCampaign(campaigns CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req campaignRequest
		if !bindJSON(c, &req) {
			return
		}
		title := strings.TrimSpace(req.Title)
		if title == "" {
			respondWithError(c, errTitleRequired)
			return
		}
		if !req.EndDate.After(req.StartDate) {
			respondWithError(c, errDiscountWindow)
			return
		}
		if len(req.ProductIDs) == 0 {
			respondWithError(c, errCampaignProducts)
			return
		}
		ids := make([]primitive.ObjectID, 0, len(req.ProductIDs))
		for _, raw := range req.ProductIDs {
			id, err := parseObjectID(raw, "productIds")
			if err != nil {
				respondWithError(c, err)
				return
			}
			ids = append(ids, id)
		}

		campaign := &models.Campaign{
			Title:       title,
			Description: strings.TrimSpace(req.Description),
			ProductIDs:  ids,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			IsActive:    req.IsActive == nil || *req.IsActive,
			CreatedAt:   time.Now(),
		}
		if err := campaigns.Insert(ctx, campaign); err != nil {
			respondWithError(c, err)
			return
		}
		lg := logger.Component(ctx, "campaign")
		lg.Info().Str("campaign_id", campaign.ID.Hex()).Int("products", len(ids)).Msg("campaign created")
		c.JSON(http.StatusCreated, campaign)
	}
}

func DeleteCampaign(campaigns CampaignStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := objectIDParam(c, "id")
		if !ok {
			return
		}
		if err := campaigns.Delete(c.Request.Context(), id); err != nil {
			respondWithError(c, mapNotFound(err, errCampaignNotFound))
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "campaign deleted"})
	}
}
