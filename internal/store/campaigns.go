package store

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type CampaignRepository struct {
	coll *mongo.Collection
}

func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{coll: db.Collection(CollCampaigns)}
}

// ListRunning returns the active campaigns whose window contains now.
func (r *CampaignRepository) ListRunning(ctx context.Context, now time.Time) ([]models.Campaign, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"isActive":  true,
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gte": now},
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find campaigns")
	}
	defer cursor.Close(ctx)

	campaigns := make([]models.Campaign, 0)
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, errors.Wrap(err, "decode campaigns")
	}
	return campaigns, nil
}

func (r *CampaignRepository) Insert(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, c)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = id
	}
	return nil
}

func (r *CampaignRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete campaign")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
