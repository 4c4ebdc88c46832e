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

type CartRepository struct {
	coll *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(CollCarts)}
}

// FindByUser returns the user's cart, or an empty unsaved cart.
func (r *CartRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) (*models.Cart, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var c models.Cart
	err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find cart")
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return &c, nil
}

// Save upserts the cart keyed by its owner.
func (r *CartRepository) Save(ctx context.Context, c *models.Cart) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	c.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"items":       c.Items,
		"totalAmount": c.TotalAmount,
		"updatedAt":   c.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved models.Cart
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"userId": c.UserID}, update, opts).Decode(&saved); err != nil {
		return errors.Wrap(err, "save cart")
	}
	c.ID = saved.ID
	return nil
}
