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

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(CollOrders)}
}

func (r *OrderRepository) Insert(ctx context.Context, o *models.Order) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, o)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		o.ID = id
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var o models.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

// List pages through orders, optionally scoped to one user or status.
func (r *OrderRepository) List(ctx context.Context, userID *primitive.ObjectID, status models.OrderStatus, page Page) ([]models.Order, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{}
	if userID != nil {
		filter["userId"] = *userID
	}
	if status != "" {
		filter["status"] = status
	}

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}
	orders, err := r.find(ctx, filter, page.FindOptions(newestFirst))
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListByUser returns every non-cancelled order of the user.
func (r *OrderRepository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	filter := bson.M{"userId": userID, "status": bson.M{"$ne": models.OrderCancelled}}
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find orders")
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return orders, nil
}

// AppendStatus sets the status and appends change to the history. When from
// is non-empty the update only applies while the current status is one of
// from; otherwise ErrNotMatched is returned.
func (r *OrderRepository) AppendStatus(ctx context.Context, id primitive.ObjectID, change models.StatusChange, from ...models.OrderStatus) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter, update := statusUpdate(id, change, from)
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrap(err, "update order status")
	}
	if res.MatchedCount == 0 {
		return ErrNotMatched
	}
	return nil
}

func statusUpdate(id primitive.ObjectID, change models.StatusChange, from []models.OrderStatus) (bson.M, bson.M) {
	filter := bson.M{"_id": id}
	if len(from) > 0 {
		filter["status"] = bson.M{"$in": from}
	}
	update := bson.M{
		"$set":  bson.M{"status": change.Status, "updatedAt": time.Now()},
		"$push": bson.M{"statusHistory": change},
	}
	return filter, update
}

func (r *OrderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete order")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
