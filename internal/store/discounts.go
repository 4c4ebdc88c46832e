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

// DiscountRepository stores discounts and their per-user redemptions.
type DiscountRepository struct {
	coll   *mongo.Collection
	usages *mongo.Collection
}

func NewDiscountRepository(db *mongo.Database) *DiscountRepository {
	return &DiscountRepository{
		coll:   db.Collection(CollDiscounts),
		usages: db.Collection(CollDiscountUsages),
	}
}

func activeWindow(now time.Time) bson.M {
	return bson.M{
		"isActive":  true,
		"startDate": bson.M{"$lte": now},
		"endDate":   bson.M{"$gte": now},
	}
}

func (r *DiscountRepository) FindActiveByCode(ctx context.Context, code string, now time.Time) (*models.Discount, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := activeWindow(now)
	filter["code"] = code

	var d models.Discount
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *DiscountRepository) ListAutoCategory(ctx context.Context, now time.Time) ([]models.Discount, error) {
	filter := activeWindow(now)
	filter["isCategoryDiscount"] = true
	filter["autoApply"] = true
	return r.find(ctx, filter, options.Find().SetSort(newestFirst))
}

func (r *DiscountRepository) List(ctx context.Context, page Page) ([]models.Discount, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, errors.Wrap(err, "count discounts")
	}
	discounts, err := r.find(ctx, bson.M{}, page.FindOptions(newestFirst))
	if err != nil {
		return nil, 0, err
	}
	return discounts, total, nil
}

func (r *DiscountRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Discount, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find discounts")
	}
	defer cursor.Close(ctx)

	discounts := make([]models.Discount, 0)
	if err := cursor.All(ctx, &discounts); err != nil {
		return nil, errors.Wrap(err, "decode discounts")
	}
	return discounts, nil
}

func (r *DiscountRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Discount, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var d models.Discount
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *DiscountRepository) Insert(ctx context.Context, d *models.Discount) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, d)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		d.ID = id
	}
	return nil
}

// Replace overwrites the discount document, keeping usedCount as stored.
func (r *DiscountRepository) Replace(ctx context.Context, d *models.Discount) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	set := bson.M{
		"name":               d.Name,
		"type":               d.Type,
		"value":              d.Value,
		"startDate":          d.StartDate,
		"endDate":            d.EndDate,
		"minPurchaseAmount":  d.MinPurchaseAmount,
		"isActive":           d.IsActive,
		"isCategoryDiscount": d.IsCategoryDiscount,
		"autoApply":          d.AutoApply,
		"updatedAt":          d.UpdatedAt,
	}
	unset := bson.M{}
	optional := map[string]interface{}{
		"code":              d.Code,
		"maxDiscountAmount": d.MaxDiscountAmount,
		"usageLimit":        d.UsageLimit,
		"categoryId":        d.CategoryID,
	}
	for field, value := range optional {
		if isEmpty(value) {
			unset[field] = ""
			continue
		}
		set[field] = value
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": d.ID}, update)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func isEmpty(v interface{}) bool {
	switch t := v.(type) {
	case string:
		return t == ""
	case *float64:
		return t == nil
	case *int:
		return t == nil
	case *primitive.ObjectID:
		return t == nil
	}
	return v == nil
}

func (r *DiscountRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete discount")
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	if _, err := r.usages.DeleteMany(ctx, bson.M{"discountId": id}); err != nil {
		return errors.Wrap(err, "delete discount usages")
	}
	return nil
}

// IncrementUsedCount bumps usedCount unless the usage limit is already reached.
// ErrNotMatched means the limit was hit.
func (r *DiscountRepository) IncrementUsedCount(ctx context.Context, discountID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter, update := usedCountUpdate(discountID)
	res, err := r.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrap(err, "increment usedCount")
	}
	if res.MatchedCount == 0 {
		return ErrNotMatched
	}
	return nil
}

// usedCountUpdate only matches while usageLimit is unset or above usedCount.
func usedCountUpdate(discountID primitive.ObjectID) (bson.M, bson.M) {
	filter := bson.M{
		"_id": discountID,
		"$or": []bson.M{
			{"usageLimit": nil},
			{"$expr": bson.M{"$lt": bson.A{"$usedCount", "$usageLimit"}}},
		},
	}
	update := bson.M{
		"$inc": bson.M{"usedCount": 1},
		"$set": bson.M{"updatedAt": time.Now()},
	}
	return filter, update
}

func (r *DiscountRepository) FindUsage(ctx context.Context, userID, discountID primitive.ObjectID) (*models.DiscountUsage, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u models.DiscountUsage
	err := r.usages.FindOne(ctx, bson.M{"userId": userID, "discountId": discountID}).Decode(&u)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// InsertUsage records a redemption. A second redemption of the same discount by
// the same user fails with ErrDuplicate.
func (r *DiscountRepository) InsertUsage(ctx context.Context, usage *models.DiscountUsage) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.usages.InsertOne(ctx, usage)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		usage.ID = id
	}
	return nil
}

func (r *DiscountRepository) DeleteUsage(ctx context.Context, userID, discountID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := r.usages.DeleteOne(ctx, bson.M{"userId": userID, "discountId": discountID}); err != nil {
		return errors.Wrap(err, "delete discount usage")
	}
	return nil
}

// AttachUsage links an unconsumed redemption to the order that consumed it.
func (r *DiscountRepository) AttachUsage(ctx context.Context, userID, discountID, orderID primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{
		"userId":     userID,
		"discountId": discountID,
		"orderId":    bson.M{"$exists": false},
	}
	res, err := r.usages.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"orderId": orderID}})
	if err != nil {
		return errors.Wrap(err, "attach discount usage")
	}
	if res.MatchedCount == 0 {
		return ErrNotMatched
	}
	return nil
}
