package store

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(CollProducts)}
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	CategoryID  *primitive.ObjectID
	Search      string
	IncludeOff  bool
	ActiveOnly  bool
	OnlyIDs     []primitive.ObjectID
	ExcludeIDs  []primitive.ObjectID
	CategoryIDs []primitive.ObjectID
}

// Query builds the Mongo filter document.
func (f ProductFilter) Query() bson.M {
	filter := bson.M{"isDeleted": notDeleted}
	if !f.IncludeOff {
		filter["isActive"] = bson.M{"$ne": false}
	}
	if f.ActiveOnly {
		filter["isActive"] = true
	}
	if f.CategoryID != nil {
		filter["categoryId"] = *f.CategoryID
	} else if len(f.CategoryIDs) > 0 {
		filter["categoryId"] = bson.M{"$in": f.CategoryIDs}
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := regexp.QuoteMeta(search)
		filter["$or"] = []bson.M{
			{"name": bson.M{"$regex": pattern, "$options": "i"}},
			{"brand": bson.M{"$regex": pattern, "$options": "i"}},
			{"description": bson.M{"$regex": pattern, "$options": "i"}},
		}
	}
	idCond := bson.M{}
	if len(f.OnlyIDs) > 0 {
		idCond["$in"] = f.OnlyIDs
	}
	if len(f.ExcludeIDs) > 0 {
		idCond["$nin"] = f.ExcludeIDs
	}
	if len(idCond) > 0 {
		filter["_id"] = idCond
	}
	return filter
}

func (r *ProductRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var p models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id, "isDeleted": notDeleted}).Decode(&p)
	if err != nil {
		return nil, mapErr(err)
	}
	p.Normalize()
	return &p, nil
}

func (r *ProductRepository) FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}, "isDeleted": notDeleted}, options.Find())
}

// List returns one page of products matching f plus the total match count.
func (r *ProductRepository) List(ctx context.Context, f ProductFilter, page Page) ([]models.Product, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := f.Query()
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count products")
	}
	products, err := r.find(ctx, filter, page.FindOptions(newestFirst))
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// Top returns up to limit products matching f ordered by soldCount.
func (r *ProductRepository) Top(ctx context.Context, f ProductFilter, limit int64) ([]models.Product, error) {
	opts := options.Find().
		SetLimit(limit).
		SetSort(bson.D{{Key: "soldCount", Value: -1}, {Key: "createdAt", Value: -1}})
	return r.find(ctx, f.Query(), opts)
}

func (r *ProductRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	defer cursor.Close(ctx)

	products := make([]models.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	for i := range products {
		products[i].Normalize()
	}
	return products, nil
}

func (r *ProductRepository) Insert(ctx context.Context, p *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, p)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		p.ID = id
	}
	return nil
}

// Update applies $set/$unset to a non-deleted product.
func (r *ProductRepository) Update(ctx context.Context, id primitive.ObjectID, set, unset bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	update := bson.M{}
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = time.Now()
	update["$set"] = set
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id, "isDeleted": notDeleted}, update)
	if err != nil {
		return mapErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	now := time.Now()
	return r.Update(ctx, id, bson.M{"isDeleted": true, "isActive": false, "deletedAt": now}, nil)
}

// AdjustStock moves stock by delta and soldCount by soldDelta in one atomic
// update. Negative deltas only apply when enough stock is left, otherwise
// ErrNotMatched is returned. With size set the matching variant moves together
// with the aggregate stock field.
func (r *ProductRepository) AdjustStock(ctx context.Context, id primitive.ObjectID, size string, delta, soldDelta int) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter, update, opts := stockUpdate(id, size, delta, soldDelta)
	res, err := r.coll.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return errors.Wrap(err, "adjust stock")
	}
	if res.MatchedCount == 0 {
		return ErrNotMatched
	}
	return nil
}

func stockUpdate(id primitive.ObjectID, size string, delta, soldDelta int) (bson.M, bson.M, *options.UpdateOptions) {
	filter := bson.M{"_id": id, "isDeleted": notDeleted}
	inc := bson.M{"stock": delta}
	if soldDelta != 0 {
		inc["soldCount"] = soldDelta
	}
	opts := options.Update()

	if size == "" {
		if delta < 0 {
			filter["stock"] = bson.M{"$gte": -delta}
		}
	} else {
		match := bson.M{"size": size}
		if delta < 0 {
			match["stock"] = bson.M{"$gte": -delta}
		}
		filter["variants"] = bson.M{"$elemMatch": match}
		inc["variants.$[v].stock"] = delta
		opts.SetArrayFilters(options.ArrayFilters{Filters: []interface{}{bson.M{"v.size": size}}})
	}

	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updatedAt": time.Now()},
	}
	return filter, update, opts
}

// CategoryIDs maps product ids to their category ids.
func (r *ProductRepository) CategoryIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	opts := options.Find().SetProjection(bson.M{"categoryId": 1})
	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "find product categories")
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID         primitive.ObjectID `bson:"_id"`
		CategoryID primitive.ObjectID `bson:"categoryId"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, errors.Wrap(err, "decode product categories")
	}
	out := make(map[primitive.ObjectID]primitive.ObjectID, len(rows))
	for _, row := range rows {
		out[row.ID] = row.CategoryID
	}
	return out, nil
}

func (r *ProductRepository) CountByCategory(ctx context.Context, categoryID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return r.coll.CountDocuments(ctx, bson.M{"categoryId": categoryID, "isDeleted": notDeleted})
}
