package store

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/models"
)

type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(CollUsers)}
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// Insert creates the user. A taken email yields ErrDuplicate.
func (r *UserRepository) Insert(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Addresses == nil {
		u.Addresses = []models.Address{}
	}
	if u.Wishlist == nil {
		u.Wishlist = []primitive.ObjectID{}
	}
	if u.UsedDiscounts == nil {
		u.UsedDiscounts = []primitive.ObjectID{}
	}
	res, err := r.coll.InsertOne(ctx, u)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context, page Page) ([]models.User, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	total, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, errors.Wrap(err, "count users")
	}
	opts := page.FindOptions(newestFirst).SetProjection(bson.M{"passwordHash": 0})
	cursor, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, errors.Wrap(err, "find users")
	}
	defer cursor.Close(ctx)

	users := make([]models.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, errors.Wrap(err, "decode users")
	}
	return users, total, nil
}

// SetAddresses replaces the embedded address list.
func (r *UserRepository) SetAddresses(ctx context.Context, userID primitive.ObjectID, addresses []models.Address) error {
	return r.update(ctx, userID, bson.M{"$set": bson.M{"addresses": addresses, "updatedAt": time.Now()}})
}

func (r *UserRepository) AddWishlist(ctx context.Context, userID, productID primitive.ObjectID) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"wishlist": productID}})
}

func (r *UserRepository) RemoveWishlist(ctx context.Context, userID, productID primitive.ObjectID) error {
	return r.update(ctx, userID, bson.M{"$pull": bson.M{"wishlist": productID}})
}

// AddUsedDiscount maintains the usedDiscounts projection of discount_usages.
func (r *UserRepository) AddUsedDiscount(ctx context.Context, userID, discountID primitive.ObjectID) error {
	return r.update(ctx, userID, bson.M{"$addToSet": bson.M{"usedDiscounts": discountID}})
}

func (r *UserRepository) update(ctx context.Context, userID primitive.ObjectID, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": userID}, update, options.Update())
	if err != nil {
		return errors.Wrap(err, "update user")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
