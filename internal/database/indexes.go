package database

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/logger"
	"storefront/internal/store"
)

// EnsureIndexes creates every index the repositories rely on, including the
// unique ones that reject duplicate emails, codes and redemptions.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", EnsureUserIndexes},
		{"categories", EnsureCategoryIndexes},
		{"products", EnsureProductIndexes},
		{"carts", EnsureCartIndexes},
		{"discounts", EnsureDiscountIndexes},
		{"orders", EnsureOrderIndexes},
		{"invoices", EnsureInvoiceIndexes},
	}
	for _, step := range steps {
		if err := step.fn(ctx, db); err != nil {
			return errors.Wrapf(err, "ensure %s indexes", step.name)
		}
	}
	return nil
}

func createIndexes(ctx context.Context, coll *mongo.Collection, models ...mongo.IndexModel) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	lg := logger.Component(ctx, "database")
	names, err := coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		lg.Error().Err(err).Str("collection", coll.Name()).Msg("index creation failed")
		return err
	}
	lg.Info().Str("collection", coll.Name()).Strs("indexes", names).Msg("indexes ensured")
	return nil
}

func EnsureUserIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollUsers), mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetName("email_unique").
			SetUnique(true),
	})
}

func EnsureCategoryIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollCategories), mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetName("name_unique").
			SetUnique(true),
	})
}

func EnsureProductIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollProducts),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "categoryId", Value: 1}, {Key: "isDeleted", Value: 1}},
			Options: options.Index().SetName("category_index"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "soldCount", Value: -1}},
			Options: options.Index().SetName("soldCount_index"),
		},
	)
}

func EnsureCartIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollCarts), mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().
			SetName("userId_unique").
			SetUnique(true),
	})
}

func EnsureDiscountIndexes(ctx context.Context, db *mongo.Database) error {
	err := createIndexes(ctx, db.Collection(store.CollDiscounts),
		mongo.IndexModel{
			Keys: bson.D{{Key: "code", Value: 1}},
			Options: options.Index().
				SetName("code_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"code": bson.M{"$type": "string"},
				}),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "isCategoryDiscount", Value: 1}, {Key: "autoApply", Value: 1}},
			Options: options.Index().SetName("category_auto_index"),
		},
	)
	if err != nil {
		return err
	}
	return createIndexes(ctx, db.Collection(store.CollDiscountUsages), mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "discountId", Value: 1}},
		Options: options.Index().
			SetName("user_discount_unique").
			SetUnique(true),
	})
}

func EnsureOrderIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollOrders),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_index"),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("status_index"),
		},
	)
}

func EnsureInvoiceIndexes(ctx context.Context, db *mongo.Database) error {
	return createIndexes(ctx, db.Collection(store.CollInvoices),
		mongo.IndexModel{
			Keys:    bson.D{{Key: "orderId", Value: 1}},
			Options: options.Index().SetName("orderId_unique").SetUnique(true),
		},
		mongo.IndexModel{
			Keys:    bson.D{{Key: "number", Value: 1}},
			Options: options.Index().SetName("number_unique").SetUnique(true),
		},
	)
}
