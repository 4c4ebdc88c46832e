// Package store holds the MongoDB repositories. Every write touches a single
// document; anything that must not race is expressed as a conditional update.
package store

import (
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollUsers          = "users"
	CollCategories     = "categories"
	CollProducts       = "products"
	CollCarts          = "carts"
	CollDiscounts      = "discounts"
	CollDiscountUsages = "discount_usages"
	CollOrders         = "orders"
	CollInvoices       = "invoices"
	CollCampaigns      = "campaigns"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrDuplicate  = errors.New("duplicate key")
	ErrNotMatched = errors.New("conditional update matched no document")
)

const opTimeout = 5 * time.Second

// Page selects a 1-based page of fixed size.
type Page struct {
	Number int64
	Size   int64
}

func (p Page) normalized() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 10
	}
	return p
}

// FindOptions returns skip/limit options for the page sorted by sort.
func (p Page) FindOptions(sort bson.D) *options.FindOptions {
	p = p.normalized()
	return options.Find().
		SetSkip((p.Number - 1) * p.Size).
		SetLimit(p.Size).
		SetSort(sort)
}

// mapErr normalises driver errors to the package sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return errors.Wrap(ErrDuplicate, err.Error())
	default:
		return err
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}}

var notDeleted = bson.M{"$ne": true}
