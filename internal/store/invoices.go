package store

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/internal/models"
)

type InvoiceRepository struct {
	coll *mongo.Collection
}

func NewInvoiceRepository(db *mongo.Database) *InvoiceRepository {
	return &InvoiceRepository{coll: db.Collection(CollInvoices)}
}

// Insert stores the invoice; a second invoice for one order yields ErrDuplicate.
func (r *InvoiceRepository) Insert(ctx context.Context, inv *models.Invoice) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	res, err := r.coll.InsertOne(ctx, inv)
	if err != nil {
		return mapErr(err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		inv.ID = id
	}
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Invoice, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *InvoiceRepository) FindByOrder(ctx context.Context, orderID primitive.ObjectID) (*models.Invoice, error) {
	return r.findOne(ctx, bson.M{"orderId": orderID})
}

func (r *InvoiceRepository) findOne(ctx context.Context, filter bson.M) (*models.Invoice, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var inv models.Invoice
	if err := r.coll.FindOne(ctx, filter).Decode(&inv); err != nil {
		return nil, mapErr(err)
	}
	return &inv, nil
}

func (r *InvoiceRepository) ListByUser(ctx context.Context, userID primitive.ObjectID, page Page) ([]models.Invoice, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	filter := bson.M{"userId": userID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, errors.Wrap(err, "count invoices")
	}
	cursor, err := r.coll.Find(ctx, filter, page.FindOptions(bson.D{{Key: "issuedAt", Value: -1}}))
	if err != nil {
		return nil, 0, errors.Wrap(err, "find invoices")
	}
	defer cursor.Close(ctx)

	invoices := make([]models.Invoice, 0)
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, 0, errors.Wrap(err, "decode invoices")
	}
	return invoices, total, nil
}
