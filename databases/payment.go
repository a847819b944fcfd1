package databases

//go generate: mockery --name PaymentDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetstar/fleetstar-api/models"
)

const paymentName = "payments"

// PaymentDatabase contains the methods to use with the payment ledger.
// The ledger is append-only: there is deliberately no update or delete.
type PaymentDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Payment, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Payment, error)
	InsertOne(ctx context.Context, payment models.Payment) (interface{}, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
}

type paymentDatabase struct {
	db DatabaseHelper
}

// NewPaymentDatabase initializes a new instance of payment database with the provided db connection
func NewPaymentDatabase(db DatabaseHelper) PaymentDatabase {
	return &paymentDatabase{
		db: db,
	}
}

func (c *paymentDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Payment, error) {
	payment := &models.Payment{}
	err := c.db.Collection(paymentName).FindOne(ctx, filter).Decode(&payment)
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (c *paymentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Payment, error) {
	var payments []models.Payment
	cursor, err := c.db.Collection(paymentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&payments); err != nil {
		return nil, err
	}
	return payments, nil
}

func (c *paymentDatabase) InsertOne(ctx context.Context, payment models.Payment) (interface{}, error) {
	return c.db.Collection(paymentName).InsertOne(ctx, payment)
}

func (c *paymentDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(paymentName).CountDocuments(ctx, filter)
}
