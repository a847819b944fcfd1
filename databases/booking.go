package databases

//go generate: mockery --name BookingDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetstar/fleetstar-api/models"
)

const bookingName = "bookings"

// BookingDatabase contains the methods to use with the booking database
type BookingDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Booking, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Booking, error)
	FindConflict(ctx context.Context, vehicleID primitive.ObjectID, pickup, ret time.Time) (*models.Booking, error)
	InsertOne(ctx context.Context, booking models.Booking) (interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error
}

type bookingDatabase struct {
	db DatabaseHelper
}

// NewBookingDatabase initializes a new instance of booking database with the provided db connection
func NewBookingDatabase(db DatabaseHelper) BookingDatabase {
	return &bookingDatabase{
		db: db,
	}
}

func (c *bookingDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Booking, error) {
	booking := &models.Booking{}
	err := c.db.Collection(bookingName).FindOne(ctx, filter).Decode(&booking)
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (c *bookingDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Booking, error) {
	var bookings []models.Booking
	cursor, err := c.db.Collection(bookingName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	if err := cursor.Decode(&bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

// FindConflict returns a booking on the given vehicle that occupies any
// instant in [pickup, ret], or nil when the range is free. Cancelled and
// rejected bookings never conflict. Interval boundaries are inclusive.
func (c *bookingDatabase) FindConflict(ctx context.Context, vehicleID primitive.ObjectID, pickup, ret time.Time) (*models.Booking, error) {
	booking := &models.Booking{}
	filter := bson.M{
		"vehicle":    vehicleID,
		"status":     bson.M{"$nin": models.ConflictExcludedStatuses},
		"pickupDate": bson.M{"$lte": ret},
		"returnDate": bson.M{"$gte": pickup},
	}
	err := c.db.Collection(bookingName).FindOne(ctx, filter).Decode(&booking)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (c *bookingDatabase) InsertOne(ctx context.Context, booking models.Booking) (interface{}, error) {
	return c.db.Collection(bookingName).InsertOne(ctx, booking)
}

func (c *bookingDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return c.db.Collection(bookingName).UpdateOne(ctx, filter, update)
}

func (c *bookingDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(bookingName).CountDocuments(ctx, filter)
}

func (c *bookingDatabase) Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error {
	cursor, err := c.db.Collection(bookingName).Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	return cursor.Decode(results)
}
