package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fleetstar/fleetstar-api/databases/mocks"
	"github.com/fleetstar/fleetstar-api/models"
)

func TestCompleteOverdueBookings(t *testing.T) {
	bookingID := primitive.NewObjectID()
	vehicleID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("Find", mock.Anything, mock.Anything).Return([]models.Booking{{
		ID:         bookingID,
		Vehicle:    vehicleID,
		Status:     models.BookingApproved,
		ReturnDate: time.Now().Add(-24 * time.Hour),
	}}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	vdb := mocks.NewVehicleDatabase(t)
	// the vehicle returns to the fleet once the rental closes out
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	s := NewScheduler(bdb, vdb, mocks.NewUserDatabase(t))
	s.completeOverdueBookings()
}

func TestCompleteOverdueBookingsSkipsMovedStatus(t *testing.T) {
	bdb := mocks.NewBookingDatabase(t)
	bdb.On("Find", mock.Anything, mock.Anything).Return([]models.Booking{{
		ID:         primitive.NewObjectID(),
		Vehicle:    primitive.NewObjectID(),
		Status:     models.BookingApproved,
		ReturnDate: time.Now().Add(-time.Hour),
	}}, nil)
	// the CAS misses, something else already moved the booking
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	// no vehicle expectations: a release here would fail the test
	vdb := mocks.NewVehicleDatabase(t)

	s := NewScheduler(bdb, vdb, mocks.NewUserDatabase(t))
	s.completeOverdueBookings()
}

func TestReconcileVehicleAvailability(t *testing.T) {
	vehicleID := primitive.NewObjectID()

	vdb := mocks.NewVehicleDatabase(t)
	vdb.On("Find", mock.Anything, mock.Anything).Return([]models.Vehicle{{
		ID:                 vehicleID,
		AvailabilityStatus: false,
	}}, nil)
	// nothing approved holds the vehicle anymore, it goes back to the fleet
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(0), nil)

	s := NewScheduler(bdb, vdb, mocks.NewUserDatabase(t))
	s.reconcileVehicleAvailability()
}

func TestReconcileVehicleAvailabilitySkipsActiveRental(t *testing.T) {
	vehicleID := primitive.NewObjectID()

	vdb := mocks.NewVehicleDatabase(t)
	// no UpdateOne expectation: releasing a legitimately held vehicle fails the test
	vdb.On("Find", mock.Anything, mock.Anything).Return([]models.Vehicle{{
		ID:                 vehicleID,
		AvailabilityStatus: false,
	}}, nil)

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("CountDocuments", mock.Anything, mock.Anything).Return(int64(1), nil)

	s := NewScheduler(bdb, vdb, mocks.NewUserDatabase(t))
	s.reconcileVehicleAvailability()
}

func TestExpireStalePendingBookings(t *testing.T) {
	bdb := mocks.NewBookingDatabase(t)
	bdb.On("Find", mock.Anything, mock.Anything).Return([]models.Booking{{
		ID:            primitive.NewObjectID(),
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		CreatedAt:     time.Now().Add(-48 * time.Hour),
	}}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	s := NewScheduler(bdb, mocks.NewVehicleDatabase(t), mocks.NewUserDatabase(t))
	s.expireStalePendingBookings()
}
