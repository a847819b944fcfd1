package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

// stalePendingAge is how long an unpaid pending booking may sit before it is
// cancelled automatically.
const stalePendingAge = 24 * time.Hour

// Scheduler handles periodic background jobs for the booking lifecycle
type Scheduler struct {
	cron       *cron.Cron
	BDB        databases.BookingDatabase
	VDB        databases.VehicleDatabase
	UDB        databases.UserDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	bDB databases.BookingDatabase,
	vDB databases.VehicleDatabase,
	uDB databases.UserDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = "instance-" + uuid.NewString()
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		BDB:        bDB,
		VDB:        vDB,
		UDB:        uDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Complete overdue rentals hourly
	_, err := s.cron.AddFunc("0 * * * *", s.completeOverdueBookings)
	if err != nil {
		zap.S().Errorw("failed to register overdue booking job", "error", err)
	}

	// Expire stale unpaid bookings daily at 3 AM UTC
	_, err = s.cron.AddFunc("0 3 * * *", s.expireStalePendingBookings)
	if err != nil {
		zap.S().Errorw("failed to register stale booking job", "error", err)
	}

	// Repair held vehicles hourly, offset from the overdue sweep
	_, err = s.cron.AddFunc("30 * * * *", s.reconcileVehicleAvailability)
	if err != nil {
		zap.S().Errorw("failed to register availability reconcile job", "error", err)
	}

	s.cron.Start()
	zap.S().Infow("booking scheduler started", "instance", s.instanceID)
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("booking scheduler stopped")
}

// completeOverdueBookings closes out approved bookings whose return date has
// passed and returns their vehicles to the fleet
func (s *Scheduler) completeOverdueBookings() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	now := time.Now()
	overdue, err := s.BDB.Find(ctx, bson.M{
		"status":     models.BookingApproved,
		"returnDate": bson.M{"$lt": now},
	})
	if err != nil {
		zap.S().Errorw("failed to find overdue bookings", "error", err)
		return
	}

	completed := 0
	for _, booking := range overdue {
		res, err := s.BDB.UpdateOne(ctx,
			bson.M{"_id": booking.ID, "status": models.BookingApproved},
			bson.M{"$set": bson.M{
				"status":    models.BookingCompleted,
				"updatedAt": time.Now(),
			}})
		if err != nil {
			zap.S().Errorw("failed to complete overdue booking", "error", err, "bookingId", booking.ID.Hex())
			continue
		}
		if res.MatchedCount == 0 {
			// Status moved under us, leave it alone.
			continue
		}

		_, err = s.VDB.UpdateOne(ctx,
			bson.M{"_id": booking.Vehicle},
			bson.M{"$set": bson.M{"availabilityStatus": true, "updatedAt": time.Now()}})
		if err != nil {
			zap.S().Errorw("failed to release vehicle", "error", err, "vehicleId", booking.Vehicle.Hex())
		}
		completed++
	}

	if len(overdue) > 0 {
		zap.S().Infow("overdue booking sweep complete",
			"found", len(overdue),
			"completed", completed,
			"instance", s.instanceID,
		)
	}
}

// reconcileVehicleAvailability releases vehicles still flagged unavailable
// once no approved booking holds them. A failed release on the
// cancel/complete path would otherwise leave the vehicle held until someone
// notices.
func (s *Scheduler) reconcileVehicleAvailability() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	held, err := s.VDB.Find(ctx, bson.M{"availabilityStatus": false})
	if err != nil {
		zap.S().Errorw("failed to find held vehicles", "error", err)
		return
	}

	released := 0
	for _, vehicle := range held {
		active, err := s.BDB.CountDocuments(ctx, bson.M{
			"vehicle": vehicle.ID,
			"status":  models.BookingApproved,
		})
		if err != nil {
			zap.S().Errorw("failed to count vehicle bookings", "error", err, "vehicleId", vehicle.ID.Hex())
			continue
		}
		if active > 0 {
			continue
		}

		res, err := s.VDB.UpdateOne(ctx,
			bson.M{"_id": vehicle.ID, "availabilityStatus": false},
			bson.M{"$set": bson.M{"availabilityStatus": true, "updatedAt": time.Now()}})
		if err != nil {
			zap.S().Errorw("failed to release vehicle", "error", err, "vehicleId", vehicle.ID.Hex())
			continue
		}
		if res.MatchedCount == 0 {
			continue
		}
		released++
	}

	if released > 0 {
		zap.S().Infow("vehicle availability reconciled",
			"held", len(held),
			"released", released,
			"instance", s.instanceID,
		)
	}
}

// expireStalePendingBookings cancels pending bookings that have gone unpaid
// for too long, freeing their dates for other customers
func (s *Scheduler) expireStalePendingBookings() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-stalePendingAge)
	stale, err := s.BDB.Find(ctx, bson.M{
		"status":        models.BookingPending,
		"paymentStatus": models.PaymentPending,
		"createdAt":     bson.M{"$lt": cutoff},
	})
	if err != nil {
		zap.S().Errorw("failed to find stale pending bookings", "error", err)
		return
	}

	cancelled := 0
	for _, booking := range stale {
		res, err := s.BDB.UpdateOne(ctx,
			bson.M{"_id": booking.ID, "status": models.BookingPending, "paymentStatus": models.PaymentPending},
			bson.M{"$set": bson.M{
				"status":             models.BookingCancelled,
				"cancellationReason": "payment not received within 24 hours",
				"updatedAt":          time.Now(),
			}})
		if err != nil {
			zap.S().Errorw("failed to expire stale booking", "error", err, "bookingId", booking.ID.Hex())
			continue
		}
		if res.MatchedCount == 0 {
			continue
		}
		cancelled++
	}

	if len(stale) > 0 {
		zap.S().Infow("stale booking sweep complete",
			"found", len(stale),
			"cancelled", cancelled,
			"instance", s.instanceID,
		)
	}
}
