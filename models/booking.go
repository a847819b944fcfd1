package models

import (
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookingStatus is the lifecycle status of a booking.
type BookingStatus string

// Booking lifecycle states. A booking starts out pending, is decided by
// staff (approved/rejected), and ends completed or cancelled.
const (
	BookingPending   BookingStatus = "pending"
	BookingApproved  BookingStatus = "approved"
	BookingRejected  BookingStatus = "rejected"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

// PaymentState is the payment status carried on a booking.
type PaymentState string

// Payment states for a booking.
const (
	PaymentPending  PaymentState = "pending"
	PaymentPaid     PaymentState = "paid"
	PaymentFailed   PaymentState = "failed"
	PaymentRefunded PaymentState = "refunded"
)

// bookingTransitions is the allowed transition table for the booking status
// state machine. Terminal states map to an empty slice.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingApproved, BookingRejected, BookingCancelled},
	BookingApproved:  {BookingCompleted, BookingCancelled},
	BookingRejected:  {},
	BookingCompleted: {},
	BookingCancelled: {},
}

// ConflictExcludedStatuses are the statuses that never occupy a vehicle.
// A rejected booking never blocked the vehicle, so it is excluded alongside
// cancelled ones.
var ConflictExcludedStatuses = []BookingStatus{BookingCancelled, BookingRejected}

// ValidBookingStatus reports whether s is a known booking status.
func ValidBookingStatus(s BookingStatus) bool {
	_, ok := bookingTransitions[s]
	return ok
}

// CanTransition reports whether from -> to is an allowed status transition.
func CanTransition(from, to BookingStatus) bool {
	for _, s := range bookingTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s BookingStatus) Terminal() bool {
	return ValidBookingStatus(s) && len(bookingTransitions[s]) == 0
}

// BlocksVehicle reports whether a booking in status s occupies its vehicle
// for the purposes of conflict detection.
func (s BookingStatus) BlocksVehicle() bool {
	for _, excluded := range ConflictExcludedStatuses {
		if s == excluded {
			return false
		}
	}
	return true
}

// Overlaps reports whether the closed intervals [s1, e1] and [s2, e2]
// intersect. Boundaries are inclusive: a return on day N conflicts with a
// pickup on day N.
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return !s1.After(e2) && !e1.Before(s2)
}

// DurationDays returns the whole-day rental duration, rounding partial days
// up.
func DurationDays(pickup, ret time.Time) int {
	return int(math.Ceil(ret.Sub(pickup).Hours() / 24))
}

// ValidateBookingDates checks the date invariants for a new booking: the
// return must be strictly after the pickup and the pickup must be in the
// future.
func ValidateBookingDates(pickup, ret, now time.Time) error {
	if !ret.After(pickup) {
		return fmt.Errorf("invalid booking dates: return date must be after pickup date")
	}
	if !pickup.After(now) {
		return fmt.Errorf("invalid booking dates: pickup date must be in the future")
	}
	return nil
}

// Booking holds the structure for the bookings collection
type Booking struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Customer           primitive.ObjectID `json:"customer" bson:"customer"`
	Vehicle            primitive.ObjectID `json:"vehicle" bson:"vehicle"`
	PickupDate         time.Time          `json:"pickupDate" bson:"pickupDate"`
	ReturnDate         time.Time          `json:"returnDate" bson:"returnDate"`
	PickupLocation     string             `json:"pickupLocation" bson:"pickupLocation"`
	TotalCost          float64            `json:"totalCost" bson:"totalCost"`
	Status             BookingStatus      `json:"status" bson:"status"`
	PaymentStatus      PaymentState       `json:"paymentStatus" bson:"paymentStatus"`
	AdminNotes         string             `json:"adminNotes,omitempty" bson:"adminNotes,omitempty"`
	CancellationReason string             `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// DurationDays returns the rental duration of the booking in whole days.
func (b Booking) DurationDays() int {
	return DurationDays(b.PickupDate, b.ReturnDate)
}

// OverlapsRange reports whether the booking occupies any instant in
// [pickup, ret].
func (b Booking) OverlapsRange(pickup, ret time.Time) bool {
	return Overlaps(b.PickupDate, b.ReturnDate, pickup, ret)
}
