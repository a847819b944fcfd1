package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
	templates "github.com/fleetstar/fleetstar-api/templates/html"
)

// vehicleLocks serializes booking admission per vehicle. The overlap check
// and the insert must not interleave for the same vehicle, otherwise two
// conflicting bookings could both pass the check.
var vehicleLocks sync.Map

func lockVehicle(id primitive.ObjectID) *sync.Mutex {
	mu, _ := vehicleLocks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// forgetVehicleLock drops the admission lock for a vehicle that left the
// fleet, so the lock map does not grow with deleted vehicles.
func forgetVehicleLock(id primitive.ObjectID) {
	vehicleLocks.Delete(id)
}

// Booking exported for testing purposes
type Booking struct {
	DB  databases.BookingDatabase
	VDB databases.VehicleDatabase
	UDB databases.UserDatabase
}

type createBookingRequest struct {
	Vehicle        string    `json:"vehicle"`
	PickupDate     time.Time `json:"pickupDate"`
	ReturnDate     time.Time `json:"returnDate"`
	PickupLocation string    `json:"pickupLocation"`
}

type bookingDecisionRequest struct {
	Status     models.BookingStatus `json:"status"`
	AdminNotes string               `json:"adminNotes,omitempty"`
}

type cancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CreateBookingHandler admits a new booking. The vehicle must be available
// and the requested period must not overlap any booking that still occupies
// the vehicle.
func (h Booking) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.IdentityFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	customerID, err := primitive.ObjectIDFromHex(identity.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	vID, err := primitive.ObjectIDFromHex(req.Vehicle)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	if err := models.ValidateBookingDates(req.PickupDate, req.ReturnDate, time.Now()); err != nil {
		config.ErrorStatus("invalid booking dates", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	mu := lockVehicle(vID)
	mu.Lock()
	defer mu.Unlock()

	vehicle, err := h.VDB.FindOne(ctx, bson.M{"_id": vID})
	if err != nil {
		config.ErrorStatus("failed to get vehicle by ID", http.StatusNotFound, w, err)
		return
	}
	if !vehicle.AvailabilityStatus {
		config.ErrorStatus("vehicle is not available", http.StatusConflict, w, nil)
		return
	}

	conflict, err := h.DB.FindConflict(ctx, vID, req.PickupDate, req.ReturnDate)
	if err != nil {
		config.ErrorStatus("failed to check booking conflicts", http.StatusInternalServerError, w, err)
		return
	}
	if conflict != nil {
		config.ErrorStatus("vehicle already booked for this period", http.StatusConflict, w, nil)
		return
	}

	now := time.Now()
	booking := models.Booking{
		ID:             primitive.NewObjectID(),
		Customer:       customerID,
		Vehicle:        vID,
		PickupDate:     req.PickupDate,
		ReturnDate:     req.ReturnDate,
		PickupLocation: req.PickupLocation,
		TotalCost:      float64(models.DurationDays(req.PickupDate, req.ReturnDate)) * vehicle.DailyRate,
		Status:         models.BookingPending,
		PaymentStatus:  models.PaymentPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := h.DB.InsertOne(ctx, booking); err != nil {
		config.ErrorStatus("failed to create booking", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("booking created",
		"bookingId", booking.ID.Hex(),
		"vehicleId", vID.Hex(),
		"customerId", customerID.Hex(),
	)

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(booking)
}

// bookingSortFields whitelists the fields the listing may sort on. Anything
// else falls back to createdAt.
var bookingSortFields = map[string]bool{
	"createdAt":  true,
	"pickupDate": true,
	"returnDate": true,
	"totalCost":  true,
	"status":     true,
}

// BookingsHandler returns all bookings for the back office, newest first by
// default, optionally filtered by status or vehicle and sorted by
// sortBy/order query parameters
func (h Booking) BookingsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Debugf("limit not set, using default, err: %v", err)
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	sortField := r.URL.Query().Get("sortBy")
	if !bookingSortFields[sortField] {
		sortField = "createdAt"
	}
	sortDir := -1
	if r.URL.Query().Get("order") == "asc" {
		sortDir = 1
	}

	filter := bson.M{}
	if status := r.URL.Query().Get("status"); status != "" {
		if !models.ValidBookingStatus(models.BookingStatus(status)) {
			config.ErrorStatus("unknown booking status", http.StatusBadRequest, w, nil)
			return
		}
		filter["status"] = status
	}
	if vehicle := r.URL.Query().Get("vehicle"); vehicle != "" {
		vID, err := primitive.ObjectIDFromHex(vehicle)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		filter["vehicle"] = vID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := databases.PaginatedOpts(limit, page).SetSort(bson.D{{Key: sortField, Value: sortDir}})
	dbResp, err := h.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get bookings", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Booking{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// MyBookingsHandler returns the caller's own bookings, newest first
func (h Booking) MyBookingsHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.IdentityFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}
	customerID, err := primitive.ObjectIDFromHex(identity.UserID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	dbResp, err := h.DB.Find(ctx, bson.M{"customer": customerID}, opts)
	if err != nil {
		config.ErrorStatus("failed to get bookings", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Booking{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// BookingByIDHandler returns a booking by ID. Customers may only read their
// own bookings.
func (h Booking) BookingByIDHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.IdentityFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}

	bID, err := primitive.ObjectIDFromHex(mux.Vars(r)["booking_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	booking, err := h.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	if !identity.IsStaff() && booking.Customer.Hex() != identity.UserID {
		config.ErrorStatus("forbidden", http.StatusForbidden, w, nil)
		return
	}

	b, err := json.Marshal(booking)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CancelBookingHandler cancels a booking. Customers may cancel their own
// pending or approved bookings; staff may cancel any cancellable booking.
func (h Booking) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.IdentityFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}

	bID, err := primitive.ObjectIDFromHex(mux.Vars(r)["booking_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req cancelBookingRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	booking, err := h.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	if !identity.IsStaff() && booking.Customer.Hex() != identity.UserID {
		config.ErrorStatus("forbidden", http.StatusForbidden, w, nil)
		return
	}

	if !models.CanTransition(booking.Status, models.BookingCancelled) {
		config.ErrorStatus(
			fmt.Sprintf("cannot cancel a %s booking", booking.Status),
			http.StatusConflict, w, nil)
		return
	}

	// Compare-and-swap on the expected status so a concurrent transition
	// cannot be overwritten.
	res, err := h.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "status": booking.Status},
		bson.M{"$set": bson.M{
			"status":             models.BookingCancelled,
			"cancellationReason": req.Reason,
			"updatedAt":          time.Now(),
		}})
	if err != nil {
		config.ErrorStatus("failed to cancel booking", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("booking status changed, please retry", http.StatusConflict, w, nil)
		return
	}

	// An approved booking held the vehicle, release it.
	if booking.Status == models.BookingApproved {
		h.releaseVehicle(ctx, booking.Vehicle)
	}

	zap.S().Infow("booking cancelled", "bookingId", bID.Hex(), "by", identity.UserID)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Booking cancelled successfully",
	})
}

// UpdateBookingStatusHandler decides a pending booking: staff approve or
// reject it. Approval requires the booking to be paid and reserves the
// vehicle.
func (h Booking) UpdateBookingStatusHandler(w http.ResponseWriter, r *http.Request) {
	bID, err := primitive.ObjectIDFromHex(mux.Vars(r)["booking_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req bookingDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Status != models.BookingApproved && req.Status != models.BookingRejected {
		config.ErrorStatus("status must be approved or rejected", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	booking, err := h.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	if !models.CanTransition(booking.Status, req.Status) {
		config.ErrorStatus(
			fmt.Sprintf("cannot move a %s booking to %s", booking.Status, req.Status),
			http.StatusConflict, w, nil)
		return
	}

	if req.Status == models.BookingApproved {
		if booking.PaymentStatus != models.PaymentPaid {
			config.ErrorStatus("booking is not paid", http.StatusConflict, w, nil)
			return
		}

		// Reserve the vehicle first. If the booking transition then fails,
		// flip it back.
		res, err := h.VDB.UpdateOne(ctx,
			bson.M{"_id": booking.Vehicle, "availabilityStatus": true},
			bson.M{"$set": bson.M{"availabilityStatus": false, "updatedAt": time.Now()}})
		if err != nil {
			config.ErrorStatus("failed to reserve vehicle", http.StatusInternalServerError, w, err)
			return
		}
		if res.MatchedCount == 0 {
			config.ErrorStatus("vehicle is not available", http.StatusConflict, w, nil)
			return
		}
	}

	res, err := h.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "status": models.BookingPending},
		bson.M{"$set": bson.M{
			"status":     req.Status,
			"adminNotes": req.AdminNotes,
			"updatedAt":  time.Now(),
		}})
	if err == nil && res.MatchedCount == 0 {
		err = fmt.Errorf("booking no longer pending")
	}
	if err != nil {
		if req.Status == models.BookingApproved {
			h.releaseVehicle(ctx, booking.Vehicle)
		}
		config.ErrorStatus("failed to update booking status", http.StatusConflict, w, err)
		return
	}

	go h.sendDecisionEmail(booking.Customer, *booking, req.Status, req.AdminNotes)

	zap.S().Infow("booking decided",
		"bookingId", bID.Hex(),
		"status", req.Status,
	)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": fmt.Sprintf("Booking %s successfully", req.Status),
	})
}

// CompleteBookingHandler marks an approved booking as completed and returns
// the vehicle to the fleet
func (h Booking) CompleteBookingHandler(w http.ResponseWriter, r *http.Request) {
	bID, err := primitive.ObjectIDFromHex(mux.Vars(r)["booking_id"])
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	booking, err := h.DB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	res, err := h.DB.UpdateOne(ctx,
		bson.M{"_id": bID, "status": models.BookingApproved},
		bson.M{"$set": bson.M{
			"status":    models.BookingCompleted,
			"updatedAt": time.Now(),
		}})
	if err != nil {
		config.ErrorStatus("failed to complete booking", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus(
			fmt.Sprintf("cannot complete a %s booking", booking.Status),
			http.StatusConflict, w, nil)
		return
	}

	h.releaseVehicle(ctx, booking.Vehicle)

	zap.S().Infow("booking completed", "bookingId", bID.Hex())

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Booking completed successfully",
	})
}

func (h Booking) releaseVehicle(ctx context.Context, vehicleID primitive.ObjectID) {
	_, err := h.VDB.UpdateOne(ctx,
		bson.M{"_id": vehicleID},
		bson.M{"$set": bson.M{"availabilityStatus": true, "updatedAt": time.Now()}})
	if err != nil {
		zap.S().Errorw("failed to release vehicle", "error", err, "vehicleId", vehicleID.Hex())
	}
}

func (h Booking) sendDecisionEmail(customerID primitive.ObjectID, booking models.Booking, status models.BookingStatus, notes string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := h.UDB.FindOne(ctx, bson.M{"_id": customerID})
	if err != nil || user.Email == "" {
		zap.S().Warnw("skipping decision email, no customer email", "bookingId", booking.ID.Hex())
		return
	}

	subject := "Your FleetStar Booking Was Approved"
	body := fmt.Sprintf("Hi %s,\n\nYour booking from %s to %s has been approved. Your vehicle will be ready at %s.",
		user.Name,
		booking.PickupDate.Format("Jan 2, 2006"),
		booking.ReturnDate.Format("Jan 2, 2006"),
		booking.PickupLocation)
	if status == models.BookingRejected {
		subject = "Your FleetStar Booking Was Declined"
		body = fmt.Sprintf("Hi %s,\n\nUnfortunately your booking from %s to %s could not be accommodated.",
			user.Name,
			booking.PickupDate.Format("Jan 2, 2006"),
			booking.ReturnDate.Format("Jan 2, 2006"))
		if notes != "" {
			body += "\n\nReason: " + notes
		}
	}

	from := mail.NewEmail("FleetStar Rentals", "no-reply@fleetstar-rentals.com")
	to := mail.NewEmail(user.Name, user.Email)
	message := mail.NewSingleEmail(from, subject, to, body, templates.RenderBookingDecision(subject, body))
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		zap.S().Errorw("failed to send decision email", "error", err, "bookingId", booking.ID.Hex())
		return
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
}
