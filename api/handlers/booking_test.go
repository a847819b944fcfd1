package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/api/handlers"
	"github.com/fleetstar/fleetstar-api/databases/mocks"
	"github.com/fleetstar/fleetstar-api/models"
)

func authedRequest(req *http.Request, identity api.Identity) *http.Request {
	return req.WithContext(api.WithIdentity(req.Context(), identity))
}

func futureDates() (time.Time, time.Time) {
	pickup := time.Now().Add(48 * time.Hour).Truncate(time.Hour)
	return pickup, pickup.Add(3 * 24 * time.Hour)
}

func createBookingBody(t *testing.T, vehicleID string, pickup, ret time.Time) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"vehicle":        vehicleID,
		"pickupDate":     pickup,
		"returnDate":     ret,
		"pickupLocation": "Downtown Branch",
	})
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewBuffer(body)
}

func TestBooking_CreateBookingHandler(t *testing.T) {
	vehicleID := primitive.NewObjectID()
	customerID := primitive.NewObjectID()
	pickup, ret := futureDates()

	vdb := mocks.NewVehicleDatabase(t)
	bdb := mocks.NewBookingDatabase(t)

	vdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Vehicle{
		ID:                 vehicleID,
		Name:               "Corolla Altis",
		DailyRate:          55,
		AvailabilityStatus: true,
	}, nil)
	bdb.On("FindConflict", mock.Anything, vehicleID, mock.Anything, mock.Anything).Return(nil, nil)
	bdb.On("InsertOne", mock.Anything, mock.AnythingOfType("models.Booking")).Return(primitive.NewObjectID(), nil)

	h := handlers.Booking{DB: bdb, VDB: vdb}

	req, _ := http.NewRequest("POST", "/api/v1/bookings", createBookingBody(t, vehicleID.Hex(), pickup, ret))
	req = authedRequest(req, api.Identity{UserID: customerID.Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var booking models.Booking
	assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &booking))
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, models.PaymentPending, booking.PaymentStatus)
	// 3 days at 55/day
	assert.Equal(t, float64(165), booking.TotalCost)
	assert.Equal(t, customerID, booking.Customer)
}

func TestBooking_CreateBookingHandlerConflict(t *testing.T) {
	vehicleID := primitive.NewObjectID()
	pickup, ret := futureDates()

	vdb := mocks.NewVehicleDatabase(t)
	bdb := mocks.NewBookingDatabase(t)

	vdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Vehicle{
		ID:                 vehicleID,
		DailyRate:          55,
		AvailabilityStatus: true,
	}, nil)
	bdb.On("FindConflict", mock.Anything, vehicleID, mock.Anything, mock.Anything).Return(&models.Booking{
		ID:     primitive.NewObjectID(),
		Status: models.BookingPending,
	}, nil)

	h := handlers.Booking{DB: bdb, VDB: vdb}

	req, _ := http.NewRequest("POST", "/api/v1/bookings", createBookingBody(t, vehicleID.Hex(), pickup, ret))
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "vehicle already booked for this period")
}

func TestBooking_CreateBookingHandlerVehicleUnavailable(t *testing.T) {
	vehicleID := primitive.NewObjectID()
	pickup, ret := futureDates()

	vdb := mocks.NewVehicleDatabase(t)
	vdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Vehicle{
		ID:                 vehicleID,
		DailyRate:          55,
		AvailabilityStatus: false,
	}, nil)

	h := handlers.Booking{DB: mocks.NewBookingDatabase(t), VDB: vdb}

	req, _ := http.NewRequest("POST", "/api/v1/bookings", createBookingBody(t, vehicleID.Hex(), pickup, ret))
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "vehicle is not available")
}

func TestBooking_CreateBookingHandlerInvalidDates(t *testing.T) {
	vehicleID := primitive.NewObjectID()
	pickup := time.Now().Add(48 * time.Hour)

	h := handlers.Booking{DB: mocks.NewBookingDatabase(t), VDB: mocks.NewVehicleDatabase(t)}

	// return before pickup
	req, _ := http.NewRequest("POST", "/api/v1/bookings", createBookingBody(t, vehicleID.Hex(), pickup, pickup.Add(-24*time.Hour)))
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "return date must be after pickup date")

	// pickup in the past
	req, _ = http.NewRequest("POST", "/api/v1/bookings", createBookingBody(t, vehicleID.Hex(), time.Now().Add(-time.Hour), pickup))
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr = httptest.NewRecorder()
	http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "pickup date must be in the future")
}

// memoryBookingDB is a thread-safe booking store used to exercise the
// admission path under concurrency, where call-counting mocks would be racy.
type memoryBookingDB struct {
	mu       sync.Mutex
	bookings []models.Booking
}

func (m *memoryBookingDB) FindOne(ctx context.Context, filter interface{}) (*models.Booking, error) {
	return nil, mongo.ErrNoDocuments
}

func (m *memoryBookingDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Booking, len(m.bookings))
	copy(out, m.bookings)
	return out, nil
}

func (m *memoryBookingDB) FindConflict(ctx context.Context, vehicleID primitive.ObjectID, pickup, ret time.Time) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		if b.Vehicle == vehicleID && b.Status.BlocksVehicle() && b.OverlapsRange(pickup, ret) {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryBookingDB) InsertOne(ctx context.Context, booking models.Booking) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings = append(m.bookings, booking)
	return booking.ID, nil
}

func (m *memoryBookingDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return &mongo.UpdateResult{}, nil
}

func (m *memoryBookingDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.bookings)), nil
}

func (m *memoryBookingDB) Aggregate(ctx context.Context, pipeline interface{}, results interface{}) error {
	return errors.New("not implemented")
}

func TestBooking_CreateBookingHandlerConcurrentAdmission(t *testing.T) {
	vehicleID := primitive.NewObjectID()
	pickup, ret := futureDates()

	store := &memoryBookingDB{}

	vdb := &mocks.VehicleDatabase{}
	vdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Vehicle{
		ID:                 vehicleID,
		DailyRate:          80,
		AvailabilityStatus: true,
	}, nil)

	h := handlers.Booking{DB: store, VDB: vdb}

	const attempts = 8
	codes := make([]int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, _ := http.NewRequest("POST", "/api/v1/bookings",
				createBookingBody(t, vehicleID.Hex(), pickup.Add(time.Duration(i)*time.Hour), ret))
			req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})
			rr := httptest.NewRecorder()
			http.HandlerFunc(h.CreateBookingHandler).ServeHTTP(rr, req)
			codes[i] = rr.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Fatalf("unexpected status code %d", code)
		}
	}

	// All attempts overlap, so exactly one may win the vehicle.
	assert.Equal(t, 1, created)
	count, _ := store.CountDocuments(context.Background(), nil)
	assert.Equal(t, int64(1), count)
}

func bookingsSortedBy(field string, dir int) func(opts *options.FindOptions) bool {
	return func(opts *options.FindOptions) bool {
		sort, ok := opts.Sort.(bson.D)
		return ok && len(sort) == 1 && sort[0].Key == field && sort[0].Value == dir
	}
}

func TestBooking_BookingsHandlerSortable(t *testing.T) {
	bdb := mocks.NewBookingDatabase(t)
	bdb.On("Find", mock.Anything, mock.Anything, mock.MatchedBy(bookingsSortedBy("totalCost", 1))).Return([]models.Booking{}, nil)

	h := handlers.Booking{DB: bdb}

	req, _ := http.NewRequest("GET", "/api/v1/bookings?sortBy=totalCost&order=asc", nil)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.BookingsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", rr.Body.String())
}

func TestBooking_BookingsHandlerUnknownSortFieldFallsBack(t *testing.T) {
	bdb := mocks.NewBookingDatabase(t)
	// an unrecognized sortBy must not reach the query, newest first wins
	bdb.On("Find", mock.Anything, mock.Anything, mock.MatchedBy(bookingsSortedBy("createdAt", -1))).Return([]models.Booking{}, nil)

	h := handlers.Booking{DB: bdb}

	req, _ := http.NewRequest("GET", "/api/v1/bookings?sortBy=password&order=desc", nil)

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.BookingsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBooking_CancelBookingHandler(t *testing.T) {
	bookingID := primitive.NewObjectID()
	customerID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:       bookingID,
		Customer: customerID,
		Vehicle:  primitive.NewObjectID(),
		Status:   models.BookingPending,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t)}

	body := bytes.NewBufferString(`{"reason": "plans changed"}`)
	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/cancel", bookingID.Hex()), body)
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: customerID.Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CancelBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Booking cancelled successfully")
}

func TestBooking_CancelBookingHandlerReleasesVehicleWhenApproved(t *testing.T) {
	bookingID := primitive.NewObjectID()
	customerID := primitive.NewObjectID()
	vehicleID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:       bookingID,
		Customer: customerID,
		Vehicle:  vehicleID,
		Status:   models.BookingApproved,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	vdb := mocks.NewVehicleDatabase(t)
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	h := handlers.Booking{DB: bdb, VDB: vdb}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/cancel", bookingID.Hex()), bytes.NewBufferString(`{}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: customerID.Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CancelBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	// NewVehicleDatabase(t) asserts the availability flip actually happened
}

func TestBooking_CancelBookingHandlerTerminalStatus(t *testing.T) {
	bookingID := primitive.NewObjectID()
	customerID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:       bookingID,
		Customer: customerID,
		Status:   models.BookingCompleted,
	}, nil)

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t)}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/cancel", bookingID.Hex()), bytes.NewBufferString(`{}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: customerID.Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CancelBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot cancel a completed booking")
}

func TestBooking_CancelBookingHandlerForbiddenForOtherCustomer(t *testing.T) {
	bookingID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:       bookingID,
		Customer: primitive.NewObjectID(),
		Status:   models.BookingPending,
	}, nil)

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t)}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/cancel", bookingID.Hex()), bytes.NewBufferString(`{}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CancelBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestBooking_UpdateBookingStatusHandlerApproveUnpaid(t *testing.T) {
	bookingID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:            bookingID,
		Vehicle:       primitive.NewObjectID(),
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
	}, nil)

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t)}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/status", bookingID.Hex()),
		bytes.NewBufferString(`{"status": "approved"}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateBookingStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "booking is not paid")
}

func TestBooking_UpdateBookingStatusHandlerApprove(t *testing.T) {
	bookingID := primitive.NewObjectID()
	vehicleID := primitive.NewObjectID()
	customerID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:            bookingID,
		Customer:      customerID,
		Vehicle:       vehicleID,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPaid,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	vdb := mocks.NewVehicleDatabase(t)
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	// the decision email fires on a goroutine and may land after the test
	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(nil, errors.New("no user")).Maybe()

	h := handlers.Booking{DB: bdb, VDB: vdb, UDB: udb}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/status", bookingID.Hex()),
		bytes.NewBufferString(`{"status": "approved", "adminNotes": "enjoy the ride"}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateBookingStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Booking approved successfully")
}

func TestBooking_UpdateBookingStatusHandlerApproveVehicleTaken(t *testing.T) {
	bookingID := primitive.NewObjectID()
	vehicleID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:            bookingID,
		Vehicle:       vehicleID,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPaid,
	}, nil)

	vdb := mocks.NewVehicleDatabase(t)
	// reserve CAS misses, the vehicle is already held
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	h := handlers.Booking{DB: bdb, VDB: vdb}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/status", bookingID.Hex()),
		bytes.NewBufferString(`{"status": "approved"}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateBookingStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "vehicle is not available")
}

func TestBooking_UpdateBookingStatusHandlerReject(t *testing.T) {
	bookingID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:            bookingID,
		Customer:      primitive.NewObjectID(),
		Vehicle:       primitive.NewObjectID(),
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	udb := &mocks.UserDatabase{}
	udb.On("FindOne", mock.Anything, mock.Anything).Return(nil, errors.New("no user")).Maybe()

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t), UDB: udb}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/status", bookingID.Hex()),
		bytes.NewBufferString(`{"status": "rejected", "adminNotes": "no vehicles free"}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateBookingStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Booking rejected successfully")
}

func TestBooking_UpdateBookingStatusHandlerInvalidTarget(t *testing.T) {
	bookingID := primitive.NewObjectID()

	h := handlers.Booking{DB: mocks.NewBookingDatabase(t), VDB: mocks.NewVehicleDatabase(t)}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/status", bookingID.Hex()),
		bytes.NewBufferString(`{"status": "completed"}`))
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.UpdateBookingStatusHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "status must be approved or rejected")
}

func TestBooking_CompleteBookingHandler(t *testing.T) {
	bookingID := primitive.NewObjectID()
	vehicleID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:      bookingID,
		Vehicle: vehicleID,
		Status:  models.BookingApproved,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	vdb := mocks.NewVehicleDatabase(t)
	vdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	h := handlers.Booking{DB: bdb, VDB: vdb}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/complete", bookingID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CompleteBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Booking completed successfully")
}

func TestBooking_CompleteBookingHandlerNotApproved(t *testing.T) {
	bookingID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:     bookingID,
		Status: models.BookingPending,
	}, nil)
	bdb.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	h := handlers.Booking{DB: bdb, VDB: mocks.NewVehicleDatabase(t)}

	req, _ := http.NewRequest("PUT", fmt.Sprintf("/api/v1/bookings/%s/complete", bookingID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.CompleteBookingHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "cannot complete a pending booking")
}

func TestBooking_BookingByIDHandlerOwnership(t *testing.T) {
	bookingID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()

	bdb := mocks.NewBookingDatabase(t)
	bdb.On("FindOne", mock.Anything, mock.Anything).Return(&models.Booking{
		ID:       bookingID,
		Customer: ownerID,
		Status:   models.BookingPending,
	}, nil)

	h := handlers.Booking{DB: bdb}

	// a different customer is refused
	req, _ := http.NewRequest("GET", fmt.Sprintf("/api/v1/bookings/%s", bookingID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleCustomer})

	rr := httptest.NewRecorder()
	http.HandlerFunc(h.BookingByIDHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// staff can read anyone's booking
	req, _ = http.NewRequest("GET", fmt.Sprintf("/api/v1/bookings/%s", bookingID.Hex()), nil)
	req = mux.SetURLVars(req, map[string]string{"booking_id": bookingID.Hex()})
	req = authedRequest(req, api.Identity{UserID: primitive.NewObjectID().Hex(), Role: models.RoleStaff})

	rr = httptest.NewRecorder()
	http.HandlerFunc(h.BookingByIDHandler).ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
