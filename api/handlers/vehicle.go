package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

// Vehicle exported for testing purposes
type Vehicle struct {
	DB  databases.VehicleDatabase
	BDB databases.BookingDatabase
}

// VehiclesHandler returns the fleet, optionally filtered by type and
// availability
func (v Vehicle) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Debugf("limit not set, using default, err: %v", err)
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	filter := bson.M{}
	if vehicleType := r.URL.Query().Get("type"); vehicleType != "" {
		filter["type"] = vehicleType
	}
	if available := r.URL.Query().Get("available"); available != "" {
		filter["availabilityStatus"] = available == "true"
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := v.DB.Find(ctx, filter, databases.PaginatedOpts(limit, page))
	if err != nil {
		config.ErrorStatus("failed to get vehicles", http.StatusNotFound, w, err)
		return
	}
	// Because the frontend requires that the data elements exist, if
	// len == 0 then we will just return an empty data object
	if len(dbResp) == 0 {
		dbResp = []models.Vehicle{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// VehicleByIDHandler returns a vehicle by ID
func (v Vehicle) VehicleByIDHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicle_id"]

	zap.S().Debugf("vehicle_id: %v", vehicleID)

	vID, err := primitive.ObjectIDFromHex(vehicleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := v.DB.FindOne(ctx, bson.M{"_id": vID})
	if err != nil {
		config.ErrorStatus("failed to get vehicle by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateVehicleHandler adds a vehicle to the fleet
func (v Vehicle) CreateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	var vehicle models.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&vehicle); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(vehicle); err != nil {
		config.ErrorStatus("invalid vehicle payload", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	count, err := v.DB.CountDocuments(ctx, bson.M{"numberPlate": vehicle.NumberPlate})
	if err != nil {
		config.ErrorStatus("failed to check number plate", http.StatusInternalServerError, w, err)
		return
	}
	if count > 0 {
		config.ErrorStatus("number plate already registered", http.StatusConflict, w, nil)
		return
	}

	vehicle.ID = primitive.NewObjectID()
	vehicle.AvailabilityStatus = true
	vehicle.CreatedAt = time.Now()
	vehicle.UpdatedAt = vehicle.CreatedAt

	if _, err := v.DB.InsertOne(ctx, vehicle); err != nil {
		config.ErrorStatus("failed to create vehicle", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Vehicle created successfully",
		"id":      vehicle.ID.Hex(),
	})
}

// UpdateVehicleHandler applies a partial update to a vehicle
func (v Vehicle) UpdateVehicleHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicle_id"]

	vID, err := primitive.ObjectIDFromHex(vehicleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var update models.VehicleUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if err := validate.Struct(update); err != nil {
		config.ErrorStatus("invalid vehicle payload", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	set := bson.M{"updatedAt": time.Now()}
	if update.Name != nil {
		set["name"] = *update.Name
	}
	if update.Type != nil {
		set["type"] = *update.Type
	}
	if update.DailyRate != nil {
		set["dailyRate"] = *update.DailyRate
	}
	if update.Description != nil {
		set["description"] = *update.Description
	}
	if update.AvailabilityStatus != nil {
		set["availabilityStatus"] = *update.AvailabilityStatus
	}
	if update.NumberPlate != nil {
		count, err := v.DB.CountDocuments(ctx, bson.M{"numberPlate": *update.NumberPlate, "_id": bson.M{"$ne": vID}})
		if err != nil {
			config.ErrorStatus("failed to check number plate", http.StatusInternalServerError, w, err)
			return
		}
		if count > 0 {
			config.ErrorStatus("number plate already registered", http.StatusConflict, w, nil)
			return
		}
		set["numberPlate"] = *update.NumberPlate
	}
	if update.Mileage != nil {
		set["mileage"] = *update.Mileage
	}
	if update.FuelType != nil {
		set["fuelType"] = *update.FuelType
	}
	if update.Seats != nil {
		set["seats"] = *update.Seats
	}
	if update.Features != nil {
		set["features"] = update.Features
	}
	if update.Image != nil {
		set["image"] = *update.Image
	}

	res, err := v.DB.UpdateOne(ctx, bson.M{"_id": vID}, bson.M{"$set": set})
	if err != nil {
		config.ErrorStatus("failed to update vehicle", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("vehicle not found", http.StatusNotFound, w, nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Vehicle updated successfully",
	})
}

// DeleteVehicleHandler removes a vehicle from the fleet. Vehicles with
// bookings still in flight cannot be deleted. The vehicle image, if hosted on
// cloudinary, is destroyed after the record is removed.
func (v Vehicle) DeleteVehicleHandler(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["vehicle_id"]

	vID, err := primitive.ObjectIDFromHex(vehicleID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	active, err := v.BDB.CountDocuments(ctx, bson.M{
		"vehicle": vID,
		"status":  bson.M{"$in": []models.BookingStatus{models.BookingPending, models.BookingApproved}},
	})
	if err != nil {
		config.ErrorStatus("failed to check vehicle bookings", http.StatusInternalServerError, w, err)
		return
	}
	if active > 0 {
		config.ErrorStatus("vehicle has active bookings", http.StatusConflict, w, nil)
		return
	}

	vehicle, err := v.DB.FindOne(ctx, bson.M{"_id": vID})
	if err != nil {
		config.ErrorStatus("failed to get vehicle by ID", http.StatusNotFound, w, err)
		return
	}

	deleted, err := v.DB.DeleteOne(ctx, bson.M{"_id": vID})
	if err != nil {
		config.ErrorStatus("failed to delete vehicle", http.StatusInternalServerError, w, err)
		return
	}
	if deleted == 0 {
		config.ErrorStatus("vehicle not found", http.StatusNotFound, w, nil)
		return
	}

	forgetVehicleLock(vID)

	if vehicle.Image != "" {
		go destroyCloudinaryImage(vehicle.Image)
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message": "Vehicle deleted successfully",
	})
}
