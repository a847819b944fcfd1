package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

// Dashboard exported for testing purposes
type Dashboard struct {
	BDB databases.BookingDatabase
	VDB databases.VehicleDatabase
	UDB databases.UserDatabase
}

// StatsHandler aggregates the back-office dashboard numbers. Every figure
// falls back to zero on an empty dataset.
func (d Dashboard) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	stats := models.DashboardStats{
		BookingsByType:   []models.TypeCount{},
		BookingsOverTime: []models.MonthCount{},
	}

	totalBookings, err := d.BDB.CountDocuments(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to count bookings", http.StatusInternalServerError, w, err)
		return
	}
	stats.TotalBookings = totalBookings

	activeVehicles, err := d.VDB.CountDocuments(ctx, bson.M{"availabilityStatus": true})
	if err != nil {
		config.ErrorStatus("failed to count vehicles", http.StatusInternalServerError, w, err)
		return
	}
	stats.ActiveVehicles = activeVehicles

	customers, err := d.UDB.CountDocuments(ctx, bson.M{"role": models.RoleCustomer})
	if err != nil {
		config.ErrorStatus("failed to count customers", http.StatusInternalServerError, w, err)
		return
	}
	stats.Customers = customers

	staff, err := d.UDB.CountDocuments(ctx, bson.M{"role": bson.M{"$in": models.StaffRoles}})
	if err != nil {
		config.ErrorStatus("failed to count staff", http.StatusInternalServerError, w, err)
		return
	}
	stats.Staff = staff

	var revenue []struct {
		Total float64 `bson:"total"`
	}
	revenuePipeline := []bson.M{
		{"$match": bson.M{"paymentStatus": models.PaymentPaid}},
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$totalCost"}}},
	}
	if err := d.BDB.Aggregate(ctx, revenuePipeline, &revenue); err != nil {
		config.ErrorStatus("failed to aggregate revenue", http.StatusInternalServerError, w, err)
		return
	}
	if len(revenue) > 0 {
		stats.TotalRevenue = revenue[0].Total
	}

	var byType []models.TypeCount
	byTypePipeline := []bson.M{
		{"$match": bson.M{"status": bson.M{"$nin": models.ConflictExcludedStatuses}}},
		{"$lookup": bson.M{
			"from":         "vehicles",
			"localField":   "vehicle",
			"foreignField": "_id",
			"as":           "vehicleDoc",
		}},
		{"$unwind": "$vehicleDoc"},
		{"$group": bson.M{"_id": "$vehicleDoc.type", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"count": -1}},
	}
	if err := d.BDB.Aggregate(ctx, byTypePipeline, &byType); err != nil {
		config.ErrorStatus("failed to aggregate bookings by type", http.StatusInternalServerError, w, err)
		return
	}
	if len(byType) > 0 {
		stats.BookingsByType = byType
	}

	yearStart := time.Date(time.Now().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	var overTime []models.MonthCount
	overTimePipeline := []bson.M{
		{"$match": bson.M{"createdAt": bson.M{"$gte": yearStart}}},
		{"$group": bson.M{"_id": bson.M{"$month": "$createdAt"}, "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	}
	if err := d.BDB.Aggregate(ctx, overTimePipeline, &overTime); err != nil {
		config.ErrorStatus("failed to aggregate bookings over time", http.StatusInternalServerError, w, err)
		return
	}
	if len(overTime) > 0 {
		stats.BookingsOverTime = overTime
	}

	b, err := json.Marshal(stats)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
