package models

// TypeCount is a booking count grouped by vehicle type.
type TypeCount struct {
	Type  string `json:"type" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

// MonthCount is a booking count grouped by calendar month (1-12).
type MonthCount struct {
	Month int   `json:"month" bson:"_id"`
	Count int64 `json:"count" bson:"count"`
}

// DashboardStats is the aggregate reporting payload. Every field defaults to
// zero on an empty dataset.
type DashboardStats struct {
	TotalBookings    int64        `json:"totalBookings"`
	TotalRevenue     float64      `json:"totalRevenue"`
	ActiveVehicles   int64        `json:"activeVehicles"`
	Customers        int64        `json:"customers"`
	Staff            int64        `json:"staff"`
	BookingsByType   []TypeCount  `json:"bookingsByType"`
	BookingsOverTime []MonthCount `json:"bookingsOverTime"`
}
