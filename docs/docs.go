// Package docs FleetStar Rentals API.
//
// Documentation of FleetStar Rentals API.
//
//     Schemes: https
//     BasePath: /
//     Version: 1.0.0
//     Host: https://fleetstar-api.herokuapp.com
//
//     Consumes:
//     - application/json
//
//     Produces:
//     - application/json
//
//     Security:
//     - bearer
//
//    SecurityDefinitions:
//    bearer:
//      type: apiKey
//      name: Authorization
//      in: header
//
// swagger:meta
package docs

import (
	"github.com/fleetstar/fleetstar-api/models"
)

// swagger:route GET /health health healthEndpointID
// Lists the healthchex of the web service api.
// responses:
//   200: healthResponse

// Shows the current health of the api. true means it is alive, false means it is not.
// swagger:response healthResponse
type healthResponseWrapper struct {
	// in:body
	Body models.HealthCheckResponse
}

// swagger:route GET /api/v1/vehicles/{vehicle_id} vehicles vehicleByID
// Gets a single vehicle by ID.
// responses:
//   200: vehicleByIDResponse

// Shows a single vehicle by the given {ID}
// swagger:response vehicleByIDResponse
type vehicleByIDResponseWrapper struct {
	// in:body
	Body models.Vehicle
}

// swagger:route GET /api/v1/bookings/{booking_id} bookings bookingByID
// Gets a single booking by ID.
// responses:
//   200: bookingByIDResponse

// Shows a single booking by the given {ID}
// swagger:response bookingByIDResponse
type bookingByIDResponseWrapper struct {
	// in:body
	Body models.Booking
}

// The generic error envelope returned by every failing operation.
// swagger:response errorMessageResponse
type errorMessageResponseWrapper struct {
	// in:body
	Body models.ErrorMessageResponse
}

// swagger:route GET /api/v1/dashboard/stats dashboard dashboardStats
// Lists fleet wide booking and revenue figures.
// responses:
//   200: dashboardStatsResponse

// Shows aggregate booking counts, revenue and fleet utilization.
// swagger:response dashboardStatsResponse
type dashboardStatsResponseWrapper struct {
	// in:body
	Body models.DashboardStats
}
