package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/api/scheduler"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	Scheduler *scheduler.Scheduler
	dbHelper  databases.DatabaseHelper
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	r := mux.NewRouter()

	auth := Auth{DB: databases.NewUserDatabase(a.dbHelper)}
	u := User{DB: databases.NewUserDatabase(a.dbHelper), BDB: databases.NewBookingDatabase(a.dbHelper)}
	v := Vehicle{DB: databases.NewVehicleDatabase(a.dbHelper), BDB: databases.NewBookingDatabase(a.dbHelper)}
	b := Booking{
		DB:  databases.NewBookingDatabase(a.dbHelper),
		VDB: databases.NewVehicleDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
	}
	p := Payment{
		DB:  databases.NewPaymentDatabase(a.dbHelper),
		BDB: databases.NewBookingDatabase(a.dbHelper),
	}
	d := Dashboard{
		BDB: databases.NewBookingDatabase(a.dbHelper),
		VDB: databases.NewVehicleDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
	}
	rc := Receipt{
		BDB: databases.NewBookingDatabase(a.dbHelper),
		VDB: databases.NewVehicleDatabase(a.dbHelper),
		UDB: databases.NewUserDatabase(a.dbHelper),
	}
	cloudinaryHandler := CloudinaryHandler{}

	staffOnly := api.RequireRoles(models.StaffRoles...)
	adminOnly := api.RequireRoles(models.RoleAdmin)

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.TimeoutMiddleware(30 * time.Second))

	apiCreate.Handle("/auth/register", http.HandlerFunc(auth.RegisterHandler)).Methods("POST")
	apiCreate.Handle("/auth/login", http.HandlerFunc(auth.LoginHandler)).Methods("POST")
	apiCreate.Handle("/auth/profile", api.Middleware(http.HandlerFunc(auth.ProfileHandler))).Methods("GET")

	apiCreate.Handle("/users", api.Middleware(adminOnly(http.HandlerFunc(u.UsersHandler)))).Methods("GET")
	apiCreate.Handle("/users/{user_id}", api.Middleware(adminOnly(http.HandlerFunc(u.UserByIDHandler)))).Methods("GET")
	apiCreate.Handle("/users/{user_id}", api.Middleware(adminOnly(http.HandlerFunc(u.UpdateUserHandler)))).Methods("PUT")
	apiCreate.Handle("/users/{user_id}", api.Middleware(adminOnly(http.HandlerFunc(u.DeleteUserHandler)))).Methods("DELETE")

	apiCreate.Handle("/vehicles", http.HandlerFunc(v.VehiclesHandler)).Methods("GET")
	apiCreate.Handle("/vehicles/{vehicle_id}", http.HandlerFunc(v.VehicleByIDHandler)).Methods("GET")
	apiCreate.Handle("/vehicles", api.Middleware(staffOnly(http.HandlerFunc(v.CreateVehicleHandler)))).Methods("POST")
	apiCreate.Handle("/vehicles/{vehicle_id}", api.Middleware(staffOnly(http.HandlerFunc(v.UpdateVehicleHandler)))).Methods("PUT")
	apiCreate.Handle("/vehicles/{vehicle_id}", api.Middleware(staffOnly(http.HandlerFunc(v.DeleteVehicleHandler)))).Methods("DELETE")

	apiCreate.Handle("/bookings", api.Middleware(http.HandlerFunc(b.CreateBookingHandler))).Methods("POST")
	apiCreate.Handle("/bookings", api.Middleware(staffOnly(http.HandlerFunc(b.BookingsHandler)))).Methods("GET")
	apiCreate.Handle("/bookings/my", api.Middleware(http.HandlerFunc(b.MyBookingsHandler))).Methods("GET")
	apiCreate.Handle("/bookings/{booking_id}", api.Middleware(http.HandlerFunc(b.BookingByIDHandler))).Methods("GET")
	apiCreate.Handle("/bookings/{booking_id}/cancel", api.Middleware(http.HandlerFunc(b.CancelBookingHandler))).Methods("PUT")
	apiCreate.Handle("/bookings/{booking_id}/status", api.Middleware(staffOnly(http.HandlerFunc(b.UpdateBookingStatusHandler)))).Methods("PUT")
	apiCreate.Handle("/bookings/{booking_id}/complete", api.Middleware(staffOnly(http.HandlerFunc(b.CompleteBookingHandler)))).Methods("PUT")
	apiCreate.Handle("/bookings/{booking_id}/receipt", api.Middleware(http.HandlerFunc(rc.BookingReceiptHandler))).Methods("GET")

	apiCreate.Handle("/payments", api.Middleware(staffOnly(http.HandlerFunc(p.PaymentsHandler)))).Methods("GET")
	apiCreate.Handle("/payments/create-checkout-session", api.Middleware(http.HandlerFunc(p.CreateCheckoutSessionHandler))).Methods("POST")
	apiCreate.Handle("/payments/webhook", http.HandlerFunc(p.StripeWebhookHandler)).Methods("POST")

	apiCreate.Handle("/dashboard/stats", api.Middleware(staffOnly(http.HandlerFunc(d.StatsHandler)))).Methods("GET")

	apiCreate.Handle("/generate-signature", api.Middleware(staffOnly(http.HandlerFunc(cloudinaryHandler.GenerateSignature)))).Methods("POST")

	// swagger docs hosted at "/"
	r.PathPrefix("/").Handler(http.StripPrefix("/", http.FileServer(http.Dir("./docs/"))))
	return r
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("fleetstar-api has connected to the database")

	// initialize stripe
	stripeKey := os.Getenv("STRIPE_SECRET_KEY")
	if stripeKey == "" {
		return fmt.Errorf("stripe secret key is not set")
	}
	stripe.Key = stripeKey

	// start background booking jobs
	a.Scheduler = scheduler.NewScheduler(
		databases.NewBookingDatabase(a.dbHelper),
		databases.NewVehicleDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
	)
	a.Scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}
