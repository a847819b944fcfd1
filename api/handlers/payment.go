package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

const webhookMaxBodyBytes = int64(65536)

// Payment exported for testing purposes
type Payment struct {
	DB  databases.PaymentDatabase
	BDB databases.BookingDatabase
}

type checkoutRequest struct {
	BookingID string `json:"bookingId"`
}

// PaymentsHandler returns the payment ledger, newest first
func (h Payment) PaymentsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		zap.S().Debugf("limit not set, using default, err: %v", err)
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	filter := bson.M{}
	if booking := r.URL.Query().Get("booking"); booking != "" {
		bID, err := primitive.ObjectIDFromHex(booking)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		filter["booking"] = bID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	opts := databases.PaginatedOpts(limit, page).SetSort(bson.D{{Key: "createdAt", Value: -1}})
	dbResp, err := h.DB.Find(ctx, filter, opts)
	if err != nil {
		config.ErrorStatus("failed to get payments", http.StatusNotFound, w, err)
		return
	}
	if len(dbResp) == 0 {
		dbResp = []models.Payment{}
	}
	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// CreateCheckoutSessionHandler starts a stripe checkout session for an
// unpaid booking owned by the caller
func (h Payment) CreateCheckoutSessionHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := api.IdentityFromContext(r.Context())
	if !ok {
		config.ErrorStatus("unauthorized", http.StatusUnauthorized, w, nil)
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	bID, err := primitive.ObjectIDFromHex(req.BookingID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	booking, err := h.BDB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	if !identity.IsStaff() && booking.Customer.Hex() != identity.UserID {
		config.ErrorStatus("forbidden", http.StatusForbidden, w, nil)
		return
	}
	if booking.Status != models.BookingPending {
		config.ErrorStatus("booking is not awaiting payment", http.StatusConflict, w, nil)
		return
	}
	if booking.PaymentStatus == models.PaymentPaid {
		config.ErrorStatus("booking is already paid", http.StatusConflict, w, nil)
		return
	}

	frontendURL := os.Getenv("FRONTEND_URL")

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(string(stripe.CurrencyUSD)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(fmt.Sprintf("FleetStar booking %s", booking.ID.Hex())),
						Description: stripe.String(fmt.Sprintf("%d day rental, %s to %s",
							booking.DurationDays(),
							booking.PickupDate.Format("Jan 2, 2006"),
							booking.ReturnDate.Format("Jan 2, 2006"))),
					},
					UnitAmount: stripe.Int64(int64(math.Round(booking.TotalCost * 100))),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendURL + "/bookings?payment=success"),
		CancelURL:  stripe.String(frontendURL + "/bookings?payment=cancelled"),
	}
	params.AddMetadata("bookingId", booking.ID.Hex())

	sess, err := session.New(params)
	if err != nil {
		config.ErrorStatus("failed to create checkout session", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"sessionId": sess.ID,
		"url":       sess.URL,
	})
}

// StripeWebhookHandler confirms checkout payments. The paid flip is a
// compare-and-swap on the pending payment status, so a redelivered event
// records the payment exactly once.
func (h Payment) StripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, webhookMaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		config.ErrorStatus("failed to read webhook body", http.StatusServiceUnavailable, w, err)
		return
	}

	event, err := webhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), os.Getenv("STRIPE_WEBHOOK_SECRET"))
	if err != nil {
		config.ErrorStatus("failed to verify webhook signature", http.StatusBadRequest, w, err)
		return
	}

	if event.Type != "checkout.session.completed" {
		zap.S().Debugf("ignoring stripe event type %s", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		config.ErrorStatus("failed to parse checkout session", http.StatusBadRequest, w, err)
		return
	}

	bID, err := primitive.ObjectIDFromHex(sess.Metadata["bookingId"])
	if err != nil {
		config.ErrorStatus("missing bookingId metadata", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := time.Now()
	res, err := h.BDB.UpdateOne(ctx,
		bson.M{"_id": bID, "paymentStatus": models.PaymentPending},
		bson.M{"$set": bson.M{"paymentStatus": models.PaymentPaid, "updatedAt": now}})
	if err != nil {
		config.ErrorStatus("failed to update booking payment", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// Already recorded on a prior delivery, acknowledge and move on.
		zap.S().Infow("duplicate payment event ignored", "bookingId", bID.Hex())
		w.WriteHeader(http.StatusOK)
		return
	}

	payment := models.Payment{
		ID:            primitive.NewObjectID(),
		Booking:       bID,
		Amount:        float64(sess.AmountTotal) / 100,
		PaymentMethod: "card",
		PaymentDate:   now,
		Status:        models.PaymentEntrySuccess,
		TransactionID: sess.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := h.DB.InsertOne(ctx, payment); err != nil {
		config.ErrorStatus("failed to record payment", http.StatusInternalServerError, w, err)
		return
	}

	zap.S().Infow("payment recorded",
		"bookingId", bID.Hex(),
		"amount", payment.Amount,
		"sessionId", sess.ID,
	)

	w.WriteHeader(http.StatusOK)
}
