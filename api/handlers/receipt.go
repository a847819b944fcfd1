package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/phpdave11/gofpdf"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fleetstar/fleetstar-api/api"
	"github.com/fleetstar/fleetstar-api/config"
	"github.com/fleetstar/fleetstar-api/databases"
	"github.com/fleetstar/fleetstar-api/models"
)

// Receipt builds booking receipt PDFs
type Receipt struct {
	BDB databases.BookingDatabase
	VDB databases.VehicleDatabase
	UDB databases.UserDatabase
}

// BookingReceiptHandler renders a PDF receipt for a paid booking. Customers
// may only download receipts for their own bookings.
func (h Receipt) BookingReceiptHandler(w http.ResponseWriter, r *http.Request) {
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

	booking, err := h.BDB.FindOne(ctx, bson.M{"_id": bID})
	if err != nil {
		config.ErrorStatus("failed to get booking by ID", http.StatusNotFound, w, err)
		return
	}

	if !identity.IsStaff() && booking.Customer.Hex() != identity.UserID {
		config.ErrorStatus("forbidden", http.StatusForbidden, w, nil)
		return
	}
	if booking.PaymentStatus != models.PaymentPaid {
		config.ErrorStatus("booking is not paid", http.StatusConflict, w, nil)
		return
	}

	vehicle, err := h.VDB.FindOne(ctx, bson.M{"_id": booking.Vehicle})
	if err != nil {
		config.ErrorStatus("failed to get vehicle by ID", http.StatusNotFound, w, err)
		return
	}
	customer, err := h.UDB.FindOne(ctx, bson.M{"_id": booking.Customer})
	if err != nil {
		config.ErrorStatus("failed to get customer", http.StatusNotFound, w, err)
		return
	}

	pdfBytes, filename, err := buildReceiptPDF(*booking, *vehicle, *customer)
	if err != nil {
		config.ErrorStatus("failed to build receipt", http.StatusInternalServerError, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(pdfBytes)
}

func buildReceiptPDF(booking models.Booking, vehicle models.Vehicle, customer models.User) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Booking Receipt", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "FLEETSTAR RENTALS")
	pdf.Ln(8)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, "Booking Receipt")
	pdf.Ln(12)

	pdf.Cell(0, 7, "Receipt No  : RCP-"+booking.ID.Hex())
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued      : "+time.Now().Format("2006-01-02 15:04"))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Name  : "+customer.Name)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Email : "+customer.Email)
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Rental details:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Vehicle      : %s (%s)", vehicle.Name, vehicle.NumberPlate),
		fmt.Sprintf("Type         : %s", vehicle.Type),
		fmt.Sprintf("Pickup       : %s at %s", booking.PickupDate.Format("Jan 2, 2006"), booking.PickupLocation),
		fmt.Sprintf("Return       : %s", booking.ReturnDate.Format("Jan 2, 2006")),
		fmt.Sprintf("Duration     : %d day(s)", booking.DurationDays()),
		fmt.Sprintf("Daily rate   : $%.2f", vehicle.DailyRate),
	}
	for _, line := range lines {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, fmt.Sprintf("Total paid: $%.2f", booking.TotalCost))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 10)
	pdf.MultiCell(0, 6, "Thank you for choosing FleetStar Rentals. Please present this receipt and a valid driving licence at pickup.", "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}

	filename := fmt.Sprintf("RECEIPT_%s.pdf", booking.ID.Hex())
	return buf.Bytes(), filename, nil
}
