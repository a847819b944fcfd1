package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Payment statuses for ledger entries.
const (
	PaymentEntrySuccess = "success"
	PaymentEntryFailed  = "failed"
	PaymentEntryPending = "pending"
)

// Payment holds the structure for the payments collection. Entries are
// append-only: one per confirmed gateway payment, never mutated afterwards.
type Payment struct {
	ID            primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Booking       primitive.ObjectID `json:"booking" bson:"booking"`
	Amount        float64            `json:"amount" bson:"amount"`
	PaymentMethod string             `json:"paymentMethod" bson:"paymentMethod"`
	PaymentDate   time.Time          `json:"paymentDate" bson:"paymentDate"`
	Status        string             `json:"status" bson:"status"`
	TransactionID string             `json:"transactionId,omitempty" bson:"transactionId,omitempty"`
	CreatedAt     time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt" bson:"updatedAt"`
}
