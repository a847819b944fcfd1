package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// VehicleTypes are the accepted vehicle categories.
var VehicleTypes = []string{"Sedan", "SUV", "Truck", "Van", "Luxury", "Electric", "Hatchback", "Sports"}

// FuelTypes are the accepted fuel types.
var FuelTypes = []string{"Petrol", "Diesel", "Electric", "Hybrid", "CNG"}

// Vehicle holds the structure for the vehicles collection
type Vehicle struct {
	ID                 primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name               string             `json:"name" bson:"name" validate:"required,max=50"`
	Type               string             `json:"type" bson:"type" validate:"required,oneof=Sedan SUV Truck Van Luxury Electric Hatchback Sports"`
	DailyRate          float64            `json:"dailyRate" bson:"dailyRate" validate:"gte=0"`
	Description        string             `json:"description,omitempty" bson:"description,omitempty" validate:"max=500"`
	AvailabilityStatus bool               `json:"availabilityStatus" bson:"availabilityStatus"`
	NumberPlate        string             `json:"numberPlate" bson:"numberPlate" validate:"required"`
	Mileage            int                `json:"mileage,omitempty" bson:"mileage,omitempty" validate:"gte=0"`
	FuelType           string             `json:"fuelType,omitempty" bson:"fuelType,omitempty" validate:"omitempty,oneof=Petrol Diesel Electric Hybrid CNG"`
	Seats              int                `json:"seats,omitempty" bson:"seats,omitempty" validate:"omitempty,gte=1,lte=20"`
	Features           []string           `json:"features,omitempty" bson:"features,omitempty"`
	Image              string             `json:"image,omitempty" bson:"image,omitempty"`
	CreatedAt          time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// VehicleUpdate carries the mutable vehicle fields for partial updates.
// Nil pointers mean "leave unchanged".
type VehicleUpdate struct {
	Name               *string  `json:"name,omitempty" validate:"omitempty,max=50"`
	Type               *string  `json:"type,omitempty" validate:"omitempty,oneof=Sedan SUV Truck Van Luxury Electric Hatchback Sports"`
	DailyRate          *float64 `json:"dailyRate,omitempty" validate:"omitempty,gte=0"`
	Description        *string  `json:"description,omitempty" validate:"omitempty,max=500"`
	AvailabilityStatus *bool    `json:"availabilityStatus,omitempty"`
	NumberPlate        *string  `json:"numberPlate,omitempty"`
	Mileage            *int     `json:"mileage,omitempty" validate:"omitempty,gte=0"`
	FuelType           *string  `json:"fuelType,omitempty" validate:"omitempty,oneof=Petrol Diesel Electric Hybrid CNG"`
	Seats              *int     `json:"seats,omitempty" validate:"omitempty,gte=1,lte=20"`
	Features           []string `json:"features,omitempty"`
	Image              *string  `json:"image,omitempty"`
}
