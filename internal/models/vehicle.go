package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// Vehicle represents a rental fleet vehicle.
type Vehicle struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Brand     string             `bson:"brand" json:"brand"`
	Model     string             `bson:"model" json:"model"`
	Year      int                `bson:"year" json:"year"`
	Plate     string             `bson:"plate" json:"plate"`
	Class     string             `bson:"class" json:"class"` // "economy", "compact", "suv", "luxury", "van"
	Color     string             `bson:"color" json:"color"`
	Images    []string           `bson:"images" json:"images"`
	Status    string             `bson:"status" json:"status"` // "available", "rented", "maintenance"
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// VehicleSnapshot holds the display fields copied onto a record when it is returned.
type VehicleSnapshot struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Images []string `json:"images"`
	Plate  string   `json:"plate"`
	Class  string   `json:"class"`
	Color  string   `json:"color"`
	Year   int      `json:"year"`
	Model  string   `json:"model"`
}

// Snapshot returns the display fields of the vehicle.
func (v *Vehicle) Snapshot() *VehicleSnapshot {
	return &VehicleSnapshot{
		ID:     v.ID.Hex(),
		Name:   v.Name,
		Images: v.Images,
		Plate:  v.Plate,
		Class:  v.Class,
		Color:  v.Color,
		Year:   v.Year,
		Model:  v.Model,
	}
}
