package models

import (
	"bytes"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status represents the lifecycle state of a reservation or maintenance job.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusActive    Status = "Active"
	StatusCompleted Status = "Completed"
)

// AllStatuses lists the closed set of record statuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusActive, StatusCompleted}

// IsValidStatus checks if a status is one of the allowed values (case-sensitive).
func IsValidStatus(status Status) bool {
	switch status {
	case StatusPending, StatusActive, StatusCompleted:
		return true
	default:
		return false
	}
}

// CanAdvanceTo reports whether moving from s to next follows the forward
// lifecycle Pending -> Active -> Completed. Rewriting the same status is allowed.
func (s Status) CanAdvanceTo(next Status) bool {
	if s == next {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusActive
	case StatusActive:
		return next == StatusCompleted
	default:
		return false
	}
}

// Record is a reservation or maintenance job attached to a vehicle.
type Record struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SubjectID primitive.ObjectID `json:"subjectId" bson:"subject_id"`
	Category  string             `json:"category" bson:"category"`
	StartDate time.Time          `json:"startDate" bson:"start_date"`
	EndDate   time.Time          `json:"endDate" bson:"end_date"`
	Status    Status             `json:"status" bson:"status"`
	Version   int64              `json:"version" bson:"version"`
	CreatedAt time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt time.Time          `json:"updatedAt" bson:"updated_at"`
}

// RecordView is a record enriched with a snapshot of its vehicle.
type RecordView struct {
	Record
	Subject *VehicleSnapshot `json:"subject,omitempty"`
}

// Optional wraps a JSON field so callers can tell an absent field from one
// sent as null.
type Optional[T any] struct {
	Value T
	Set   bool
	Null  bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Set: true}
}

// UnmarshalJSON is only invoked for keys present in the payload.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Null = true
		return nil
	}
	return json.Unmarshal(data, &o.Value)
}

// Present reports whether the field carries a non-null value.
func (o Optional[T]) Present() bool {
	return o.Set && !o.Null
}

// RecordInput is the body of create and update requests.
type RecordInput struct {
	SubjectID Optional[string] `json:"subjectId"`
	Category  Optional[string] `json:"category"`
	StartDate Optional[string] `json:"startDate"`
	EndDate   Optional[string] `json:"endDate"`
	Status    Optional[string] `json:"status"`
}

// Empty reports whether no field was supplied at all.
func (in RecordInput) Empty() bool {
	return !in.SubjectID.Set && !in.Category.Set && !in.StartDate.Set &&
		!in.EndDate.Set && !in.Status.Set
}
