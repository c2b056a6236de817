package db

import (
	"context"
	"errors"

	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNotFound is returned when no document matches the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when a replace loses a race with another writer.
	ErrVersionConflict = errors.New("document version conflict")
)

// RecordStore defines the persistence operations for reservation and maintenance records.
type RecordStore interface {
	InsertRecord(ctx context.Context, record models.Record) (models.Record, error)
	FindRecordByID(ctx context.Context, id string) (*models.Record, error)
	// FindRecords returns matching records ordered newest-created first.
	FindRecords(ctx context.Context, filter bson.M) ([]models.Record, error)
	// ReplaceRecord writes record only if the stored version still equals expectedVersion.
	ReplaceRecord(ctx context.Context, record models.Record, expectedVersion int64) error
	DeleteRecord(ctx context.Context, id string) error
}

// VehicleCollection defines the vehicle lookups used to enrich records.
type VehicleCollection interface {
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehiclesByIDs(ctx context.Context, ids []string) (map[string]models.Vehicle, error)
}
