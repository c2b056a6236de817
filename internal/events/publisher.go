// Package events publishes record lifecycle notifications so that other
// parts of the rental platform (fleet board, mobile admin app) can react to
// reservations and maintenance jobs changing state.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/ukydev/car-rental/internal/models"
)

// Type names a lifecycle event.
type Type string

const (
	TypeCreated       Type = "created"
	TypeUpdated       Type = "updated"
	TypeStatusChanged Type = "status_changed"
	TypeDeleted       Type = "deleted"
)

// Event describes one change to a record.
type Event struct {
	ID             string        `json:"id"`
	Type           Type          `json:"type"`
	Collection     string        `json:"collection"`
	RecordID       string        `json:"recordId"`
	SubjectID      string        `json:"subjectId"`
	Status         models.Status `json:"status"`
	PreviousStatus models.Status `json:"previousStatus,omitempty"`
	Version        int64         `json:"version"`
	OccurredAt     time.Time     `json:"occurredAt"`
}

// NewEvent builds an event for record with a fresh id.
func NewEvent(typ Type, collection string, record models.Record) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Collection: collection,
		RecordID:   record.ID.Hex(),
		SubjectID:  record.SubjectID.Hex(),
		Status:     record.Status,
		Version:    record.Version,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

// Publish implements Publisher.
func (Discard) Publish(context.Context, Event) error { return nil }
