// Package lifecycle validates and persists reservation and maintenance
// records. Every write is checked against the record invariants before it
// reaches the store:
//
//   - startDate is strictly before endDate
//   - status is Pending, Active or Completed
//   - subjectId is a well-formed vehicle id
//   - category is not blank
//
// Updates are partial: only supplied fields are validated and merged, and
// the date range is re-checked on the merged record.
package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/car-rental/internal/db"
	"github.com/ukydev/car-rental/internal/events"
	"github.com/ukydev/car-rental/internal/metrics"
	"github.com/ukydev/car-rental/internal/models"
	"github.com/ukydev/car-rental/internal/validation"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Options configures a Controller. Zero values fall back to defaults.
type Options struct {
	Collection string
	Policy     TransitionPolicy
	Publisher  events.Publisher
	Metrics    *metrics.Metrics
	Logger     *log.Entry
	Now        func() time.Time
}

// Controller runs the record lifecycle for one collection.
type Controller struct {
	store      db.RecordStore
	vehicles   db.VehicleCollection
	collection string
	policy     TransitionPolicy
	publisher  events.Publisher
	metrics    *metrics.Metrics
	logger     *log.Entry
	now        func() time.Time
}

// NewController creates a controller over store, enriching records from vehicles.
func NewController(store db.RecordStore, vehicles db.VehicleCollection, opts Options) *Controller {
	c := &Controller{
		store:      store,
		vehicles:   vehicles,
		collection: opts.Collection,
		policy:     opts.Policy,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if c.collection == "" {
		c.collection = "records"
	}
	if c.policy == "" {
		c.policy = PolicyForward
	}
	if c.publisher == nil {
		c.publisher = events.Discard{}
	}
	if c.logger == nil {
		c.logger = log.NewEntry(log.StandardLogger())
	}
	c.logger = c.logger.WithField("collection", c.collection)
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Collection returns the name of the collection the controller manages.
func (c *Controller) Collection() string {
	return c.collection
}

// Noun names a single record of the collection, e.g. "reservation".
func (c *Controller) Noun() string {
	return recordNoun(c.collection)
}

// List returns every record, newest first.
func (c *Controller) List(ctx context.Context) (views []models.RecordView, err error) {
	defer c.observe("list", time.Now(), &err)
	return c.find(ctx, "list", bson.M{})
}

// ListBySubject returns the records that reference one vehicle.
func (c *Controller) ListBySubject(ctx context.Context, subjectID string) (views []models.RecordView, err error) {
	defer c.observe("list_by_subject", time.Now(), &err)
	if !validation.IsValidID(subjectID) {
		return nil, malformedID("subjectId")
	}
	oid, _ := primitive.ObjectIDFromHex(subjectID)
	return c.find(ctx, "list", bson.M{"subject_id": oid})
}

// ListByStatus returns the records currently in status.
func (c *Controller) ListByStatus(ctx context.Context, status string) (views []models.RecordView, err error) {
	defer c.observe("list_by_status", time.Now(), &err)
	if !validation.IsValidStatus(status) {
		return nil, invalidValue("status", "status must be one of: "+validation.AllowedStatuses())
	}
	return c.find(ctx, "list", bson.M{"status": status})
}

// GetByID returns one record. A malformed id fails before the store is touched.
func (c *Controller) GetByID(ctx context.Context, id string) (view *models.RecordView, err error) {
	defer c.observe("get", time.Now(), &err)
	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v := c.enrichOne(ctx, *record)
	return &v, nil
}

// Create validates in and stores a new record. Validation stops at the first
// failing field in the order subjectId, category, startDate, endDate, date
// range, status.
func (c *Controller) Create(ctx context.Context, in models.RecordInput) (view *models.RecordView, err error) {
	defer c.observe("create", time.Now(), &err)

	now := c.timestamp()
	record := models.Record{CreatedAt: now, UpdatedAt: now, Version: 1}
	if verr := apply(&record, in, true); verr != nil {
		return nil, verr
	}

	stored, err := c.store.InsertRecord(ctx, record)
	if err != nil {
		return nil, c.storeFailure("create", err)
	}

	c.logger.WithFields(log.Fields{
		"record_id":  stored.ID.Hex(),
		"subject_id": stored.SubjectID.Hex(),
		"status":     stored.Status,
	}).Info("Created record")
	c.metrics.IncrementStatusChange(c.collection, string(stored.Status))
	c.publish(ctx, events.NewEvent(events.TypeCreated, c.collection, stored))

	v := c.enrichOne(ctx, stored)
	return &v, nil
}

// Update applies the supplied fields of in to the record with id. Nothing is
// written unless the merged record passes every check. ifMatch, when not
// zero, must equal the stored version.
func (c *Controller) Update(ctx context.Context, id string, in models.RecordInput, ifMatch int64) (view *models.RecordView, err error) {
	defer c.observe("update", time.Now(), &err)

	existing, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, &Error{Kind: KindNoOpUpdate, Message: "no fields provided for update"}
	}
	if ifMatch != 0 && ifMatch != existing.Version {
		return nil, &Error{Kind: KindConflict, Message: recordNoun(c.collection) + " was modified by another request"}
	}

	merged := *existing
	if verr := apply(&merged, in, false); verr != nil {
		return nil, verr
	}
	if !c.policy.Allows(existing.Status, merged.Status) {
		return nil, &Error{
			Kind:    KindInvalidTransition,
			Field:   "status",
			Message: "status cannot change from " + string(existing.Status) + " to " + string(merged.Status),
		}
	}
	merged.Version = existing.Version + 1
	merged.UpdatedAt = c.timestamp()

	if err := c.store.ReplaceRecord(ctx, merged, existing.Version); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			return nil, notFound(c.collection)
		case errors.Is(err, db.ErrVersionConflict):
			return nil, &Error{Kind: KindConflict, Message: recordNoun(c.collection) + " was modified by another request", Err: err}
		default:
			return nil, c.storeFailure("update", err)
		}
	}

	entry := c.logger.WithFields(log.Fields{"record_id": merged.ID.Hex(), "version": merged.Version})
	if merged.Status != existing.Status {
		entry.WithFields(log.Fields{"from": existing.Status, "to": merged.Status}).Info("Record status changed")
		c.metrics.IncrementStatusChange(c.collection, string(merged.Status))
		ev := events.NewEvent(events.TypeStatusChanged, c.collection, merged)
		ev.PreviousStatus = existing.Status
		c.publish(ctx, ev)
	} else {
		entry.Info("Updated record")
		c.publish(ctx, events.NewEvent(events.TypeUpdated, c.collection, merged))
	}

	v := c.enrichOne(ctx, merged)
	return &v, nil
}

// Delete removes the record with id and returns it as it was before removal.
func (c *Controller) Delete(ctx context.Context, id string) (view *models.RecordView, err error) {
	defer c.observe("delete", time.Now(), &err)

	record, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}
	v := c.enrichOne(ctx, *record)

	if err := c.store.DeleteRecord(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound(c.collection)
		}
		return nil, c.storeFailure("delete", err)
	}

	c.logger.WithField("record_id", id).Info("Deleted record")
	c.publish(ctx, events.NewEvent(events.TypeDeleted, c.collection, *record))
	return &v, nil
}

// apply validates in and merges it into record. When creating, the four
// core fields are required and an absent status becomes Pending; otherwise
// absent fields keep their stored values and null clears are rejected.
func apply(record *models.Record, in models.RecordInput, creating bool) *Error {
	if verr := applyString(in.SubjectID, "subjectId", creating, func(v string) *Error {
		oid, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			return malformedID("subjectId")
		}
		record.SubjectID = oid
		return nil
	}); verr != nil {
		return verr
	}

	if verr := applyString(in.Category, "category", creating, func(v string) *Error {
		if !validation.IsValidCategory(v) {
			return invalidValue("category", "category must not be empty")
		}
		record.Category = strings.TrimSpace(v)
		return nil
	}); verr != nil {
		return verr
	}

	if verr := applyString(in.StartDate, "startDate", creating, func(v string) *Error {
		t, ok := validation.ParseDate(v)
		if !ok {
			return invalidValue("startDate", "startDate must be a valid date")
		}
		record.StartDate = t
		return nil
	}); verr != nil {
		return verr
	}

	if verr := applyString(in.EndDate, "endDate", creating, func(v string) *Error {
		t, ok := validation.ParseDate(v)
		if !ok {
			return invalidValue("endDate", "endDate must be a valid date")
		}
		record.EndDate = t
		return nil
	}); verr != nil {
		return verr
	}

	// Checked on the merged values so a one-sided update cannot invert the range.
	if !validation.IsValidRange(record.StartDate, record.EndDate) {
		return &Error{Kind: KindInvariantViolation, Field: "endDate", Message: "startDate must be before endDate"}
	}

	switch {
	case in.Status.Present():
		if !validation.IsValidStatus(in.Status.Value) {
			return invalidValue("status", "status must be one of: "+validation.AllowedStatuses())
		}
		record.Status = models.Status(in.Status.Value)
	case in.Status.Null && !creating:
		return invalidValue("status", "status cannot be cleared")
	case creating:
		record.Status = validation.StatusOrDefault("", false)
	}
	return nil
}

func applyString(field models.Optional[string], name string, creating bool, set func(string) *Error) *Error {
	switch {
	case field.Present():
		return set(field.Value)
	case field.Null && !creating:
		return invalidValue(name, name+" cannot be cleared")
	case creating:
		return missingField(name)
	}
	return nil
}

func (c *Controller) load(ctx context.Context, id string) (*models.Record, error) {
	if !validation.IsValidID(id) {
		return nil, malformedID("id")
	}
	record, err := c.store.FindRecordByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound(c.collection)
		}
		return nil, c.storeFailure("load", err)
	}
	return record, nil
}

func (c *Controller) find(ctx context.Context, op string, filter bson.M) ([]models.RecordView, error) {
	records, err := c.store.FindRecords(ctx, filter)
	if err != nil {
		return nil, c.storeFailure(op, err)
	}

	var vehicles map[string]models.Vehicle
	if len(records) > 0 {
		vehicles, err = c.vehicles.FindVehiclesByIDs(ctx, subjectIDs(records))
		if err != nil {
			c.logger.WithError(err).Warn("Failed to enrich records with vehicles")
		}
	}

	views := make([]models.RecordView, 0, len(records))
	for _, r := range records {
		var snapshot *models.VehicleSnapshot
		if v, ok := vehicles[r.SubjectID.Hex()]; ok {
			snapshot = v.Snapshot()
		}
		views = append(views, Enrich(r, snapshot))
	}
	return views, nil
}

func (c *Controller) enrichOne(ctx context.Context, record models.Record) models.RecordView {
	vehicle, err := c.vehicles.FindVehicleByID(ctx, record.SubjectID.Hex())
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			c.logger.WithError(err).WithField("subject_id", record.SubjectID.Hex()).Warn("Failed to enrich record with vehicle")
		}
		return Enrich(record, nil)
	}
	return Enrich(record, vehicle.Snapshot())
}

func (c *Controller) storeFailure(op string, err error) *Error {
	c.logger.WithError(err).WithField("operation", op).Error("Record store failure")
	noun := recordNoun(c.collection)
	if op == "list" {
		noun = c.collection
	}
	return &Error{Kind: KindStoreFailure, Message: "failed to " + op + " " + noun, Err: err}
}

func (c *Controller) publish(ctx context.Context, ev events.Event) {
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"event_type": ev.Type,
			"record_id":  ev.RecordID,
		}).Warn("Failed to publish record event")
	}
}

func (c *Controller) observe(op string, start time.Time, err *error) {
	outcome := "ok"
	if *err != nil {
		outcome = string(KindOf(*err))
	}
	c.metrics.ObserveOperation(c.collection, op, outcome, time.Since(start))
}

// timestamp is truncated to the millisecond precision Mongo stores.
func (c *Controller) timestamp() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

func recordNoun(collection string) string {
	switch collection {
	case "reservations":
		return "reservation"
	case "maintenance":
		return "maintenance record"
	default:
		return "record"
	}
}
