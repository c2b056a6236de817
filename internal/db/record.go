package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRecordCollection implements RecordStore for MongoDB.
type MongoRecordCollection struct {
	Collection *mongo.Collection
}

// InsertRecord inserts a record, assigning an id when it has none.
func (c *MongoRecordCollection) InsertRecord(ctx context.Context, record models.Record) (models.Record, error) {
	if c.Collection == nil {
		return models.Record{}, fmt.Errorf("mongo collection is nil")
	}
	if record.ID.IsZero() {
		record.ID = primitive.NewObjectID()
	}
	if _, err := c.Collection.InsertOne(ctx, record); err != nil {
		return models.Record{}, err
	}
	return record, nil
}

// FindRecordByID finds a record by its ID.
func (c *MongoRecordCollection) FindRecordByID(ctx context.Context, id string) (*models.Record, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid record ID: %w", err)
	}

	var record models.Record
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindRecords queries records, newest first.
func (c *MongoRecordCollection) FindRecords(ctx context.Context, filter bson.M) ([]models.Record, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	if filter == nil {
		filter = bson.M{}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ReplaceRecord replaces the stored document when its version is still expectedVersion.
func (c *MongoRecordCollection) ReplaceRecord(ctx context.Context, record models.Record, expectedVersion int64) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	result, err := c.Collection.ReplaceOne(ctx, bson.M{"_id": record.ID, "version": expectedVersion}, record)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Nothing matched: either the record is gone or someone bumped the version.
	count, err := c.Collection.CountDocuments(ctx, bson.M{"_id": record.ID})
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

// DeleteRecord deletes a record by its ID.
func (c *MongoRecordCollection) DeleteRecord(ctx context.Context, id string) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid record ID: %w", err)
	}

	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
