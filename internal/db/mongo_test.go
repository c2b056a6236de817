package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/car-rental/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestConnectMongo_BadURI(t *testing.T) {
	client, err := ConnectMongo(context.Background(), "mongodb://bad:uri")
	if err == nil {
		t.Error("expected error for bad URI, got nil")
	}
	if client != nil {
		t.Error("expected nil client on error")
	}
}

func TestRecordCollection_NilCollection(t *testing.T) {
	coll := &MongoRecordCollection{Collection: nil}
	ctx := context.Background()

	_, err := coll.InsertRecord(ctx, models.Record{})
	assert.Error(t, err)
	_, err = coll.FindRecordByID(ctx, primitive.NewObjectID().Hex())
	assert.Error(t, err)
	_, err = coll.FindRecords(ctx, nil)
	assert.Error(t, err)
	assert.Error(t, coll.ReplaceRecord(ctx, models.Record{}, 1))
	assert.Error(t, coll.DeleteRecord(ctx, primitive.NewObjectID().Hex()))
}

func TestVehicleCollection_NilCollection(t *testing.T) {
	coll := &MongoVehicleCollection{Collection: nil}
	_, err := coll.FindVehicleByID(context.Background(), primitive.NewObjectID().Hex())
	assert.Error(t, err)
	_, err = coll.FindVehiclesByIDs(context.Background(), nil)
	assert.Error(t, err)
}

func TestEnsureIndexes_NilCollection(t *testing.T) {
	assert.Error(t, EnsureRecordIndexes(context.Background(), nil))
	assert.Error(t, EnsureUserIndexes(context.Background(), nil))
}

// integrationDB returns a scratch database or skips when MongoDB is not reachable.
func integrationDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := ConnectMongo(ctx, uri)
	if err != nil {
		t.Skipf("failed to connect: %v, skipping integration test", err)
	}
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })
	return client.Database("test_rental")
}

func TestRecordCollection_Integration(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()
	collection := database.Collection("reservations")
	require.NoError(t, collection.Drop(ctx))
	require.NoError(t, EnsureRecordIndexes(ctx, collection))

	store := &MongoRecordCollection{Collection: collection}
	subject := primitive.NewObjectID()
	base := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	older, err := store.InsertRecord(ctx, models.Record{
		SubjectID: subject, Category: "Airport pickup",
		StartDate: base, EndDate: base.AddDate(0, 0, 2),
		Status: models.StatusPending, Version: 1, CreatedAt: base,
	})
	require.NoError(t, err)
	newer, err := store.InsertRecord(ctx, models.Record{
		SubjectID: subject, Category: "Weekend",
		StartDate: base, EndDate: base.AddDate(0, 0, 3),
		Status: models.StatusActive, Version: 1, CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	all, err := store.FindRecords(ctx, bson.M{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID, "newest first")

	active, err := store.FindRecords(ctx, bson.M{"status": models.StatusActive})
	require.NoError(t, err)
	require.Len(t, active, 1)

	found, err := store.FindRecordByID(ctx, older.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Airport pickup", found.Category)

	found.Status = models.StatusActive
	found.Version = 2
	require.NoError(t, store.ReplaceRecord(ctx, *found, 1))
	assert.ErrorIs(t, store.ReplaceRecord(ctx, *found, 1), ErrVersionConflict)

	require.NoError(t, store.DeleteRecord(ctx, older.ID.Hex()))
	assert.ErrorIs(t, store.DeleteRecord(ctx, older.ID.Hex()), ErrNotFound)
	_, err = store.FindRecordByID(ctx, older.ID.Hex())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.ReplaceRecord(ctx, *found, 2), ErrNotFound)
}

func TestVehicleCollection_Integration(t *testing.T) {
	database := integrationDB(t)
	ctx := context.Background()
	collection := database.Collection("vehicles")
	require.NoError(t, collection.Drop(ctx))

	v := models.Vehicle{ID: primitive.NewObjectID(), Name: "Yaris", Plate: "XYZ-987"}
	_, err := collection.InsertOne(ctx, v)
	require.NoError(t, err)

	got, err := (&MongoVehicleCollection{Collection: collection}).FindVehicleByID(ctx, v.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "Yaris", got.Name)

	byID, err := (&MongoVehicleCollection{Collection: collection}).FindVehiclesByIDs(ctx,
		[]string{v.ID.Hex(), primitive.NewObjectID().Hex(), "junk"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Equal(t, "XYZ-987", byID[v.ID.Hex()].Plate)

	_, err = (&MongoVehicleCollection{Collection: collection}).FindVehicleByID(ctx, primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, ErrNotFound)
}
