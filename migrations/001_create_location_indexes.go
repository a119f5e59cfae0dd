package migrations

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

func init() {
	Register(Migration{
		Version:     "001_create_location_indexes",
		Description: "Create indexes for locations collection",
		Up:          up001,
		Down:        down001,
	})
}

func up001(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "corporation_id", Value: 1}}},
		{Keys: bson.D{{Key: "alliance_id", Value: 1}}},
		{Keys: bson.D{{Key: "location.system.id", Value: 1}}},
		{Keys: bson.D{{Key: "updated_at", Value: -1}}},
	}

	return ensureIndexes(ctx, db, "locations", indexes)
}

func down001(ctx context.Context, db *mongo.Database) error {
	return dropIndexes(ctx, db, "locations")
}
