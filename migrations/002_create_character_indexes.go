package migrations

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func init() {
	Register(Migration{
		Version:     "002_create_character_indexes",
		Description: "Create indexes for characters collection",
		Up:          up002,
		Down:        down002,
	})
}

func up002(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
		// Sparse: characters without an sso bundle carry no expiry
		{Keys: bson.D{{Key: "sso.expires_at", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	return ensureIndexes(ctx, db, "characters", indexes)
}

func down002(ctx context.Context, db *mongo.Database) error {
	return dropIndexes(ctx, db, "characters")
}
