package migrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const indexBuildTimeout = 30 * time.Second

// IndexOptionsConflict and IndexKeySpecsConflict
const (
	codeIndexOptionsConflict  = 85
	codeIndexKeySpecsConflict = 86
)

// ensureIndexes creates indexes on collection, tolerating ones that already exist
func ensureIndexes(ctx context.Context, db *mongo.Database, collection string, indexes []mongo.IndexModel) error {
	opts := options.CreateIndexes().SetMaxTime(indexBuildTimeout)
	if _, err := db.Collection(collection).Indexes().CreateMany(ctx, indexes, opts); err != nil && !isIndexExistsError(err) {
		return err
	}
	return nil
}

func dropIndexes(ctx context.Context, db *mongo.Database, collection string) error {
	_, err := db.Collection(collection).Indexes().DropAll(ctx)
	return err
}

// isIndexExistsError reports whether err only says the index is already there
func isIndexExistsError(err error) bool {
	if err == nil {
		return false
	}
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	var se mongo.ServerError
	if errors.As(err, &se) && (se.HasErrorCode(codeIndexOptionsConflict) || se.HasErrorCode(codeIndexKeySpecsConflict)) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}
