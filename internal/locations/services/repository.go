package services

import (
	"context"
	"fmt"

	"go-falcon-locations/internal/locations/models"
	"go-falcon-locations/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Repository handles the locations collection
type Repository struct {
	collection *mongo.Collection
}

// NewRepository creates a new locations repository
func NewRepository(mongodb *database.MongoDB) *Repository {
	return &Repository{
		collection: mongodb.Collection(models.CollectionName),
	}
}

// Upsert merges the record into the collection
func (r *Repository) Upsert(ctx context.Context, record models.LocationRecord) error {
	tracer := otel.Tracer("go-falcon-locations/locations")
	ctx, span := tracer.Start(ctx, "locations.repository.upsert")
	defer span.End()
	span.SetAttributes(attribute.Int64("character_id", record.CharacterID))

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": record.CharacterID},
		bson.M{"$set": record},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert location for %d: %w", record.CharacterID, err)
	}
	return nil
}

// Delete removes the record of a character. A missing record is not an error.
func (r *Repository) Delete(ctx context.Context, characterID int64) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": characterID})
	if err != nil {
		return false, fmt.Errorf("failed to delete location for %d: %w", characterID, err)
	}
	return result.DeletedCount > 0, nil
}

// Get returns the record of one character, nil when absent
func (r *Repository) Get(ctx context.Context, characterID int64) (*models.LocationRecord, error) {
	var record models.LocationRecord
	err := r.collection.FindOne(ctx, bson.M{"_id": characterID}).Decode(&record)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get location for %d: %w", characterID, err)
	}
	return &record, nil
}

// ListIDs returns the ids of every stored record
func (r *Repository) ListIDs(ctx context.Context) ([]int64, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode location ids: %w", err)
	}

	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

// DeleteMany removes the records of the given characters
func (r *Repository) DeleteMany(ctx context.Context, characterIDs []int64) (int64, error) {
	if len(characterIDs) == 0 {
		return 0, nil
	}
	result, err := r.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": characterIDs}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete locations: %w", err)
	}
	return result.DeletedCount, nil
}

// Count returns the number of published records
func (r *Repository) Count(ctx context.Context) (int64, error) {
	return r.collection.EstimatedDocumentCount(ctx)
}
