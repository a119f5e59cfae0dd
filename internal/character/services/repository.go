package services

import (
	"context"
	"fmt"
	"time"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/pkg/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Repository handles data persistence for characters
type Repository struct {
	collection *mongo.Collection
	users      *mongo.Collection
}

// NewRepository creates a new repository instance
func NewRepository(mongodb *database.MongoDB) *Repository {
	return &Repository{
		collection: mongodb.Collection(models.CollectionName),
		users:      mongodb.Collection(models.UsersCollectionName),
	}
}

// Collection exposes the characters collection to the change stream source
func (r *Repository) Collection() *mongo.Collection {
	return r.collection
}

// LoadAll returns every tracked character
func (r *Repository) LoadAll(ctx context.Context) ([]models.Character, error) {
	ctx, span := otel.Tracer("go-falcon-locations/character").Start(ctx, "character.repository.load_all")
	defer span.End()

	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query characters: %w", err)
	}
	defer cursor.Close(ctx)

	var characters []models.Character
	if err := cursor.All(ctx, &characters); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode characters: %w", err)
	}

	span.SetAttributes(attribute.Int("characters.count", len(characters)))
	return characters, nil
}

// UnsetLegacyTokens removes the pre-sso plaintext token fields
func (r *Repository) UnsetLegacyTokens(ctx context.Context, characterID int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": characterID},
		bson.M{"$unset": bson.M{"access_token": "", "refresh_token": "", "token_expiry": ""}},
	)
	if err != nil {
		return fmt.Errorf("failed to unset legacy tokens for %d: %w", characterID, err)
	}
	return nil
}

// SaveCredentials replaces the SSO bundle after a successful refresh
func (r *Repository) SaveCredentials(ctx context.Context, characterID int64, creds models.Credentials) error {
	ctx, span := otel.Tracer("go-falcon-locations/character").Start(ctx, "character.repository.save_credentials")
	defer span.End()
	span.SetAttributes(attribute.Int64("character_id", characterID))

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": characterID},
		bson.M{"$set": bson.M{"sso": creds, "updated_at": time.Now()}},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save credentials for %d: %w", characterID, err)
	}
	return nil
}

// SaveIdentity stores the name and owner hash confirmed by the SSO verify endpoint
func (r *Repository) SaveIdentity(ctx context.Context, characterID int64, name, ownerHash string) error {
	set := bson.M{"updated_at": time.Now()}
	if name != "" {
		set["name"] = name
	}
	if ownerHash != "" {
		set["owner_hash"] = ownerHash
	}

	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": characterID}, bson.M{"$set": set}); err != nil {
		return fmt.Errorf("failed to save identity for %d: %w", characterID, err)
	}
	return nil
}

// RevokeCredentials drops the SSO bundle and everything derived from it,
// remembering the scopes that were granted.
func (r *Repository) RevokeCredentials(ctx context.Context, characterID int64, expiredScopes []string) error {
	ctx, span := otel.Tracer("go-falcon-locations/character").Start(ctx, "character.repository.revoke_credentials")
	defer span.End()
	span.SetAttributes(attribute.Int64("character_id", characterID))

	if expiredScopes == nil {
		expiredScopes = []string{}
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": characterID},
		bson.M{
			"$set":   bson.M{"expired_scopes": expiredScopes, "updated_at": time.Now()},
			"$unset": bson.M{"sso": "", "roles": "", "titles": ""},
		},
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to revoke credentials for %d: %w", characterID, err)
	}
	return nil
}

// FlagOwner marks the owning user as having a character that needs attention
func (r *Repository) FlagOwner(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	_, err := r.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"errors": true, "updated_at": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to flag user %s: %w", userID, err)
	}
	return nil
}
