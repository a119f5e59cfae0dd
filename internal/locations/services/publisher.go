package services

import (
	"context"
	"log/slog"

	"go-falcon-locations/internal/locations/models"
)

// Update types broadcast to subscribers
const (
	UpdateUpsert = "upsert"
	UpdateDelete = "delete"
)

// Store is the shared location record store
type Store interface {
	Upsert(ctx context.Context, record models.LocationRecord) error
	Delete(ctx context.Context, characterID int64) (bool, error)
}

// Broadcaster fans published changes out to subscribers
type Broadcaster interface {
	PublishJSON(ctx context.Context, channel string, value interface{}) error
}

// Update is the broadcast payload
type Update struct {
	Type        string                 `json:"type"`
	CharacterID int64                  `json:"character_id"`
	Record      *models.LocationRecord `json:"record,omitempty"`
	Reason      string                 `json:"reason,omitempty"`
}

// Publisher writes merge results to the store and announces them
type Publisher struct {
	store       Store
	broadcaster Broadcaster
	channel     string
}

// NewPublisher creates a publisher. broadcaster may be nil.
func NewPublisher(store Store, broadcaster Broadcaster, channel string) *Publisher {
	return &Publisher{store: store, broadcaster: broadcaster, channel: channel}
}

// Publish upserts the record
func (p *Publisher) Publish(ctx context.Context, record models.LocationRecord) error {
	if err := p.store.Upsert(ctx, record); err != nil {
		return err
	}
	p.broadcast(ctx, Update{Type: UpdateUpsert, CharacterID: record.CharacterID, Record: &record})
	return nil
}

// Remove deletes the record of a character. Removing an absent record is a no-op.
func (p *Publisher) Remove(ctx context.Context, characterID int64, reason string) error {
	deleted, err := p.store.Delete(ctx, characterID)
	if err != nil {
		return err
	}
	if deleted {
		slog.DebugContext(ctx, "Location record removed", "character_id", characterID, "reason", reason)
		p.broadcast(ctx, Update{Type: UpdateDelete, CharacterID: characterID, Reason: reason})
	}
	return nil
}

func (p *Publisher) broadcast(ctx context.Context, update Update) {
	if p.broadcaster == nil {
		return
	}
	if err := p.broadcaster.PublishJSON(ctx, p.channel, update); err != nil {
		slog.WarnContext(ctx, "Failed to broadcast location update", "character_id", update.CharacterID, "type", update.Type, "error", err)
	}
}
