package services

import (
	"context"
	"log/slog"
	"time"

	authServices "go-falcon-locations/internal/auth/services"
	"go-falcon-locations/internal/character/models"
	locationModels "go-falcon-locations/internal/locations/models"
)

// AccountResult is what a pass did with one account
type AccountResult string

const (
	ResultPublished AccountResult = "published"
	ResultRemoved   AccountResult = "removed"
	ResultRevoked   AccountResult = "revoked"
	ResultFailed    AccountResult = "failed"
)

// Reasons a record is removed
const (
	ReasonMissingScopes = "missing_scopes"
	ReasonOffline       = "offline"
	ReasonIncomplete    = "incomplete"
	ReasonNames         = "names_unresolved"
)

// CredentialValidator yields a usable credential for a character
type CredentialValidator interface {
	Validate(ctx context.Context, c models.Character) authServices.Outcome
}

// StatusFetcher queries the upstream status of a character
type StatusFetcher interface {
	Fetch(ctx context.Context, c models.Character) Snapshot
}

// Resolver resolves display names
type Resolver interface {
	Resolve(ctx context.Context, characterID int64, ids ...int64) (map[int64]string, error)
}

// RecordPublisher writes and removes location records
type RecordPublisher interface {
	Publish(ctx context.Context, record locationModels.LocationRecord) error
	Remove(ctx context.Context, characterID int64, reason string) error
}

// Pipeline processes a single account through validation, fetch, naming and publish
type Pipeline struct {
	validator CredentialValidator
	fetcher   StatusFetcher
	resolver  Resolver
	publisher RecordPublisher
	now       func() time.Time
}

// NewPipeline creates the per-account pipeline
func NewPipeline(validator CredentialValidator, fetcher StatusFetcher, resolver Resolver, publisher RecordPublisher) *Pipeline {
	return &Pipeline{
		validator: validator,
		fetcher:   fetcher,
		resolver:  resolver,
		publisher: publisher,
		now:       time.Now,
	}
}

// Process runs one account. Failures are confined to the account and end with the
// record removed, except a failed publish which leaves it as it was.
func (p *Pipeline) Process(ctx context.Context, c models.Character) AccountResult {
	outcome := p.validator.Validate(ctx, c)
	if !outcome.Usable() {
		if outcome.Err != nil {
			slog.InfoContext(ctx, "Skipping account without usable credentials", "character_id", c.CharacterID, "state", outcome.State, "error", outcome.Err)
		} else {
			slog.DebugContext(ctx, "Skipping account without usable credentials", "character_id", c.CharacterID, "state", outcome.State)
		}
		p.remove(ctx, c.CharacterID, string(outcome.State))
		if outcome.State == authServices.StateRevoked {
			return ResultRevoked
		}
		return ResultRemoved
	}
	c = outcome.Character

	if !authServices.HasLocationScopes(c) {
		slog.DebugContext(ctx, "Account lacks location scopes", "character_id", c.CharacterID)
		p.remove(ctx, c.CharacterID, ReasonMissingScopes)
		return ResultRemoved
	}

	snap := p.fetcher.Fetch(ctx, c)
	if !snap.IsOnline() {
		p.remove(ctx, c.CharacterID, ReasonOffline)
		return ResultRemoved
	}
	if !snap.Complete() {
		p.remove(ctx, c.CharacterID, ReasonIncomplete)
		return ResultRemoved
	}

	systemID, typeID := snap.Location.Value.SolarSystemID, snap.Ship.Value.ShipTypeID
	names, err := p.resolver.Resolve(ctx, c.CharacterID, systemID, typeID)
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve names", "character_id", c.CharacterID, "error", err)
		p.remove(ctx, c.CharacterID, ReasonNames)
		return ResultRemoved
	}

	record := BuildRecord(c, snap, names, p.now())
	if err := p.publisher.Publish(ctx, record); err != nil {
		slog.ErrorContext(ctx, "Failed to publish location", "character_id", c.CharacterID, "error", err)
		return ResultFailed
	}
	return ResultPublished
}

func (p *Pipeline) remove(ctx context.Context, characterID int64, reason string) {
	if err := p.publisher.Remove(ctx, characterID, reason); err != nil {
		slog.ErrorContext(ctx, "Failed to remove location", "character_id", characterID, "reason", reason, "error", err)
	}
}

// BuildRecord merges the character, a complete snapshot and resolved names into a record
func BuildRecord(c models.Character, snap Snapshot, names map[int64]string, now time.Time) locationModels.LocationRecord {
	location, ship := snap.Location.Value, snap.Ship.Value

	record := locationModels.LocationRecord{
		CharacterID:   c.CharacterID,
		Name:          c.Name,
		CorporationID: c.CorporationID,
		Location: locationModels.Location{
			System: locationModels.SolarSystem{ID: location.SolarSystemID, Name: names[location.SolarSystemID]},
		},
		Ship: locationModels.Ship{
			TypeID: ship.ShipTypeID,
			Type:   names[ship.ShipTypeID],
			ItemID: ship.ShipItemID,
			Name:   ship.ShipName,
		},
		UpdatedAt: now.UTC(),
	}
	if c.AllianceID != 0 {
		allianceID := c.AllianceID
		record.AllianceID = &allianceID
	}
	return record
}
