package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go-falcon-locations/internal/character/models"
	locationModels "go-falcon-locations/internal/locations/models"
	"go-falcon-locations/pkg/evegateway/character"
	"go-falcon-locations/pkg/metrics"
)

// Snapshot is the raw upstream state of one character for one pass
type Snapshot struct {
	Online   locationModels.Result[bool]
	Location locationModels.Result[*character.LocationResponse]
	Ship     locationModels.Result[*character.ShipResponse]
}

// IsOnline reports whether presence resolved to online
func (s Snapshot) IsOnline() bool {
	return s.Online.IsOK() && s.Online.Value
}

// Complete reports whether presence, location and ship all resolved
func (s Snapshot) Complete() bool {
	return s.IsOnline() &&
		s.Location.IsOK() && s.Location.Value != nil &&
		s.Ship.IsOK() && s.Ship.Value != nil
}

// Fetcher queries presence first and, only for online characters, location and ship in parallel
type Fetcher struct {
	esi     character.Client
	timeout time.Duration
	metrics *metrics.Metrics
}

// NewFetcher creates a status fetcher
func NewFetcher(esi character.Client, timeout time.Duration, m *metrics.Metrics) *Fetcher {
	return &Fetcher{esi: esi, timeout: timeout, metrics: m}
}

// Fetch returns the snapshot for c, whose SSO bundle must be usable.
// Location and ship are only requested when presence says online; one failing never cancels the other.
func (f *Fetcher) Fetch(ctx context.Context, c models.Character) Snapshot {
	id, token := c.CharacterID, c.SSO.AccessToken

	snap := Snapshot{
		Online: race(ctx, f.timeout, id, locationModels.CallOnline, func(ctx context.Context) (bool, error) {
			online, err := f.esi.GetCharacterOnline(ctx, id, token)
			if err != nil {
				return false, err
			}
			return online.Online, nil
		}),
	}
	f.observe(ctx, snap.Online.Kind, snap.Online.Call, id, snap.Online.Err)

	if !snap.IsOnline() {
		return snap
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		snap.Location = race(ctx, f.timeout, id, locationModels.CallLocation, func(ctx context.Context) (*character.LocationResponse, error) {
			return f.esi.GetCharacterLocation(ctx, id, token)
		})
	}()
	go func() {
		defer wg.Done()
		snap.Ship = race(ctx, f.timeout, id, locationModels.CallShip, func(ctx context.Context) (*character.ShipResponse, error) {
			return f.esi.GetCharacterShip(ctx, id, token)
		})
	}()
	wg.Wait()

	f.observe(ctx, snap.Location.Kind, snap.Location.Call, id, snap.Location.Err)
	f.observe(ctx, snap.Ship.Kind, snap.Ship.Call, id, snap.Ship.Err)
	return snap
}

func (f *Fetcher) observe(ctx context.Context, kind locationModels.ResultKind, call string, characterID int64, err error) {
	switch kind {
	case locationModels.KindTimedOut:
		f.metrics.RecordTimeout(call)
		slog.WarnContext(ctx, "Upstream call timed out", "character_id", characterID, "call", call, "timeout", f.timeout)
	case locationModels.KindFailed:
		slog.WarnContext(ctx, "Upstream call failed", "character_id", characterID, "call", call, "error", err)
	}
}
