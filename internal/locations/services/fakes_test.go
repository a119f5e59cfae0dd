package services

import (
	"context"
	"errors"
	"sync"
	"time"

	authServices "go-falcon-locations/internal/auth/services"
	"go-falcon-locations/internal/character/models"
	locationModels "go-falcon-locations/internal/locations/models"
	"go-falcon-locations/pkg/evegateway/character"
	"go-falcon-locations/pkg/evegateway/universe"
)

const (
	jitaID    int64 = 30000142
	capsuleID int64 = 670
)

// fakeESI scripts the character endpoints and counts calls per endpoint
type fakeESI struct {
	mu       sync.Mutex
	calls    map[string]int
	online   bool
	location *character.LocationResponse
	ship     *character.ShipResponse
	errs     map[string]error
	delays   map[string]time.Duration
}

func newFakeESI() *fakeESI {
	return &fakeESI{
		calls:    make(map[string]int),
		online:   true,
		location: &character.LocationResponse{SolarSystemID: jitaID},
		ship:     &character.ShipResponse{ShipItemID: 1000000000001, ShipName: "Pod", ShipTypeID: capsuleID},
		errs:     make(map[string]error),
		delays:   make(map[string]time.Duration),
	}
}

func (f *fakeESI) enter(ctx context.Context, call string) error {
	f.mu.Lock()
	f.calls[call]++
	delay, err := f.delays[call], f.errs[call]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeESI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeESI) GetCharacterOnline(ctx context.Context, characterID int64, token string) (*character.OnlineResponse, error) {
	if err := f.enter(ctx, locationModels.CallOnline); err != nil {
		return nil, err
	}
	return &character.OnlineResponse{Online: f.online}, nil
}

func (f *fakeESI) GetCharacterLocation(ctx context.Context, characterID int64, token string) (*character.LocationResponse, error) {
	if err := f.enter(ctx, locationModels.CallLocation); err != nil {
		return nil, err
	}
	return f.location, nil
}

func (f *fakeESI) GetCharacterShip(ctx context.Context, characterID int64, token string) (*character.ShipResponse, error) {
	if err := f.enter(ctx, locationModels.CallShip); err != nil {
		return nil, err
	}
	return f.ship, nil
}

// fakeUniverse answers name lookups from a fixed table
type fakeUniverse struct {
	mu    sync.Mutex
	names map[int64]string
	err   error
	calls int
	ids   [][]int64
}

func (f *fakeUniverse) GetNames(ctx context.Context, ids []int64) ([]universe.NameResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ids = append(f.ids, ids)
	if f.err != nil {
		return nil, f.err
	}
	var out []universe.NameResponse
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			out = append(out, universe.NameResponse{ID: id, Name: name})
		}
	}
	return out, nil
}

func (f *fakeUniverse) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// memoryStore is an in-memory location record store
type memoryStore struct {
	mu        sync.Mutex
	records   map[int64]locationModels.LocationRecord
	upsertErr error
	deletes   int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[int64]locationModels.LocationRecord)}
}

func (s *memoryStore) Upsert(ctx context.Context, record locationModels.LocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.records[record.CharacterID] = record
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, characterID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	_, ok := s.records[characterID]
	delete(s.records, characterID)
	return ok, nil
}

func (s *memoryStore) ListIDs(ctx context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *memoryStore) DeleteMany(ctx context.Context, characterIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range characterIDs {
		if _, ok := s.records[id]; ok {
			delete(s.records, id)
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) get(id int64) (locationModels.LocationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	return record, ok
}

// recordingBroadcaster captures broadcast updates
type recordingBroadcaster struct {
	mu      sync.Mutex
	updates []Update
	err     error
}

func (b *recordingBroadcaster) PublishJSON(ctx context.Context, channel string, value interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.updates = append(b.updates, value.(Update))
	return nil
}

// noopCredentialStore accepts every write
type noopCredentialStore struct{}

func (noopCredentialStore) SaveCredentials(context.Context, int64, models.Credentials) error {
	return nil
}
func (noopCredentialStore) SaveIdentity(context.Context, int64, string, string) error { return nil }
func (noopCredentialStore) RevokeCredentials(context.Context, int64, []string) error  { return nil }
func (noopCredentialStore) FlagOwner(context.Context, string) error                   { return nil }

// fixedValidator returns a scripted outcome
type fixedValidator struct {
	outcome authServices.Outcome
}

func (v fixedValidator) Validate(ctx context.Context, c models.Character) authServices.Outcome {
	out := v.outcome
	if out.Character.CharacterID == 0 {
		out.Character = c
	}
	return out
}

func trackedCharacter(id int64) models.Character {
	return models.Character{
		CharacterID:   id,
		Name:          "Pilot",
		UserID:        "user-1",
		CorporationID: 98000001,
		SSO: &models.Credentials{
			AccessToken:  "access",
			RefreshToken: "refresh",
			Scopes:       authServices.LocationScopes,
			ExpiresAt:    time.Now().Add(time.Hour),
		},
	}
}

var errUpstream = errors.New("upstream error")
