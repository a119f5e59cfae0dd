package services

import (
	"context"
	"testing"
	"time"

	authServices "go-falcon-locations/internal/auth/services"
	"go-falcon-locations/internal/character/models"
	locationModels "go-falcon-locations/internal/locations/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pipelineFixture struct {
	esi      *fakeESI
	universe *fakeUniverse
	store    *memoryStore
	pipeline *Pipeline
}

func newPipelineFixture(validator CredentialValidator) *pipelineFixture {
	f := &pipelineFixture{
		esi:      newFakeESI(),
		universe: &fakeUniverse{names: map[int64]string{jitaID: "Jita", capsuleID: "Capsule"}},
		store:    newMemoryStore(),
	}
	if validator == nil {
		validator = authServices.NewValidator(nil, noopCredentialStore{}, nil)
	}
	f.pipeline = NewPipeline(
		validator,
		NewFetcher(f.esi, 100*time.Millisecond, nil),
		NewNameResolver(f.universe, 100*time.Millisecond, nil),
		NewPublisher(f.store, nil, "locations:updates"),
	)
	return f
}

func (f *pipelineFixture) seed(id int64) {
	f.store.records[id] = locationModels.LocationRecord{CharacterID: id, Name: "stale"}
}

func TestPipelinePublishesJitaCapsule(t *testing.T) {
	f := newPipelineFixture(nil)
	c := trackedCharacter(90000001)

	result := f.pipeline.Process(context.Background(), c)

	require.Equal(t, ResultPublished, result)
	record, ok := f.store.get(c.CharacterID)
	require.True(t, ok)
	assert.Equal(t, c.CharacterID, record.CharacterID)
	assert.Equal(t, "Pilot", record.Name)
	assert.Equal(t, int64(98000001), record.CorporationID)
	assert.Nil(t, record.AllianceID)
	assert.Equal(t, locationModels.SolarSystem{ID: jitaID, Name: "Jita"}, record.Location.System)
	assert.Equal(t, capsuleID, record.Ship.TypeID)
	assert.Equal(t, "Capsule", record.Ship.Type)
	assert.Equal(t, "Pod", record.Ship.Name)
	assert.False(t, record.UpdatedAt.IsZero())

	require.Len(t, f.universe.ids, 1)
	assert.ElementsMatch(t, []int64{jitaID, capsuleID}, f.universe.ids[0])
}

func TestPipelineScopeGateIssuesNoUpstreamCalls(t *testing.T) {
	f := newPipelineFixture(nil)
	c := trackedCharacter(90000002)
	c.SSO.Scopes = []string{authServices.ScopeReadLocation, authServices.ScopeReadShipType}
	f.seed(c.CharacterID)

	result := f.pipeline.Process(context.Background(), c)

	assert.Equal(t, ResultRemoved, result)
	assert.Zero(t, f.esi.count(locationModels.CallOnline))
	assert.Zero(t, f.esi.count(locationModels.CallLocation))
	assert.Zero(t, f.esi.count(locationModels.CallShip))
	assert.Zero(t, f.universe.callCount())
	_, ok := f.store.get(c.CharacterID)
	assert.False(t, ok)
}

func TestPipelineRemovesRecord(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pipelineFixture, *models.Character)
		want   AccountResult
	}{
		{
			name:   "no credential",
			mutate: func(f *pipelineFixture, c *models.Character) { c.SSO = nil },
			want:   ResultRemoved,
		},
		{
			name:   "offline",
			mutate: func(f *pipelineFixture, c *models.Character) { f.esi.online = false },
			want:   ResultRemoved,
		},
		{
			name:   "presence error",
			mutate: func(f *pipelineFixture, c *models.Character) { f.esi.errs[locationModels.CallOnline] = errUpstream },
			want:   ResultRemoved,
		},
		{
			name:   "ship only partially resolved",
			mutate: func(f *pipelineFixture, c *models.Character) { f.esi.errs[locationModels.CallShip] = errUpstream },
			want:   ResultRemoved,
		},
		{
			name:   "location timed out",
			mutate: func(f *pipelineFixture, c *models.Character) { f.esi.delays[locationModels.CallLocation] = time.Second },
			want:   ResultRemoved,
		},
		{
			name:   "names unresolved",
			mutate: func(f *pipelineFixture, c *models.Character) { delete(f.universe.names, capsuleID) },
			want:   ResultRemoved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(nil)
			c := trackedCharacter(90000003)
			f.seed(c.CharacterID)
			tt.mutate(f, &c)

			result := f.pipeline.Process(context.Background(), c)

			assert.Equal(t, tt.want, result)
			_, ok := f.store.get(c.CharacterID)
			assert.False(t, ok)
		})
	}
}

func TestPipelineRevokedRemovesRecord(t *testing.T) {
	f := newPipelineFixture(fixedValidator{outcome: authServices.Outcome{State: authServices.StateRevoked, Err: errUpstream}})
	c := trackedCharacter(90000004)
	f.seed(c.CharacterID)

	result := f.pipeline.Process(context.Background(), c)

	assert.Equal(t, ResultRevoked, result)
	assert.Zero(t, f.esi.count(locationModels.CallOnline))
	_, ok := f.store.get(c.CharacterID)
	assert.False(t, ok)
}

func TestPipelineUsesRefreshedCredentials(t *testing.T) {
	refreshed := trackedCharacter(90000005)
	refreshed.SSO.AccessToken = "fresh"
	f := newPipelineFixture(fixedValidator{outcome: authServices.Outcome{State: authServices.StateValid, Character: refreshed, Refreshed: true}})

	stale := trackedCharacter(90000005)
	stale.SSO.Scopes = nil

	result := f.pipeline.Process(context.Background(), stale)

	assert.Equal(t, ResultPublished, result)
}

func TestPipelineSetsAlliance(t *testing.T) {
	f := newPipelineFixture(nil)
	c := trackedCharacter(90000006)
	c.AllianceID = 99000001

	require.Equal(t, ResultPublished, f.pipeline.Process(context.Background(), c))

	record, _ := f.store.get(c.CharacterID)
	require.NotNil(t, record.AllianceID)
	assert.Equal(t, int64(99000001), *record.AllianceID)
}

func TestPipelinePublishFailure(t *testing.T) {
	f := newPipelineFixture(nil)
	f.store.upsertErr = errUpstream

	assert.Equal(t, ResultFailed, f.pipeline.Process(context.Background(), trackedCharacter(90000007)))
}
