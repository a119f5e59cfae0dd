package services

import (
	"context"
	"testing"
	"time"

	"go-falcon-locations/internal/locations/models"

	"github.com/stretchr/testify/assert"
)

func TestFetcherFetch(t *testing.T) {
	tests := []struct {
		name          string
		setup         func(*fakeESI)
		wantOnline    bool
		wantComplete  bool
		wantLocCalls  int
		wantShipCalls int
		wantLocation  models.ResultKind
		wantShip      models.ResultKind
	}{
		{
			name:          "online and resolved",
			setup:         func(f *fakeESI) {},
			wantOnline:    true,
			wantComplete:  true,
			wantLocCalls:  1,
			wantShipCalls: 1,
			wantLocation:  models.KindOK,
			wantShip:      models.KindOK,
		},
		{
			name:       "offline skips location and ship",
			setup:      func(f *fakeESI) { f.online = false },
			wantOnline: false,
		},
		{
			name:       "presence failure skips location and ship",
			setup:      func(f *fakeESI) { f.errs[models.CallOnline] = errUpstream },
			wantOnline: false,
		},
		{
			name:          "ship failure keeps location",
			setup:         func(f *fakeESI) { f.errs[models.CallShip] = errUpstream },
			wantOnline:    true,
			wantLocCalls:  1,
			wantShipCalls: 1,
			wantLocation:  models.KindOK,
			wantShip:      models.KindFailed,
		},
		{
			name:          "location timeout keeps ship",
			setup:         func(f *fakeESI) { f.delays[models.CallLocation] = time.Second },
			wantOnline:    true,
			wantLocCalls:  1,
			wantShipCalls: 1,
			wantLocation:  models.KindTimedOut,
			wantShip:      models.KindOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			esi := newFakeESI()
			tt.setup(esi)
			fetcher := NewFetcher(esi, 100*time.Millisecond, nil)

			snap := fetcher.Fetch(context.Background(), trackedCharacter(1))

			assert.Equal(t, tt.wantOnline, snap.IsOnline())
			assert.Equal(t, tt.wantComplete, snap.Complete())
			assert.Equal(t, 1, esi.count(models.CallOnline))
			assert.Equal(t, tt.wantLocCalls, esi.count(models.CallLocation))
			assert.Equal(t, tt.wantShipCalls, esi.count(models.CallShip))
			if tt.wantOnline {
				assert.Equal(t, tt.wantLocation, snap.Location.Kind)
				assert.Equal(t, tt.wantShip, snap.Ship.Kind)
			}
		})
	}
}

func TestFetcherRunsLocationAndShipConcurrently(t *testing.T) {
	esi := newFakeESI()
	esi.delays[models.CallLocation] = 200 * time.Millisecond
	esi.delays[models.CallShip] = 200 * time.Millisecond
	fetcher := NewFetcher(esi, time.Second, nil)

	start := time.Now()
	snap := fetcher.Fetch(context.Background(), trackedCharacter(1))

	assert.True(t, snap.Complete())
	assert.Less(t, time.Since(start), 380*time.Millisecond)
}
