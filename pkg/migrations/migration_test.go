package migrations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registered() []RegisteredMigration {
	return []RegisteredMigration{
		{Version: "001_create_location_indexes", Description: "locations"},
		{Version: "002_create_character_indexes", Description: "characters"},
	}
}

func TestPending(t *testing.T) {
	tests := []struct {
		name    string
		applied []Migration
		want    []string
	}{
		{"nothing applied", nil, []string{"001_create_location_indexes", "002_create_character_indexes"}},
		{"first applied", []Migration{{Version: "001_create_location_indexes"}}, []string{"002_create_character_indexes"}},
		{"all applied", []Migration{{Version: "001_create_location_indexes"}, {Version: "002_create_character_indexes"}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, m := range Pending(registered(), tt.applied) {
				got = append(got, m.Version)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildStatus(t *testing.T) {
	at := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	entries := BuildStatus(registered(), []Migration{{Version: "001_create_location_indexes", AppliedAt: at}})

	require.Len(t, entries, 2)
	assert.True(t, entries[0].Applied)
	assert.Equal(t, at, entries[0].AppliedAt)
	assert.False(t, entries[1].Applied)
	assert.True(t, entries[1].AppliedAt.IsZero())
}

func TestChecksum(t *testing.T) {
	a := Checksum(RegisteredMigration{Version: "001", Description: "a"})

	assert.Len(t, a, 64)
	assert.Equal(t, a, Checksum(RegisteredMigration{Version: "001", Description: "a"}))
	assert.NotEqual(t, a, Checksum(RegisteredMigration{Version: "001", Description: "b"}))
}
