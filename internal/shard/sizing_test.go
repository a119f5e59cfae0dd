package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredWorkers(t *testing.T) {
	tests := []struct {
		count int
		want  int
	}{
		{0, 0},
		{1, 1},
		{500, 1},
		{501, 2},
		{1000, 2},
		{1001, 3},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredWorkers(tt.count, 500), "count %d", tt.count)
	}
}

func TestRequiredWorkersZeroCapacity(t *testing.T) {
	assert.Zero(t, RequiredWorkers(10, 0))
}

func TestSliceBounds(t *testing.T) {
	tests := []struct {
		name      string
		index     int
		count     int
		wantStart int
		wantEnd   int
	}{
		{"first full slice", 0, 1001, 0, 500},
		{"second full slice", 1, 1001, 500, 1000},
		{"trailing partial slice", 2, 1001, 1000, 1001},
		{"slot past the end", 3, 1001, 1001, 1001},
		{"empty directory", 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := SliceBounds(tt.index, tt.count, 500)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}
