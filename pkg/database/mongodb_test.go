package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDatabaseName(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"path present", "mongodb://user:pw@localhost:27017/eve?authSource=admin", "eve"},
		{"no path", "mongodb://localhost:27017", "falcon"},
		{"trailing slash only", "mongodb://localhost:27017/", "falcon"},
		{"srv uri", "mongodb+srv://cluster0.example.net/tracking", "tracking"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractDatabaseName(tt.uri, "falcon"))
		})
	}
}
