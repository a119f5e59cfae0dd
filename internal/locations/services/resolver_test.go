package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNameResolverResolve(t *testing.T) {
	client := &fakeUniverse{names: map[int64]string{jitaID: "Jita", capsuleID: "Capsule"}}
	resolver := NewNameResolver(client, time.Second, nil)

	names, err := resolver.Resolve(context.Background(), 1, jitaID, capsuleID)

	require.NoError(t, err)
	assert.Equal(t, map[int64]string{jitaID: "Jita", capsuleID: "Capsule"}, names)
	assert.Equal(t, 1, client.callCount())
}

func TestNameResolverMissingID(t *testing.T) {
	client := &fakeUniverse{names: map[int64]string{jitaID: "Jita"}}
	resolver := NewNameResolver(client, time.Second, nil)

	_, err := resolver.Resolve(context.Background(), 1, jitaID, capsuleID)

	assert.ErrorContains(t, err, "670")
}

func TestNameResolverUpstreamError(t *testing.T) {
	client := &fakeUniverse{err: errUpstream}
	resolver := NewNameResolver(client, time.Second, nil)

	_, err := resolver.Resolve(context.Background(), 1, jitaID)

	assert.ErrorIs(t, err, errUpstream)
}
