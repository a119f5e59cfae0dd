package module

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBaseModuleStopIsIdempotent(t *testing.T) {
	b := NewBaseModule("test", nil, nil)

	b.Stop()
	b.Stop()

	select {
	case <-b.StopChannel():
	default:
		t.Fatal("stop channel not closed")
	}
	assert.Equal(t, "test", b.Name())
}

func TestBackgroundContextCancelledOnStop(t *testing.T) {
	b := NewBaseModule("test", nil, nil)
	ctx, cancel := b.BackgroundContext(context.Background())
	defer cancel()

	b.Stop()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Stop")
	}
}

func TestBackgroundContextFollowsParent(t *testing.T) {
	b := NewBaseModule("test", nil, nil)
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := b.BackgroundContext(parent)
	defer cancel()

	cancelParent()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled with parent")
	}
}
