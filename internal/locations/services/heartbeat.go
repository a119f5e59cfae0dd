package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// KeyValueStore is where heartbeats are mirrored for other processes
type KeyValueStore interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Heartbeat records when a pass last completed, in memory and optionally in a shared store
type Heartbeat struct {
	last  atomic.Int64
	store KeyValueStore
	ttl   time.Duration
}

// NewHeartbeat creates a heartbeat. store may be nil.
func NewHeartbeat(store KeyValueStore, ttl time.Duration) *Heartbeat {
	return &Heartbeat{store: store, ttl: ttl}
}

// Beat marks a pass of worker as completed
func (h *Heartbeat) Beat(ctx context.Context, worker string, report PassReport) {
	h.last.Store(report.Finished.UnixNano())

	if h.store == nil {
		return
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := h.store.Set(ctx, "locations:heartbeat:"+worker, payload, h.ttl); err != nil {
		slog.DebugContext(ctx, "Failed to store heartbeat", "worker", worker, "error", err)
	}
}

// Last returns when a pass last completed, zero if none has
func (h *Heartbeat) Last() time.Time {
	n := h.last.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
