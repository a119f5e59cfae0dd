package services

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/pkg/metrics"
)

// EventType identifies a directory mutation
type EventType string

const (
	EventAdded   EventType = "added"
	EventChanged EventType = "changed"
	EventRemoved EventType = "removed"
	// EventSnapshot replaces the whole directory, emitted after (re)connecting
	EventSnapshot EventType = "snapshot"
)

// Event is one mutation delivered by a Source
type Event struct {
	Type      EventType
	ID        int64
	Character *models.Character
	Snapshot  []models.Character
}

// Source delivers directory events in order. The channel is closed when ctx is done.
type Source interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// LegacyTokenRemover strips pre-sso token fields from the backing store
type LegacyTokenRemover interface {
	UnsetLegacyTokens(ctx context.Context, characterID int64) error
}

// Directory is the in-memory set of tracked characters, keyed by character id.
// Keys are kept in ascending order so that shard slices are stable between calls.
type Directory struct {
	mu        sync.RWMutex
	accounts  map[int64]models.Character
	keys      []int64
	listeners []func()
	loaded    chan struct{}
	loadOnce  sync.Once

	remover LegacyTokenRemover
	metrics *metrics.Metrics
}

// NewDirectory creates an empty directory. remover and m may be nil.
func NewDirectory(remover LegacyTokenRemover, m *metrics.Metrics) *Directory {
	return &Directory{
		accounts: make(map[int64]models.Character),
		loaded:   make(chan struct{}),
		remover:  remover,
		metrics:  m,
	}
}

// OnChange registers fn to be called after every applied mutation
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Loaded is closed once the first snapshot has been applied
func (d *Directory) Loaded() <-chan struct{} {
	return d.loaded
}

// Run consumes source until ctx is cancelled or the source closes its channel
func (d *Directory) Run(ctx context.Context, source Source) error {
	events, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ctx.Err()
			}
			d.Apply(ctx, ev)
		}
	}
}

// Apply applies one event. Events must be applied in delivery order.
func (d *Directory) Apply(ctx context.Context, ev Event) {
	var legacy []int64

	d.mu.Lock()
	switch ev.Type {
	case EventSnapshot:
		d.accounts = make(map[int64]models.Character, len(ev.Snapshot))
		for _, c := range ev.Snapshot {
			if d.normalize(&c) {
				legacy = append(legacy, c.CharacterID)
			}
			d.accounts[c.CharacterID] = c.Clone()
		}
		d.rebuildKeys()
	case EventAdded, EventChanged:
		if ev.Character == nil {
			d.mu.Unlock()
			return
		}
		c := ev.Character.Clone()
		if d.normalize(&c) {
			legacy = append(legacy, c.CharacterID)
		}
		if _, exists := d.accounts[c.CharacterID]; !exists {
			pos, _ := slices.BinarySearch(d.keys, c.CharacterID)
			d.keys = slices.Insert(d.keys, pos, c.CharacterID)
		}
		d.accounts[c.CharacterID] = c
	case EventRemoved:
		if _, exists := d.accounts[ev.ID]; exists {
			delete(d.accounts, ev.ID)
			if pos, found := slices.BinarySearch(d.keys, ev.ID); found {
				d.keys = slices.Delete(d.keys, pos, pos+1)
			}
		}
	default:
		d.mu.Unlock()
		slog.WarnContext(ctx, "Ignoring unknown directory event", "type", ev.Type)
		return
	}
	size := len(d.keys)
	listeners := slices.Clone(d.listeners)
	d.mu.Unlock()

	if ev.Type == EventSnapshot {
		d.loadOnce.Do(func() { close(d.loaded) })
		slog.InfoContext(ctx, "Character directory loaded", "characters", size)
	}
	d.metrics.SetDirectorySize(size)

	for _, id := range legacy {
		d.removeLegacyTokens(ctx, id)
	}
	for _, fn := range listeners {
		fn()
	}
}

// normalize strips legacy token fields and reports whether the store needs the same
func (d *Directory) normalize(c *models.Character) bool {
	if !c.HasLegacyTokens() {
		return false
	}
	c.StripLegacyTokens()
	return true
}

func (d *Directory) removeLegacyTokens(ctx context.Context, id int64) {
	if d.remover == nil {
		return
	}
	if err := d.remover.UnsetLegacyTokens(ctx, id); err != nil {
		slog.WarnContext(ctx, "Failed to remove legacy token fields", "character_id", id, "error", err)
	}
}

func (d *Directory) rebuildKeys() {
	d.keys = d.keys[:0]
	for id := range d.accounts {
		d.keys = append(d.keys, id)
	}
	slices.Sort(d.keys)
}

// Size returns the number of tracked characters
func (d *Directory) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.keys)
}

// Keys returns the character ids in ascending order
func (d *Directory) Keys() []int64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.keys)
}

// Get returns a copy of one character
func (d *Directory) Get(id int64) (models.Character, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.accounts[id]
	if !ok {
		return models.Character{}, false
	}
	return c.Clone(), true
}

// Snapshot returns copies of all characters in key order
func (d *Directory) Snapshot() []models.Character {
	return d.Range(0, -1)
}

// Range returns copies of up to limit characters starting at offset in key order.
// A negative limit means everything from offset.
func (d *Directory) Range(offset, limit int) []models.Character {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if offset < 0 || offset >= len(d.keys) {
		return []models.Character{}
	}
	end := len(d.keys)
	if limit >= 0 && offset+limit < end {
		end = offset + limit
	}

	out := make([]models.Character, 0, end-offset)
	for _, id := range d.keys[offset:end] {
		out = append(out, d.accounts[id].Clone())
	}
	return out
}
