package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go-falcon-locations/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// RecordIndex lists and bulk-deletes stored location records
type RecordIndex interface {
	ListIDs(ctx context.Context) ([]int64, error)
	DeleteMany(ctx context.Context, characterIDs []int64) (int64, error)
}

// KnownAccounts is the view of the account directory the sweeper needs
type KnownAccounts interface {
	Loaded() <-chan struct{}
	Keys() []int64
}

// Sweeper periodically deletes records of characters that left the directory
type Sweeper struct {
	records  RecordIndex
	accounts KnownAccounts
	schedule string
	metrics  *metrics.Metrics

	cron    *cron.Cron
	cancel  context.CancelFunc
	mu      sync.Mutex
	running bool
}

// NewSweeper creates an orphan sweeper on a cron schedule such as "@every 10m"
func NewSweeper(records RecordIndex, accounts KnownAccounts, schedule string, m *metrics.Metrics) *Sweeper {
	return &Sweeper{
		records:  records,
		accounts: accounts,
		schedule: schedule,
		metrics:  m,
	}
}

// Start schedules the sweep
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			slog.ErrorContext(ctx, "Orphan sweep failed", "error", err)
		}
	}); err != nil {
		cancel()
		return fmt.Errorf("invalid sweep schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron, s.cancel, s.running = c, cancel, true
	slog.InfoContext(ctx, "Orphan sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	<-s.cron.Stop().Done()
	s.running = false
}

// Sweep deletes every record whose character is no longer tracked. It does nothing
// until the directory finished its initial load.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	select {
	case <-s.accounts.Loaded():
	default:
		slog.DebugContext(ctx, "Skipping orphan sweep, directory not loaded")
		return 0, nil
	}

	ids, err := s.records.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	known := make(map[int64]struct{})
	for _, id := range s.accounts.Keys() {
		known[id] = struct{}{}
	}

	var orphans []int64
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}

	removed, err := s.records.DeleteMany(ctx, orphans)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordSweep(int(removed))
	slog.InfoContext(ctx, "Removed orphaned location records", "count", removed)
	return removed, nil
}
