package shard

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/internal/locations/services"
	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/metrics"
)

// AccountSource is the directory view the controller slices
type AccountSource interface {
	Size() int
	Range(offset, limit int) []models.Character
	OnChange(fn func())
}

// WorkerStatus describes one slot
type WorkerStatus struct {
	Index      int                  `json:"index"`
	WorkerID   string               `json:"worker_id"`
	Running    bool                 `json:"running"`
	Restarts   int                  `json:"restarts"`
	LastReport *services.PassReport `json:"last_report,omitempty"`
}

// Status is a point-in-time view of the controller
type Status struct {
	Accounts int            `json:"accounts"`
	Capacity int            `json:"capacity"`
	Required int            `json:"required"`
	Live     int            `json:"live"`
	Workers  []WorkerStatus `json:"workers"`
}

// IdleWorkerID names the passes the controller runs itself while no worker is required
const IdleWorkerID = "idle"

type slot struct {
	index  int
	cancel context.CancelFunc
	done   chan struct{}
	// prev is the cancelled slot that last held this index
	prev *slot

	mu       sync.Mutex
	workerID string
	running  bool
	restarts int
	last     *services.PassReport
}

func (s *slot) snapshot() WorkerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return WorkerStatus{
		Index:      s.index,
		WorkerID:   s.workerID,
		Running:    s.running,
		Restarts:   s.restarts,
		LastReport: s.last,
	}
}

// Controller keeps ceil(accounts/capacity) workers alive, one per contiguous slice
type Controller struct {
	directory AccountSource
	runner    PassRunner
	cfg       config.LocationsConfig
	metrics   *metrics.Metrics

	changed chan struct{}
	live    atomic.Int32
	wg      sync.WaitGroup

	mu       sync.Mutex
	slots    []*slot
	retired  map[int]*slot
	required int
}

// NewController creates a shard controller and subscribes it to directory changes
func NewController(directory AccountSource, runner PassRunner, cfg config.LocationsConfig, m *metrics.Metrics) *Controller {
	c := &Controller{
		directory: directory,
		runner:    runner,
		cfg:       cfg,
		metrics:   m,
		changed:   make(chan struct{}, 1),
		retired:   make(map[int]*slot),
	}
	directory.OnChange(c.notify)
	return c
}

func (c *Controller) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Run reconciles the worker set until ctx is cancelled, then stops every worker
func (c *Controller) Run(ctx context.Context) error {
	slog.InfoContext(ctx, "Starting shard controller", "capacity", c.cfg.ShardCapacity, "rebalance_interval", c.cfg.RebalanceEvery)

	ticker := time.NewTicker(c.cfg.RebalanceEvery)
	defer ticker.Stop()

	idleEvery := c.cfg.EmptyBackoff
	if idleEvery <= 0 {
		idleEvery = c.cfg.RebalanceEvery
	}
	idleTicker := time.NewTicker(idleEvery)
	defer idleTicker.Stop()

	c.reconcile(ctx)
	c.idle(ctx)
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			for _, s := range c.slots {
				s.cancel()
			}
			c.slots = nil
			clear(c.retired)
			c.mu.Unlock()
			c.wg.Wait()
			slog.InfoContext(ctx, "Shard controller stopped")
			return nil
		case <-c.changed:
			c.reconcile(ctx)
			c.idle(ctx)
		case <-ticker.C:
			c.reconcile(ctx)
		case <-idleTicker.C:
			c.idle(ctx)
		}
	}
}

// idle runs an empty pass while no worker is required so the pass heartbeat keeps beating
func (c *Controller) idle(ctx context.Context) {
	if c.Required() > 0 {
		return
	}
	report := c.runner.RunPass(ctx, IdleWorkerID, []models.Character{})
	slog.DebugContext(ctx, "No accounts to shard", "outcome", report.Outcome, "delay", report.Delay)
}

func (c *Controller) reconcile(ctx context.Context) {
	required := RequiredWorkers(c.directory.Size(), c.cfg.ShardCapacity)

	c.mu.Lock()
	c.required = required
	before := len(c.slots)
	for len(c.slots) < required {
		index := len(c.slots)
		slotCtx, cancel := context.WithCancel(ctx)
		s := &slot{index: index, cancel: cancel, done: make(chan struct{}), prev: c.retired[index]}
		delete(c.retired, index)
		c.slots = append(c.slots, s)
		c.wg.Add(1)
		go c.supervise(slotCtx, s)
	}
	for len(c.slots) > required {
		last := c.slots[len(c.slots)-1]
		last.cancel()
		c.retired[last.index] = last
		c.slots = c.slots[:len(c.slots)-1]
	}
	after := len(c.slots)
	c.mu.Unlock()

	if before != after {
		slog.InfoContext(ctx, "Rebalanced workers", "from", before, "to", after)
	}
	c.metrics.SetWorkers(int(c.live.Load()), required)
}

// supervise keeps a worker running in slot s. A failed worker is restarted after the
// cooldown, a cleanly exited one immediately. A slot reusing the index of a cancelled one
// starts only after that one's worker is gone.
func (c *Controller) supervise(ctx context.Context, s *slot) {
	defer c.wg.Done()
	defer close(s.done)

	if s.prev != nil {
		select {
		case <-s.prev.done:
			s.prev = nil
		case <-ctx.Done():
			return
		}
	}

	for {
		worker := NewWorker(s.index, c.runner, c.cfg.WorkerMaxPasses)

		s.mu.Lock()
		s.workerID, s.running = worker.ID, true
		s.mu.Unlock()
		c.live.Add(1)
		c.metrics.SetWorkers(int(c.live.Load()), c.Required())

		err := c.drive(ctx, s, worker)

		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		c.live.Add(-1)
		c.metrics.SetWorkers(int(c.live.Load()), c.Required())

		if ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.restarts++
		s.mu.Unlock()

		if err != nil {
			slog.ErrorContext(ctx, "Worker failed, restarting after cooldown",
				"index", s.index,
				"worker_id", worker.ID,
				"error", err,
				"cooldown", c.cfg.RestartCooldown)
			c.metrics.RecordRestart("failure")
			if services.Sleep(ctx, c.cfg.RestartCooldown) != nil {
				return
			}
			continue
		}

		slog.InfoContext(ctx, "Worker exited, restarting", "index", s.index, "worker_id", worker.ID)
		c.metrics.RecordRestart("clean")
	}
}

// drive feeds worker one assignment per pass and waits between passes as its reports say
func (c *Controller) drive(ctx context.Context, s *slot, worker *Worker) error {
	assignments := make(chan Assignment)
	reports := make(chan services.PassReport, 1)
	exit := make(chan error, 1)

	go func() {
		exit <- worker.Run(ctx, assignments, reports)
	}()

	for {
		start, end := SliceBounds(s.index, c.directory.Size(), c.cfg.ShardCapacity)
		assignment := Assignment{
			Index:    s.index,
			Accounts: c.directory.Range(start, end-start),
		}

		select {
		case assignments <- assignment:
		case err := <-exit:
			return err
		}

		select {
		case report := <-reports:
			s.mu.Lock()
			s.last = &report
			s.mu.Unlock()

			slog.DebugContext(ctx, "Worker finished pass",
				"index", s.index,
				"worker_id", worker.ID,
				"outcome", report.Outcome,
				"duration", report.Duration,
				"delay", report.Delay)

			if report.Outcome == services.PassError {
				return <-exit
			}
			if err := services.Sleep(ctx, report.Delay); err != nil {
				close(assignments)
				return <-exit
			}
		case err := <-exit:
			return err
		}
	}
}

// Required returns the worker count the last reconcile asked for
func (c *Controller) Required() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.required
}

// Live returns the number of running workers
func (c *Controller) Live() int {
	return int(c.live.Load())
}

// Status returns the current controller state
func (c *Controller) Status() Status {
	c.mu.Lock()
	slots := append([]*slot(nil), c.slots...)
	required := c.required
	c.mu.Unlock()

	status := Status{
		Accounts: c.directory.Size(),
		Capacity: c.cfg.ShardCapacity,
		Required: required,
		Live:     c.Live(),
		Workers:  make([]WorkerStatus, 0, len(slots)),
	}
	for _, s := range slots {
		status.Workers = append(status.Workers, s.snapshot())
	}
	return status
}
