package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/evegateway/status"
	"go-falcon-locations/pkg/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// PassOutcome classifies a completed pass
type PassOutcome string

const (
	PassOK           PassOutcome = "ok"
	PassEmpty        PassOutcome = "empty"
	PassUpstreamDown PassOutcome = "upstream_down"
	PassError        PassOutcome = "error"
)

// ErrUpstreamDown is reported when the cluster status is unreachable or unhealthy
var ErrUpstreamDown = errors.New("upstream status unavailable")

// StatusChecker reports the upstream cluster status
type StatusChecker interface {
	GetServerStatus(ctx context.Context) (*status.ServerStatusResponse, error)
}

// AccountProcessor runs the per-account pipeline
type AccountProcessor interface {
	Process(ctx context.Context, c models.Character) AccountResult
}

// PassReport is what a worker tells its controller after each pass
type PassReport struct {
	WorkerID string                `json:"worker_id"`
	Index    int                   `json:"index"`
	Outcome  PassOutcome           `json:"outcome"`
	Delay    time.Duration         `json:"delay"`
	Started  time.Time             `json:"started"`
	Finished time.Time             `json:"finished"`
	Duration time.Duration         `json:"duration"`
	Accounts int                   `json:"accounts"`
	Results  map[AccountResult]int `json:"results,omitempty"`
	Error    string                `json:"error,omitempty"`
	Err      error                 `json:"-"`
}

// Poller runs passes over a set of accounts
type Poller struct {
	status    StatusChecker
	processor AccountProcessor
	heartbeat *Heartbeat
	cfg       config.LocationsConfig
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewPoller creates a poller. heartbeat may be nil.
func NewPoller(statusChecker StatusChecker, processor AccountProcessor, heartbeat *Heartbeat, cfg config.LocationsConfig, m *metrics.Metrics) *Poller {
	return &Poller{
		status:    statusChecker,
		processor: processor,
		heartbeat: heartbeat,
		cfg:       cfg,
		metrics:   m,
		now:       time.Now,
	}
}

// RunPass processes every account once and reports how long to wait before the next pass.
func (p *Poller) RunPass(ctx context.Context, worker string, accounts []models.Character) (report PassReport) {
	tracer := otel.Tracer("go-falcon-locations/locations")
	ctx, span := tracer.Start(ctx, "locations.poller.run_pass")
	defer span.End()
	span.SetAttributes(
		attribute.String("worker_id", worker),
		attribute.Int("accounts", len(accounts)),
	)

	report = PassReport{WorkerID: worker, Started: p.now(), Accounts: len(accounts)}

	defer func() {
		if r := recover(); r != nil {
			report.Outcome = PassError
			report.Delay = p.cfg.ErrorBackoff
			report.Err = fmt.Errorf("pass panicked: %v", r)
		}
		report.Finished = p.now()
		report.Duration = report.Finished.Sub(report.Started)
		if report.Err != nil {
			report.Error = report.Err.Error()
			span.RecordError(report.Err)
		}
		span.SetAttributes(attribute.String("outcome", string(report.Outcome)))
		p.metrics.RecordPass(worker, string(report.Outcome), report.Duration)
		if p.heartbeat != nil {
			p.heartbeat.Beat(ctx, worker, report)
		}
	}()

	if len(accounts) == 0 {
		report.Outcome = PassEmpty
		report.Delay = p.cfg.EmptyBackoff
		return report
	}

	serverStatus, err := p.status.GetServerStatus(ctx)
	if err != nil || !serverStatus.Healthy() {
		if err == nil {
			err = ErrUpstreamDown
		}
		slog.WarnContext(ctx, "Upstream unavailable, skipping pass", "worker_id", worker, "error", err, "backoff", p.cfg.OfflineBackoff)
		report.Outcome = PassUpstreamDown
		report.Delay = p.cfg.OfflineBackoff
		report.Err = err
		return report
	}

	report.Results = p.processAll(ctx, accounts)
	report.Outcome = PassOK
	report.Delay = max(0, p.cfg.MinPassInterval-p.now().Sub(report.Started))

	slog.DebugContext(ctx, "Pass completed",
		"worker_id", worker,
		"accounts", len(accounts),
		"published", report.Results[ResultPublished],
		"removed", report.Results[ResultRemoved],
		"duration", p.now().Sub(report.Started))
	return report
}

func (p *Poller) processAll(ctx context.Context, accounts []models.Character) map[AccountResult]int {
	var (
		mu      sync.Mutex
		results = make(map[AccountResult]int)
		g       errgroup.Group
	)
	g.SetLimit(p.cfg.Concurrency)

	for _, account := range accounts {
		g.Go(func() error {
			result := p.processOne(ctx, account)
			mu.Lock()
			results[result]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Poller) processOne(ctx context.Context, c models.Character) (result AccountResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Account processing panicked", "character_id", c.CharacterID, "panic", r)
			result = ResultFailed
		}
		p.metrics.RecordAccount(string(result))
	}()
	return p.processor.Process(ctx, c)
}

// Run loops passes over accounts() until ctx is cancelled. It is the single-process mode.
func (p *Poller) Run(ctx context.Context, worker string, accounts func() []models.Character) error {
	slog.InfoContext(ctx, "Starting location poller", "worker_id", worker)
	for {
		report := p.RunPass(ctx, worker, accounts())
		if report.Outcome == PassError {
			slog.ErrorContext(ctx, "Pass failed", "worker_id", worker, "error", report.Err, "backoff", report.Delay)
		}
		if err := Sleep(ctx, report.Delay); err != nil {
			slog.InfoContext(ctx, "Location poller stopped", "worker_id", worker)
			return err
		}
	}
}

// Sleep waits for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
