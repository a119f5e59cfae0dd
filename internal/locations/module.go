package locations

import (
	"context"
	"log/slog"

	authServices "go-falcon-locations/internal/auth/services"
	"go-falcon-locations/internal/character"
	"go-falcon-locations/internal/locations/dto"
	"go-falcon-locations/internal/locations/routes"
	"go-falcon-locations/internal/locations/services"
	"go-falcon-locations/internal/shard"
	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/database"
	"go-falcon-locations/pkg/evegateway"
	"go-falcon-locations/pkg/metrics"
	"go-falcon-locations/pkg/module"

	"github.com/danielgtaylor/huma/v2"
)

// Module runs the location synchronization loop over the account directory
type Module struct {
	*module.BaseModule
	cfg        config.LocationsConfig
	characters *character.Module
	repository *services.Repository
	heartbeat  *services.Heartbeat
	poller     *services.Poller
	controller *shard.Controller
	sweeper    *services.Sweeper
}

// New wires validator, fetcher, resolver, publisher and poller, plus the shard controller
// in sharded mode
func New(mongodb *database.MongoDB, redis *database.Redis, characters *character.Module, esi *evegateway.Client, sso authServices.SSOClient, cfg config.LocationsConfig, m *metrics.Metrics) *Module {
	repository := services.NewRepository(mongodb)

	var (
		broadcaster services.Broadcaster
		kv          services.KeyValueStore
	)
	if redis != nil {
		broadcaster, kv = redis, redis
	}

	validator := authServices.NewValidator(sso, characters.Repository(), m)
	pipeline := services.NewPipeline(
		validator,
		services.NewFetcher(esi.Character, cfg.FetchTimeout, m),
		services.NewNameResolver(esi.Universe, cfg.FetchTimeout, m),
		services.NewPublisher(repository, broadcaster, cfg.BroadcastChannel),
	)
	heartbeat := services.NewHeartbeat(kv, cfg.HeartbeatTTL)
	poller := services.NewPoller(esi.Status, pipeline, heartbeat, cfg, m)

	mod := &Module{
		BaseModule: module.NewBaseModule("locations", mongodb, redis),
		cfg:        cfg,
		characters: characters,
		repository: repository,
		heartbeat:  heartbeat,
		poller:     poller,
		sweeper:    services.NewSweeper(repository, characters.Directory(), cfg.SweepSchedule, m),
	}
	if cfg.Mode == config.ModeSharded {
		mod.controller = shard.NewController(characters.Directory(), poller, cfg, m)
	}
	return mod
}

// Heartbeat returns the pass heartbeat used by the health probe
func (m *Module) Heartbeat() *services.Heartbeat {
	return m.heartbeat
}

// StartBackgroundTasks waits for the directory to load, then runs the sweeper and either
// the shard controller or the single-process poll loop until stopped
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	ctx, cancel := m.BackgroundContext(ctx)
	defer cancel()

	directory := m.characters.Directory()
	select {
	case <-directory.Loaded():
	case <-ctx.Done():
		return
	}
	slog.InfoContext(ctx, "Account directory loaded", "accounts", directory.Size(), "mode", m.cfg.Mode)

	if err := m.sweeper.Start(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to start orphan sweeper", "error", err)
	}
	defer m.sweeper.Stop()

	if m.controller != nil {
		if err := m.controller.Run(ctx); err != nil {
			slog.ErrorContext(ctx, "Shard controller stopped", "error", err)
		}
		return
	}
	_ = m.poller.Run(ctx, config.ModeSingle, directory.Snapshot)
}

// Status reports the synchronization loop for the status route
func (m *Module) Status(ctx context.Context) dto.LocationsStatus {
	status := dto.LocationsStatus{
		Module:   m.Name(),
		Mode:     m.cfg.Mode,
		Capacity: m.cfg.ShardCapacity,
	}

	if m.controller != nil {
		s := m.controller.Status()
		status.Accounts, status.Required, status.Live, status.Workers = s.Accounts, s.Required, s.Live, s.Workers
	} else {
		status.Accounts = m.characters.Directory().Size()
		status.Required = min(status.Accounts, 1)
		status.Live = status.Required
	}

	if last := m.heartbeat.Last(); !last.IsZero() {
		status.LastPass = &last
	}
	if n, err := m.repository.Count(ctx); err == nil {
		status.Records = n
	} else {
		slog.WarnContext(ctx, "Failed to count location records", "error", err)
	}
	return status
}

// RegisterUnifiedRoutes registers the locations routes on the shared API
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterLocationsRoutes(api, basePath, m, m.repository)
}
