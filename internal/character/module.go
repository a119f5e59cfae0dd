package character

import (
	"context"
	"log/slog"

	"go-falcon-locations/internal/character/routes"
	"go-falcon-locations/internal/character/services"
	"go-falcon-locations/pkg/database"
	"go-falcon-locations/pkg/metrics"
	"go-falcon-locations/pkg/module"

	"github.com/danielgtaylor/huma/v2"
)

// Module owns the account directory: the in-memory mirror of the characters collection
type Module struct {
	*module.BaseModule
	repository *services.Repository
	directory  *services.Directory
	source     services.Source
}

// New creates a new character module instance
func New(mongodb *database.MongoDB, redis *database.Redis, m *metrics.Metrics) *Module {
	repository := services.NewRepository(mongodb)

	return &Module{
		BaseModule: module.NewBaseModule("character", mongodb, redis),
		repository: repository,
		directory:  services.NewDirectory(repository, m),
		source:     services.NewMongoSource(repository),
	}
}

// Repository returns the characters repository, which is also the credential store
func (m *Module) Repository() *services.Repository {
	return m.repository
}

// Directory returns the account directory
func (m *Module) Directory() *services.Directory {
	return m.directory
}

// StartBackgroundTasks mirrors the characters collection until stopped
func (m *Module) StartBackgroundTasks(ctx context.Context) {
	ctx, cancel := m.BackgroundContext(ctx)
	defer cancel()

	slog.InfoContext(ctx, "Starting account directory", "module", m.Name())
	if err := m.directory.Run(ctx, m.source); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Account directory stopped", "error", err)
	}
}

// RegisterUnifiedRoutes registers the character routes on the shared API
func (m *Module) RegisterUnifiedRoutes(api huma.API, basePath string) {
	routes.RegisterCharacterRoutes(api, basePath, m.directory)
}
