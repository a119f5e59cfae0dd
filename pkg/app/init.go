package app

import (
	"context"
	"fmt"
	"log/slog"

	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/database"
	"go-falcon-locations/pkg/logging"

	"github.com/joho/godotenv"
)

// AppContext holds the shared application context and dependencies
type AppContext struct {
	MongoDB          *database.MongoDB
	Redis            *database.Redis
	TelemetryManager *logging.TelemetryManager
	ServiceName      string
	shutdownFuncs    []func(context.Context) error
}

// InitializeApp loads .env, sets up logging and telemetry and connects to the databases.
// MongoDB is required; Redis is optional and left nil when unreachable.
func InitializeApp(ctx context.Context, serviceName string) (*AppContext, error) {
	envErr := godotenv.Load()

	telemetryManager := logging.NewTelemetryManager(serviceName)
	if err := telemetryManager.Initialize(ctx); err != nil {
		slog.Warn("Failed to initialize telemetry", "error", err)
	}
	if envErr != nil {
		slog.Debug("No .env file loaded", "error", envErr)
	}

	appCtx := &AppContext{
		TelemetryManager: telemetryManager,
		ServiceName:      serviceName,
	}
	appCtx.shutdownFuncs = append(appCtx.shutdownFuncs, telemetryManager.Shutdown)

	mongodb, err := database.NewMongoDB(ctx, config.GetEnv("MONGODB_DATABASE", "falcon"))
	if err != nil {
		return nil, fmt.Errorf("mongodb: %w", err)
	}
	appCtx.MongoDB = mongodb
	// Telemetry stays last so shutdown logs still get exported
	appCtx.shutdownFuncs = append([]func(context.Context) error{mongodb.Close}, appCtx.shutdownFuncs...)

	redis, err := database.NewRedis(ctx)
	if err != nil {
		slog.Warn("Redis unavailable, broadcasts and heartbeats disabled", "error", err)
	} else {
		appCtx.Redis = redis
		appCtx.shutdownFuncs = append([]func(context.Context) error{func(context.Context) error {
			return redis.Close()
		}}, appCtx.shutdownFuncs...)
	}

	return appCtx, nil
}

// Shutdown releases dependencies in reverse order of acquisition
func (a *AppContext) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down application", "service", a.ServiceName)

	for _, shutdown := range a.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			slog.Error("Error during shutdown", "error", err)
		}
	}
	return nil
}

// GetPort returns the port from environment or default
func GetPort(defaultPort string) string {
	return config.GetEnv("PORT", defaultPort)
}
