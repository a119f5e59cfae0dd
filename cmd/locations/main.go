package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	authServices "go-falcon-locations/internal/auth/services"
	"go-falcon-locations/internal/character"
	"go-falcon-locations/internal/locations"
	"go-falcon-locations/pkg/app"
	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/evegateway"
	"go-falcon-locations/pkg/handlers"
	"go-falcon-locations/pkg/metrics"
	"go-falcon-locations/pkg/module"
	"go-falcon-locations/pkg/version"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "go.uber.org/automaxprocs"
)

const serviceName = "falcon-locations"

// requestLogger logs requests but skips health and metrics scrapes
func requestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appCtx, err := app.InitializeApp(ctx, serviceName)
	if err != nil {
		slog.Error("Failed to initialize application", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting locations service",
		"version", version.String(),
		"build_date", version.BuildDate,
		"cpus", runtime.NumCPU(),
		"gomaxprocs", runtime.GOMAXPROCS(0))

	cfg, err := config.LoadLocationsConfig()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		appCtx.Shutdown(context.Background())
		os.Exit(1)
	}

	m := metrics.NewMetrics("falcon_locations")
	esi := evegateway.NewClient()

	characterModule := character.New(appCtx.MongoDB, appCtx.Redis, m)
	locationsModule := locations.New(appCtx.MongoDB, appCtx.Redis, characterModule, esi, authServices.NewEVEService(), cfg, m)
	modules := []module.Module{characterModule, locationsModule}

	r := chi.NewRouter()
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(handlers.TracingMiddleware(serviceName))

	r.Get("/health", handlers.HeartbeatHealthHandler(serviceName, locationsModule.Heartbeat().Last, cfg.HealthMaxAge))
	r.Handle("/metrics", m.Handler())

	humaConfig := huma.DefaultConfig("Go Falcon Locations", version.Version)
	humaConfig.Info.Description = "Continuous EVE Online character location and ship synchronization"
	api := humachi.New(r, humaConfig)

	characterModule.RegisterUnifiedRoutes(api, "/characters")
	locationsModule.RegisterUnifiedRoutes(api, "/locations")

	done := make(chan struct{}, len(modules))
	for _, mod := range modules {
		go func() {
			mod.StartBackgroundTasks(ctx)
			done <- struct{}{}
		}()
	}

	srv := &http.Server{
		Addr:         config.GetHost() + ":" + app.GetPort("8080"),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Starting HTTP server", slog.String("addr", srv.Addr), slog.String("mode", cfg.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced to shutdown", "error", err)
	}

	for _, mod := range modules {
		mod.Stop()
	}
	for range modules {
		select {
		case <-done:
		case <-shutdownCtx.Done():
			slog.Warn("Timed out waiting for background tasks")
		}
	}

	appCtx.Shutdown(shutdownCtx)
	slog.Info("Locations service shutdown completed")
}
