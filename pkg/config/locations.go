package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Run modes for the locations service
const (
	ModeSharded = "sharded"
	ModeSingle  = "single"
)

// LocationsConfig holds the tunables of the synchronization loop and the shard controller.
type LocationsConfig struct {
	Mode             string        `validate:"oneof=sharded single"`
	ShardCapacity    int           `validate:"gt=0"`
	Concurrency      int           `validate:"gt=0"`
	FetchTimeout     time.Duration `validate:"gt=0"`
	EmptyBackoff     time.Duration `validate:"gte=0"`
	OfflineBackoff   time.Duration `validate:"gte=0"`
	ErrorBackoff     time.Duration `validate:"gte=0"`
	RestartCooldown  time.Duration `validate:"gte=0"`
	MinPassInterval  time.Duration `validate:"gte=0"`
	RebalanceEvery   time.Duration `validate:"gt=0"`
	WorkerMaxPasses  int           `validate:"gte=0"`
	SweepSchedule    string        `validate:"required"`
	HealthMaxAge     time.Duration `validate:"gt=0"`
	HeartbeatTTL     time.Duration `validate:"gt=0"`
	BroadcastChannel string        `validate:"required"`
}

// DefaultLocationsConfig returns the production defaults.
func DefaultLocationsConfig() LocationsConfig {
	return LocationsConfig{
		Mode:             ModeSharded,
		ShardCapacity:    500,
		Concurrency:      500,
		FetchTimeout:     8 * time.Second,
		EmptyBackoff:     6 * time.Second,
		OfflineBackoff:   35 * time.Second,
		ErrorBackoff:     15 * time.Second,
		RestartCooldown:  15 * time.Second,
		MinPassInterval:  7 * time.Second,
		RebalanceEvery:   30 * time.Second,
		SweepSchedule:    "@every 10m",
		HealthMaxAge:     60 * time.Second,
		HeartbeatTTL:     2 * time.Minute,
		BroadcastChannel: "locations:updates",
	}
}

// LoadLocationsConfig reads LOCATIONS_* variables over the defaults and validates the result.
func LoadLocationsConfig() (LocationsConfig, error) {
	d := DefaultLocationsConfig()
	cfg := LocationsConfig{
		Mode:             GetEnv("LOCATIONS_MODE", d.Mode),
		ShardCapacity:    GetIntEnv("LOCATIONS_SHARD_CAPACITY", d.ShardCapacity),
		Concurrency:      GetIntEnv("LOCATIONS_CONCURRENCY", d.Concurrency),
		FetchTimeout:     GetDurationEnv("LOCATIONS_FETCH_TIMEOUT", d.FetchTimeout),
		EmptyBackoff:     GetDurationEnv("LOCATIONS_EMPTY_BACKOFF", d.EmptyBackoff),
		OfflineBackoff:   GetDurationEnv("LOCATIONS_OFFLINE_BACKOFF", d.OfflineBackoff),
		ErrorBackoff:     GetDurationEnv("LOCATIONS_ERROR_BACKOFF", d.ErrorBackoff),
		RestartCooldown:  GetDurationEnv("LOCATIONS_RESTART_COOLDOWN", d.RestartCooldown),
		MinPassInterval:  GetDurationEnv("LOCATIONS_MIN_PASS_INTERVAL", d.MinPassInterval),
		RebalanceEvery:   GetDurationEnv("LOCATIONS_REBALANCE_INTERVAL", d.RebalanceEvery),
		WorkerMaxPasses:  GetIntEnv("LOCATIONS_WORKER_MAX_PASSES", d.WorkerMaxPasses),
		SweepSchedule:    GetEnv("LOCATIONS_SWEEP_SCHEDULE", d.SweepSchedule),
		HealthMaxAge:     GetDurationEnv("LOCATIONS_HEALTH_MAX_AGE", d.HealthMaxAge),
		HeartbeatTTL:     GetDurationEnv("LOCATIONS_HEARTBEAT_TTL", d.HeartbeatTTL),
		BroadcastChannel: GetEnv("LOCATIONS_BROADCAST_CHANNEL", d.BroadcastChannel),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return LocationsConfig{}, fmt.Errorf("invalid locations configuration: %w", err)
	}
	return cfg, nil
}
