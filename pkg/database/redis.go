package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go-falcon-locations/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Redis struct {
	Client *redis.Client
	tracer trace.Tracer
}

func NewRedis(ctx context.Context) (*Redis, error) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	slog.Info("Connected to Redis", "addr", opt.Addr)

	r := &Redis{
		Client: client,
	}

	// Only initialize tracer if telemetry is enabled
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		r.tracer = otel.Tracer("redis-client")
	}

	return r, nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}

func (r *Redis) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if r.tracer == nil {
		return ctx, nil
	}
	return r.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (r *Redis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, span := r.startSpan(ctx, "redis.set",
		attribute.String("redis.key", key),
		attribute.String("redis.operation", "SET"),
	)
	err := r.Client.Set(ctx, key, value, expiration).Err()
	if span != nil {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
	return err
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	ctx, span := r.startSpan(ctx, "redis.get",
		attribute.String("redis.key", key),
		attribute.String("redis.operation", "GET"),
	)
	result, err := r.Client.Get(ctx, key).Result()
	if span != nil {
		if err != nil && err != redis.Nil {
			span.RecordError(err)
		}
		span.End()
	}
	return result, err
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	ctx, span := r.startSpan(ctx, "redis.delete",
		attribute.StringSlice("redis.keys", keys),
		attribute.String("redis.operation", "DEL"),
	)
	err := r.Client.Del(ctx, keys...).Err()
	if span != nil {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
	return err
}

// PublishJSON marshals value and publishes it on channel
func (r *Redis) PublishJSON(ctx context.Context, channel string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	ctx, span := r.startSpan(ctx, "redis.publish",
		attribute.String("redis.channel", channel),
		attribute.String("redis.operation", "PUBLISH"),
		attribute.Int("redis.data_size", len(payload)),
	)
	err = r.Client.Publish(ctx, channel, payload).Err()
	if span != nil {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}
	return err
}

func (r *Redis) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}
