package universe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"go-falcon-locations/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxNamesPerRequest is the ESI limit for POST /universe/names/
const MaxNamesPerRequest = 1000

// Client interface for universe-related ESI operations
type Client interface {
	GetNames(ctx context.Context, ids []int64) ([]NameResponse, error)
}

// NameResponse is one entry of POST /universe/names/
type NameResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// RetryClient interface for retry operations
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}

// UniverseClient implements universe-related ESI operations
type UniverseClient struct {
	baseURL     string
	userAgent   string
	retryClient RetryClient
}

// NewUniverseClient creates a new universe client
func NewUniverseClient(baseURL, userAgent string, retryClient RetryClient) Client {
	return &UniverseClient{
		baseURL:     baseURL,
		userAgent:   userAgent,
		retryClient: retryClient,
	}
}

// GetNames resolves ids to display names. Duplicate ids are collapsed before the request.
// ESI fails the whole request with 404 if any id is unknown.
func (c *UniverseClient) GetNames(ctx context.Context, ids []int64) ([]NameResponse, error) {
	unique := slices.Clone(ids)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	if len(unique) == 0 {
		return []NameResponse{}, nil
	}
	if len(unique) > MaxNamesPerRequest {
		return nil, fmt.Errorf("maximum %d ids allowed per request, got %d", MaxNamesPerRequest, len(unique))
	}

	var span trace.Span
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		ctx, span = otel.Tracer("go-falcon-locations/evegateway/universe").Start(ctx, "universe.GetNames")
		defer span.End()
		span.SetAttributes(attribute.Int("esi.id_count", len(unique)))
	}

	body, err := json.Marshal(unique)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ids: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/universe/names/", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.retryClient.DoWithRetry(ctx, req, 1)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to call ESI")
		}
		return nil, fmt.Errorf("failed to resolve names: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if span != nil {
			span.SetStatus(codes.Error, "ESI returned error status")
		}
		slog.WarnContext(ctx, "ESI names endpoint returned error", "status_code", resp.StatusCode, "ids", unique)
		return nil, fmt.Errorf("ESI returned status %d", resp.StatusCode)
	}

	var names []NameResponse
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse response")
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if span != nil {
		span.SetStatus(codes.Ok, "success")
	}
	return names, nil
}
