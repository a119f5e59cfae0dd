package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-falcon-locations/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client interface for status-related ESI operations
type Client interface {
	GetServerStatus(ctx context.Context) (*ServerStatusResponse, error)
}

// ServerStatusResponse represents the EVE Online server status.
// Players is nil when the field is absent, which ESI does while Tranquility is down.
type ServerStatusResponse struct {
	Players       *int      `json:"players"`
	ServerVersion string    `json:"server_version"`
	StartTime     time.Time `json:"start_time"`
	VIP           bool      `json:"vip,omitempty"`
}

// Healthy reports whether the cluster is up and accepting logins
func (s *ServerStatusResponse) Healthy() bool {
	return s != nil && s.Players != nil && !s.VIP
}

// RetryClient interface for retry operations
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}

// StatusClient implements status-related ESI operations
type StatusClient struct {
	baseURL     string
	userAgent   string
	retryClient RetryClient
}

// NewStatusClient creates a new status client
func NewStatusClient(baseURL, userAgent string, retryClient RetryClient) Client {
	return &StatusClient{
		baseURL:     baseURL,
		userAgent:   userAgent,
		retryClient: retryClient,
	}
}

// GetServerStatus retrieves EVE Online server status
func (c *StatusClient) GetServerStatus(ctx context.Context) (*ServerStatusResponse, error) {
	var span trace.Span
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		ctx, span = otel.Tracer("go-falcon-locations/evegateway/status").Start(ctx, "status.GetServerStatus")
		defer span.End()
		span.SetAttributes(attribute.String("esi.endpoint", "status"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.retryClient.DoWithRetry(ctx, req, 1)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to call ESI")
		}
		return nil, fmt.Errorf("failed to call ESI: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if span != nil {
			span.SetStatus(codes.Error, "ESI returned error status")
		}
		slog.WarnContext(ctx, "ESI status endpoint returned error", "status_code", resp.StatusCode)
		return nil, fmt.Errorf("ESI returned status %d", resp.StatusCode)
	}

	var status ServerStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse response")
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if span != nil {
		span.SetAttributes(attribute.Bool("esi.healthy", status.Healthy()))
		span.SetStatus(codes.Ok, "success")
	}
	return &status, nil
}
