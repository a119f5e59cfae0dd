package evegateway

import (
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go-falcon-locations/pkg/config"
	"go-falcon-locations/pkg/evegateway/character"
	"go-falcon-locations/pkg/evegateway/status"
	"go-falcon-locations/pkg/evegateway/universe"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Client represents an EVE Online ESI client with all category clients
type Client struct {
	httpClient  *http.Client
	baseURL     string
	userAgent   string
	retryClient RetryClient
	errorLimits *ESIErrorLimits
	limitsMutex *sync.RWMutex

	Status    status.Client
	Character character.Client
	Universe  universe.Client
}

// NewClient creates an ESI client from the environment
func NewClient() *Client {
	var transport http.RoundTripper = http.DefaultTransport

	// Only add OpenTelemetry instrumentation if telemetry is enabled
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return fmt.Sprintf("HTTP %s %s", r.Method, r.URL.Host)
			}),
		)
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	return NewClientWithHTTP(httpClient, config.GetESIBaseURL(), config.GetESIUserAgent())
}

// NewClientWithHTTP creates an ESI client against an explicit base URL
func NewClientWithHTTP(httpClient *http.Client, baseURL, userAgent string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	errorLimits := &ESIErrorLimits{}
	limitsMutex := &sync.RWMutex{}
	retryClient := NewDefaultRetryClient(httpClient, errorLimits, limitsMutex)

	return &Client{
		httpClient:  httpClient,
		baseURL:     baseURL,
		userAgent:   userAgent,
		retryClient: retryClient,
		errorLimits: errorLimits,
		limitsMutex: limitsMutex,
		Status:      status.NewStatusClient(baseURL, userAgent, retryClient),
		Character:   character.NewCharacterClient(baseURL, userAgent, retryClient),
		Universe:    universe.NewUniverseClient(baseURL, userAgent, retryClient),
	}
}

// HTTPClient returns the underlying HTTP client for advanced usage
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ErrorLimits returns the last observed ESI error budget
func (c *Client) ErrorLimits() ESIErrorLimits {
	c.limitsMutex.RLock()
	defer c.limitsMutex.RUnlock()
	return *c.errorLimits
}
