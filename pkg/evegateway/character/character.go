package character

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go-falcon-locations/pkg/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Client interface for the authenticated character endpoints used by location tracking
type Client interface {
	GetCharacterOnline(ctx context.Context, characterID int64, token string) (*OnlineResponse, error)
	GetCharacterLocation(ctx context.Context, characterID int64, token string) (*LocationResponse, error)
	GetCharacterShip(ctx context.Context, characterID int64, token string) (*ShipResponse, error)
}

// OnlineResponse represents character online status
type OnlineResponse struct {
	Online     bool       `json:"online"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	LastLogout *time.Time `json:"last_logout,omitempty"`
	Logins     int        `json:"logins,omitempty"`
}

// LocationResponse represents character location information
type LocationResponse struct {
	SolarSystemID int64  `json:"solar_system_id"`
	StationID     *int64 `json:"station_id,omitempty"`
	StructureID   *int64 `json:"structure_id,omitempty"`
}

// ShipResponse represents the character's current ship
type ShipResponse struct {
	ShipItemID int64  `json:"ship_item_id"`
	ShipName   string `json:"ship_name"`
	ShipTypeID int64  `json:"ship_type_id"`
}

// RetryClient interface for retry operations
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}

// CharacterClient implements character-related ESI operations
type CharacterClient struct {
	baseURL     string
	userAgent   string
	retryClient RetryClient
}

// NewCharacterClient creates a new character client
func NewCharacterClient(baseURL, userAgent string, retryClient RetryClient) Client {
	return &CharacterClient{
		baseURL:     baseURL,
		userAgent:   userAgent,
		retryClient: retryClient,
	}
}

// GetCharacterOnline retrieves the character's online status. Requires esi-location.read_online.v1.
func (c *CharacterClient) GetCharacterOnline(ctx context.Context, characterID int64, token string) (*OnlineResponse, error) {
	var online OnlineResponse
	if err := c.getAuthenticated(ctx, "character.GetCharacterOnline", fmt.Sprintf("/characters/%d/online/", characterID), characterID, token, &online); err != nil {
		return nil, err
	}
	return &online, nil
}

// GetCharacterLocation retrieves the character's solar system. Requires esi-location.read_location.v1.
func (c *CharacterClient) GetCharacterLocation(ctx context.Context, characterID int64, token string) (*LocationResponse, error) {
	var location LocationResponse
	if err := c.getAuthenticated(ctx, "character.GetCharacterLocation", fmt.Sprintf("/characters/%d/location/", characterID), characterID, token, &location); err != nil {
		return nil, err
	}
	return &location, nil
}

// GetCharacterShip retrieves the character's active ship. Requires esi-location.read_ship_type.v1.
func (c *CharacterClient) GetCharacterShip(ctx context.Context, characterID int64, token string) (*ShipResponse, error) {
	var ship ShipResponse
	if err := c.getAuthenticated(ctx, "character.GetCharacterShip", fmt.Sprintf("/characters/%d/ship/", characterID), characterID, token, &ship); err != nil {
		return nil, err
	}
	return &ship, nil
}

func (c *CharacterClient) getAuthenticated(ctx context.Context, spanName, endpoint string, characterID int64, token string, out any) error {
	var span trace.Span
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		ctx, span = otel.Tracer("go-falcon-locations/evegateway/character").Start(ctx, spanName)
		defer span.End()
		span.SetAttributes(
			attribute.String("esi.endpoint", endpoint),
			attribute.Int64("esi.character_id", characterID),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.retryClient.DoWithRetry(ctx, req, 1)
	if err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to call ESI")
		}
		return fmt.Errorf("failed to call ESI: %w", err)
	}
	defer func() {
		// Drain so the connection can be reused
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if span != nil {
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	}

	if resp.StatusCode != http.StatusOK {
		if span != nil {
			span.SetStatus(codes.Error, "ESI returned error status")
		}
		return fmt.Errorf("ESI returned status %d for %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse response")
		}
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if span != nil {
		span.SetStatus(codes.Ok, "success")
	}
	return nil
}
