package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-falcon-locations/internal/auth/models"
	"go-falcon-locations/pkg/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	eveTokenPath  = "/v2/oauth/token"
	eveVerifyPath = "/oauth/verify"
)

// TokenError is a non-200 answer from the SSO token endpoint
type TokenError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *TokenError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("EVE token refresh failed: status %d", e.StatusCode)
	}
	return fmt.Sprintf("EVE token refresh failed: %s (%s)", e.Code, e.Description)
}

// Terminal reports whether the refresh token is dead and retrying is pointless
func (e *TokenError) Terminal() bool {
	return e.Code == "invalid_grant" || e.Code == "invalid_token"
}

// IsTerminalTokenError reports whether err wraps a terminal TokenError
func IsTerminalTokenError(err error) bool {
	var tokenErr *TokenError
	return errors.As(err, &tokenErr) && tokenErr.Terminal()
}

// EVEService talks to the EVE SSO token and verify endpoints
type EVEService struct {
	clientID     string
	clientSecret string
	baseURL      string
	userAgent    string
	httpClient   *http.Client
}

// NewEVEService creates an SSO client from the environment
func NewEVEService() *EVEService {
	var transport http.RoundTripper = http.DefaultTransport
	if config.GetBoolEnv("ENABLE_TELEMETRY", false) {
		transport = otelhttp.NewTransport(http.DefaultTransport)
	}

	return NewEVEServiceWithClient(
		&http.Client{Timeout: 30 * time.Second, Transport: transport},
		config.GetSSOBaseURL(),
		config.GetEVEClientID(),
		config.GetEVEClientSecret(),
		config.GetESIUserAgent(),
	)
}

// NewEVEServiceWithClient creates an SSO client against an explicit base URL
func NewEVEServiceWithClient(httpClient *http.Client, baseURL, clientID, clientSecret, userAgent string) *EVEService {
	return &EVEService{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(baseURL, "/"),
		userAgent:    userAgent,
		httpClient:   httpClient,
	}
}

// RefreshAccessToken exchanges a refresh token for a new token pair
func (s *EVEService) RefreshAccessToken(ctx context.Context, refreshToken string) (*models.EVETokenResponse, error) {
	tracer := otel.Tracer("go-falcon-locations/auth")
	ctx, span := tracer.Start(ctx, "auth.eve_service.refresh_access_token")
	defer span.End()

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+eveTokenPath, strings.NewReader(data.Encode()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(s.clientID+":"+s.clientSecret)))
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		tokenErr := &TokenError{StatusCode: resp.StatusCode}
		var oauthErr models.EVETokenError
		if json.Unmarshal(body, &oauthErr) == nil {
			tokenErr.Code = oauthErr.Error
			tokenErr.Description = oauthErr.ErrorDescription
		}
		span.RecordError(tokenErr)
		return nil, tokenErr
	}

	var tokenResp models.EVETokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return nil, errors.New("token response without access_token")
	}

	return &tokenResp, nil
}

// VerifyAccessToken returns the character identity an access token belongs to
func (s *EVEService) VerifyAccessToken(ctx context.Context, accessToken string) (*models.EVECharacterInfo, error) {
	tracer := otel.Tracer("go-falcon-locations/auth")
	ctx, span := tracer.Start(ctx, "auth.eve_service.verify_access_token")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+eveVerifyPath, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("verify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("EVE token verification failed: %s", resp.Status)
		span.RecordError(err)
		return nil, err
	}

	var info models.EVECharacterInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to decode verify response: %w", err)
	}

	return &info, nil
}
