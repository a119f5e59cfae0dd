package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	authModels "go-falcon-locations/internal/auth/models"
	"go-falcon-locations/internal/character/models"
	"go-falcon-locations/pkg/metrics"

	"github.com/golang-jwt/jwt/v5"
)

// Scopes required to track a character's location
const (
	ScopeReadLocation = "esi-location.read_location.v1"
	ScopeReadShipType = "esi-location.read_ship_type.v1"
	ScopeReadOnline   = "esi-location.read_online.v1"
)

// LocationScopes lists every scope needed by the location pipeline
var LocationScopes = []string{ScopeReadLocation, ScopeReadShipType, ScopeReadOnline}

// expirySkew is subtracted from expires_in so a token is never used in its last minute
const expirySkew = 60 * time.Second

// State is a credential lifecycle state
type State string

const (
	StateNoCredential  State = "no_credential"
	StateValid         State = "valid"
	StateExpired       State = "expired"
	StateRefreshing    State = "refreshing"
	StateRevoked       State = "revoked"
	StateRefreshFailed State = "refresh_failed"
)

// Outcome is the result of validating one character's credentials.
// Character carries the refreshed bundle when State is StateValid.
type Outcome struct {
	State     State
	Character models.Character
	Refreshed bool
	Err       error
}

// Usable reports whether Character.SSO may be presented upstream
func (o Outcome) Usable() bool {
	return o.State == StateValid
}

// SSOClient refreshes and verifies EVE access tokens
type SSOClient interface {
	RefreshAccessToken(ctx context.Context, refreshToken string) (*authModels.EVETokenResponse, error)
	VerifyAccessToken(ctx context.Context, accessToken string) (*authModels.EVECharacterInfo, error)
}

// CredentialStore persists credential changes
type CredentialStore interface {
	SaveCredentials(ctx context.Context, characterID int64, creds models.Credentials) error
	SaveIdentity(ctx context.Context, characterID int64, name, ownerHash string) error
	RevokeCredentials(ctx context.Context, characterID int64, expiredScopes []string) error
	FlagOwner(ctx context.Context, userID string) error
}

// Validator drives a character through NoCredential, Valid, Expired, Refreshing
// and Revoked. It is the only writer of the sso bundle.
type Validator struct {
	sso     SSOClient
	store   CredentialStore
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewValidator creates a credential validator
func NewValidator(sso SSOClient, store CredentialStore, m *metrics.Metrics) *Validator {
	return &Validator{
		sso:     sso,
		store:   store,
		metrics: m,
		now:     time.Now,
	}
}

// HasLocationScopes reports whether the character granted every location scope
func HasLocationScopes(c models.Character) bool {
	return c.SSO.HasScopes(LocationScopes...)
}

// CurrentState classifies the stored credentials without side effects
func (v *Validator) CurrentState(c models.Character) State {
	switch {
	case c.SSO == nil || (c.SSO.RefreshToken == "" && c.SSO.AccessToken == ""):
		return StateNoCredential
	case c.SSO.Usable(v.now()):
		return StateValid
	default:
		return StateExpired
	}
}

// Validate returns a usable credential for c, refreshing it when expired.
// Only a terminal SSO answer revokes; any other failure leaves the store untouched.
func (v *Validator) Validate(ctx context.Context, c models.Character) Outcome {
	switch v.CurrentState(c) {
	case StateNoCredential:
		return Outcome{State: StateNoCredential, Character: c}
	case StateValid:
		return Outcome{State: StateValid, Character: c}
	}

	if c.SSO.RefreshToken == "" {
		return Outcome{State: StateRefreshFailed, Character: c, Err: fmt.Errorf("character %d has an expired token and no refresh token", c.CharacterID)}
	}

	slog.DebugContext(ctx, "Refreshing expired access token", "character_id", c.CharacterID, "state", StateRefreshing)

	tokens, err := v.sso.RefreshAccessToken(ctx, c.SSO.RefreshToken)
	if err != nil {
		if IsTerminalTokenError(err) {
			v.metrics.RecordRefresh("revoked")
			v.revoke(ctx, c, err)
			return Outcome{State: StateRevoked, Character: c, Err: err}
		}
		v.metrics.RecordRefresh("failed")
		return Outcome{State: StateRefreshFailed, Character: c, Err: fmt.Errorf("refresh for character %d: %w", c.CharacterID, err)}
	}
	v.metrics.RecordRefresh("ok")

	creds := models.Credentials{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Scopes:       slices.Clone(c.SSO.Scopes),
		ExpiresAt:    v.now().Add(time.Duration(tokens.ExpiresIn)*time.Second - expirySkew),
	}
	if creds.RefreshToken == "" {
		creds.RefreshToken = c.SSO.RefreshToken
	}

	claims := parseClaims(tokens.AccessToken)
	if claims != nil && claims.Scopes != nil {
		creds.Scopes = []string(claims.Scopes)
	}

	if err := v.store.SaveCredentials(ctx, c.CharacterID, creds); err != nil {
		slog.ErrorContext(ctx, "Failed to persist refreshed credentials", "character_id", c.CharacterID, "error", err)
	}

	refreshed := c.Clone()
	refreshed.SSO = &creds
	v.confirmIdentity(ctx, &refreshed, claims)

	return Outcome{State: StateValid, Character: refreshed, Refreshed: true}
}

// confirmIdentity stores the verified name and owner hash, falling back to token claims
func (v *Validator) confirmIdentity(ctx context.Context, c *models.Character, claims *authModels.AccessTokenClaims) {
	name, owner := "", ""

	info, err := v.sso.VerifyAccessToken(ctx, c.SSO.AccessToken)
	switch {
	case err == nil:
		name, owner = info.CharacterName, info.CharacterOwnerHash
	case claims != nil:
		slog.WarnContext(ctx, "Token verification failed, using token claims", "character_id", c.CharacterID, "error", err)
		name, owner = claims.Name, claims.Owner
	default:
		slog.WarnContext(ctx, "Token verification failed", "character_id", c.CharacterID, "error", err)
		return
	}

	if name == "" && owner == "" {
		return
	}
	if name != "" {
		c.Name = name
	}
	if owner != "" {
		c.OwnerHash = owner
	}
	if err := v.store.SaveIdentity(ctx, c.CharacterID, name, owner); err != nil {
		slog.ErrorContext(ctx, "Failed to persist character identity", "character_id", c.CharacterID, "error", err)
	}
}

func (v *Validator) revoke(ctx context.Context, c models.Character, cause error) {
	slog.WarnContext(ctx, "Refresh token revoked, removing credentials",
		"character_id", c.CharacterID,
		"character_name", c.Name,
		"user_id", c.UserID,
		"reason", cause.Error())

	if err := v.store.RevokeCredentials(ctx, c.CharacterID, c.SSO.Scopes); err != nil {
		slog.ErrorContext(ctx, "Failed to revoke credentials", "character_id", c.CharacterID, "error", err)
	}
	if err := v.store.FlagOwner(ctx, c.UserID); err != nil {
		slog.ErrorContext(ctx, "Failed to flag owning user", "character_id", c.CharacterID, "user_id", c.UserID, "error", err)
	}
}

// parseClaims reads the access token claims without verifying the signature
func parseClaims(accessToken string) *authModels.AccessTokenClaims {
	claims := &authModels.AccessTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return nil
	}
	return claims
}
