package models

import (
	"slices"
	"time"
)

// CollectionName is the MongoDB collection holding tracked characters
const CollectionName = "characters"

// UsersCollectionName is the MongoDB collection holding the owning user accounts
const UsersCollectionName = "users"

// Character is a tracked account: one EVE character and its SSO credentials.
// The document id is the character id.
type Character struct {
	CharacterID   int64        `bson:"_id" json:"character_id"`
	Name          string       `bson:"name" json:"name"`
	UserID        string       `bson:"user_id" json:"user_id"`
	CorporationID int64        `bson:"corporation_id" json:"corporation_id"`
	AllianceID    int64        `bson:"alliance_id,omitempty" json:"alliance_id,omitempty"`
	OwnerHash     string       `bson:"owner_hash,omitempty" json:"-"`
	SSO           *Credentials `bson:"sso,omitempty" json:"-"`
	Roles         []string     `bson:"roles,omitempty" json:"roles,omitempty"`
	Titles        []string     `bson:"titles,omitempty" json:"titles,omitempty"`
	ExpiredScopes []string     `bson:"expired_scopes,omitempty" json:"expired_scopes,omitempty"`
	UpdatedAt     time.Time    `bson:"updated_at" json:"updated_at"`

	// Plaintext token fields from the pre-sso schema, stripped on sight
	LegacyAccessToken  string     `bson:"access_token,omitempty" json:"-"`
	LegacyRefreshToken string     `bson:"refresh_token,omitempty" json:"-"`
	LegacyTokenExpiry  *time.Time `bson:"token_expiry,omitempty" json:"-"`
}

// Credentials is the SSO bundle of a character.
type Credentials struct {
	AccessToken  string    `bson:"access_token" json:"-"`
	RefreshToken string    `bson:"refresh_token" json:"-"`
	Scopes       []string  `bson:"scopes" json:"scopes"`
	ExpiresAt    time.Time `bson:"expires_at" json:"expires_at"`
}

// Usable reports whether the access token may still be presented at now
func (c *Credentials) Usable(now time.Time) bool {
	return c != nil && c.AccessToken != "" && now.Before(c.ExpiresAt)
}

// HasScopes reports whether every scope in required was granted
func (c *Credentials) HasScopes(required ...string) bool {
	if c == nil {
		return false
	}
	for _, scope := range required {
		if !slices.Contains(c.Scopes, scope) {
			return false
		}
	}
	return true
}

// HasLegacyTokens reports whether any pre-sso token field is still present
func (c *Character) HasLegacyTokens() bool {
	return c.LegacyAccessToken != "" || c.LegacyRefreshToken != "" || c.LegacyTokenExpiry != nil
}

// StripLegacyTokens clears the pre-sso token fields in memory
func (c *Character) StripLegacyTokens() {
	c.LegacyAccessToken = ""
	c.LegacyRefreshToken = ""
	c.LegacyTokenExpiry = nil
}

// Clone returns a deep copy safe to hand to another goroutine
func (c Character) Clone() Character {
	out := c
	out.Roles = slices.Clone(c.Roles)
	out.Titles = slices.Clone(c.Titles)
	out.ExpiredScopes = slices.Clone(c.ExpiredScopes)
	if c.SSO != nil {
		sso := *c.SSO
		sso.Scopes = slices.Clone(c.SSO.Scopes)
		out.SSO = &sso
	}
	if c.LegacyTokenExpiry != nil {
		expiry := *c.LegacyTokenExpiry
		out.LegacyTokenExpiry = &expiry
	}
	return out
}
