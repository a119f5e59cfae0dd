package models

import (
	"encoding/json"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// EVETokenResponse represents EVE SSO token response
type EVETokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// EVECharacterInfo represents the /oauth/verify response
type EVECharacterInfo struct {
	CharacterID        int64  `json:"CharacterID"`
	CharacterName      string `json:"CharacterName"`
	ExpiresOn          string `json:"ExpiresOn"`
	Scopes             string `json:"Scopes"`
	TokenType          string `json:"TokenType"`
	CharacterOwnerHash string `json:"CharacterOwnerHash"`
}

// EVETokenError is the OAuth error body returned by the token endpoint
type EVETokenError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// AccessTokenClaims are the claims EVE puts into its JWT access tokens
type AccessTokenClaims struct {
	Scopes ScopeList `json:"scp,omitempty"`
	Name   string    `json:"name"`
	Owner  string    `json:"owner"`
	jwt.RegisteredClaims
}

// ScopeList decodes "scp", which EVE sends as a string for a single scope
// and as an array otherwise.
type ScopeList []string

func (s *ScopeList) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = ScopeList{}
		} else {
			*s = strings.Fields(single)
		}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}
