package config

// EVE Online endpoints and application credentials.

const (
	defaultESIBaseURL = "https://esi.evetech.net/latest"
	defaultSSOBaseURL = "https://login.eveonline.com"
)

// GetEVEClientID returns the SSO application client id
func GetEVEClientID() string {
	return GetEnv("EVE_CLIENT_ID", "")
}

// GetEVEClientSecret returns the SSO application secret
func GetEVEClientSecret() string {
	return GetEnv("EVE_CLIENT_SECRET", "")
}

// GetESIBaseURL returns the ESI base URL without trailing slash
func GetESIBaseURL() string {
	return GetEnv("ESI_BASE_URL", defaultESIBaseURL)
}

// GetSSOBaseURL returns the EVE SSO base URL without trailing slash
func GetSSOBaseURL() string {
	return GetEnv("EVE_SSO_BASE_URL", defaultSSOBaseURL)
}

// GetESIUserAgent returns the User-Agent sent with every ESI and SSO request
func GetESIUserAgent() string {
	return GetEnv("ESI_USER_AGENT", "go-falcon-locations/1.0.0 contact@example.com")
}
