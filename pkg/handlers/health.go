package handlers

import (
	"net/http"
	"time"

	"go-falcon-locations/pkg/version"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status     string     `json:"status"`
	Service    string     `json:"service"`
	Version    string     `json:"version"`
	GitCommit  string     `json:"git_commit"`
	LastPass   *time.Time `json:"last_pass,omitempty"`
	AgeSeconds float64    `json:"age_seconds"`
	MaxAge     float64    `json:"max_age_seconds"`
}

// HeartbeatHealthHandler reports unhealthy (503) once the last completed pass is older
// than maxAge. Before the first pass the process start time is used instead.
func HeartbeatHealthHandler(service string, lastPass func() time.Time, maxAge time.Duration) http.HandlerFunc {
	started := time.Now()

	return func(w http.ResponseWriter, r *http.Request) {
		info := version.Get()
		response := HealthResponse{
			Status:    "healthy",
			Service:   service,
			Version:   info.Version,
			GitCommit: info.GitCommit,
			MaxAge:    maxAge.Seconds(),
		}

		since := started
		if last := lastPass(); !last.IsZero() {
			since = last
			response.LastPass = &last
		}
		age := time.Since(since)
		response.AgeSeconds = age.Seconds()

		status := http.StatusOK
		if age > maxAge {
			response.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		JSONResponse(w, response, status)
	}
}
