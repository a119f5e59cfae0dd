package evegateway

import (
	"context"
	"net/http"
	"time"
)

// ESIErrorLimits represents ESI error limit headers
type ESIErrorLimits struct {
	Remain int
	Reset  time.Time
	Window int
}

// RetryClient interface for retry operations
type RetryClient interface {
	DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error)
}
