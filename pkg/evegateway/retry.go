package evegateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// errorLimitWarnThreshold is the X-ESI-Error-Limit-Remain value below which every response is logged
const errorLimitWarnThreshold = 20

// DefaultRetryClient retries network failures and 5xx responses with exponential backoff.
// 420 and 429 are returned to the caller untouched: the locations loop waits a fixed
// interval instead of negotiating with the rate limiter.
type DefaultRetryClient struct {
	httpClient  *http.Client
	errorLimits *ESIErrorLimits
	limitsMutex *sync.RWMutex
	maxBackoff  time.Duration
}

// NewDefaultRetryClient creates a new default retry client
func NewDefaultRetryClient(httpClient *http.Client, errorLimits *ESIErrorLimits, limitsMutex *sync.RWMutex) *DefaultRetryClient {
	return &DefaultRetryClient{
		httpClient:  httpClient,
		errorLimits: errorLimits,
		limitsMutex: limitsMutex,
		maxBackoff:  4 * time.Second,
	}
}

// DoWithRetry makes an HTTP request with retry logic and proper error handling
func (r *DefaultRetryClient) DoWithRetry(ctx context.Context, req *http.Request, maxRetries int) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		reqClone := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("failed to rewind request body: %w", err)
			}
			reqClone.Body = body
		}

		resp, err := r.httpClient.Do(reqClone)
		if err != nil {
			if attempt >= maxRetries {
				return nil, fmt.Errorf("request failed after %d attempts: %w", attempt+1, err)
			}
			if err := r.wait(ctx, attempt); err != nil {
				return nil, err
			}
			continue
		}

		// 404 does not count against the ESI error budget
		if resp.StatusCode != http.StatusNotFound {
			r.updateErrorLimits(ctx, req, resp.Header)
		}

		if resp.StatusCode < 500 || attempt >= maxRetries {
			return resp, nil
		}

		resp.Body.Close()
		slog.WarnContext(ctx, "ESI server error, retrying",
			"status_code", resp.StatusCode,
			"attempt", attempt,
			"endpoint", req.URL.Path)
		if err := r.wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (r *DefaultRetryClient) wait(ctx context.Context, attempt int) error {
	backoff := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if backoff > r.maxBackoff {
		backoff = r.maxBackoff
	}

	timer := time.NewTimer(backoff)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// updateErrorLimits records the X-ESI-Error-Limit-* headers
func (r *DefaultRetryClient) updateErrorLimits(ctx context.Context, req *http.Request, headers http.Header) {
	r.limitsMutex.Lock()
	defer r.limitsMutex.Unlock()

	if remainStr := headers.Get("X-ESI-Error-Limit-Remain"); remainStr != "" {
		if remain, err := strconv.Atoi(remainStr); err == nil {
			r.errorLimits.Remain = remain
			if remain <= errorLimitWarnThreshold {
				slog.WarnContext(ctx, "ESI error limit running low",
					"x_esi_error_limit_remain", remain,
					"endpoint", req.URL.Path,
					"method", req.Method)
			}
		}
	}

	if resetStr := headers.Get("X-ESI-Error-Limit-Reset"); resetStr != "" {
		if reset, err := strconv.Atoi(resetStr); err == nil {
			// Reset is seconds until the window rolls over
			r.errorLimits.Reset = time.Now().Add(time.Duration(reset) * time.Second)
		}
	}

	if windowStr := headers.Get("X-ESI-Error-Limit-Window"); windowStr != "" {
		if window, err := strconv.Atoi(windowStr); err == nil {
			r.errorLimits.Window = window
		}
	}
}
