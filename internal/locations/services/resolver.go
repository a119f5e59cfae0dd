package services

import (
	"context"
	"fmt"
	"time"

	locationModels "go-falcon-locations/internal/locations/models"
	"go-falcon-locations/pkg/evegateway/universe"
	"go-falcon-locations/pkg/metrics"
)

// NameResolver turns upstream ids into display names with one lookup per call
type NameResolver struct {
	universe universe.Client
	timeout  time.Duration
	metrics  *metrics.Metrics
}

// NewNameResolver creates a name resolver
func NewNameResolver(client universe.Client, timeout time.Duration, m *metrics.Metrics) *NameResolver {
	return &NameResolver{universe: client, timeout: timeout, metrics: m}
}

// Resolve returns a name for every id, or an error if the lookup failed or any id is missing
func (r *NameResolver) Resolve(ctx context.Context, characterID int64, ids ...int64) (map[int64]string, error) {
	result := race(ctx, r.timeout, characterID, locationModels.CallNames, func(ctx context.Context) ([]universe.NameResponse, error) {
		return r.universe.GetNames(ctx, ids)
	})
	if !result.IsOK() {
		if result.Kind == locationModels.KindTimedOut {
			r.metrics.RecordTimeout(locationModels.CallNames)
		}
		return nil, result.Err
	}

	names := make(map[int64]string, len(result.Value))
	for _, entry := range result.Value {
		names[entry.ID] = entry.Name
	}
	for _, id := range ids {
		if _, ok := names[id]; !ok {
			return nil, fmt.Errorf("no name returned for id %d", id)
		}
	}
	return names, nil
}
