package routes

import (
	"context"
	"fmt"

	"go-falcon-locations/internal/locations/dto"
	"go-falcon-locations/internal/locations/models"

	"github.com/danielgtaylor/huma/v2"
)

// StatusProvider reports the state of the synchronization loop
type StatusProvider interface {
	Status(ctx context.Context) dto.LocationsStatus
}

// RecordReader reads published location records
type RecordReader interface {
	Get(ctx context.Context, characterID int64) (*models.LocationRecord, error)
}

// RegisterLocationsRoutes registers location routes on a shared Huma API
func RegisterLocationsRoutes(api huma.API, basePath string, provider StatusProvider, records RecordReader) {
	huma.Register(api, huma.Operation{
		OperationID: "locations-get-status",
		Method:      "GET",
		Path:        basePath + "/status",
		Summary:     "Get location sync status",
		Description: "Returns worker sizing, live workers, the last completed pass and per-worker reports",
		Tags:        []string{"Module Status"},
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		return &dto.StatusOutput{Body: provider.Status(ctx)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "locations-get-character",
		Method:      "GET",
		Path:        basePath + "/{character_id}",
		Summary:     "Get character location",
		Description: "Returns the published location and ship of an online character",
		Tags:        []string{"Locations"},
	}, func(ctx context.Context, input *dto.LocationInput) (*dto.LocationOutput, error) {
		record, err := records.Get(ctx, input.CharacterID)
		if err != nil {
			return nil, huma.Error500InternalServerError("Failed to read location", err)
		}
		if record == nil {
			return nil, huma.Error404NotFound(fmt.Sprintf("No location published for character %d", input.CharacterID))
		}
		return &dto.LocationOutput{Body: *record}, nil
	})
}
