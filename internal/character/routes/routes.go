package routes

import (
	"context"

	"go-falcon-locations/internal/character/dto"

	"github.com/danielgtaylor/huma/v2"
)

// DirectoryView is what the status route reads from the account directory
type DirectoryView interface {
	Loaded() <-chan struct{}
	Size() int
}

// RegisterCharacterRoutes registers character routes on a shared Huma API
func RegisterCharacterRoutes(api huma.API, basePath string, directory DirectoryView) {
	huma.Register(api, huma.Operation{
		OperationID: "character-get-status",
		Method:      "GET",
		Path:        basePath + "/status",
		Summary:     "Get account directory status",
		Description: "Returns whether the account directory is loaded and how many characters it tracks",
		Tags:        []string{"Module Status"},
	}, func(ctx context.Context, input *struct{}) (*dto.StatusOutput, error) {
		loaded := false
		select {
		case <-directory.Loaded():
			loaded = true
		default:
		}
		return &dto.StatusOutput{Body: dto.DirectoryStatus{
			Module:   "character",
			Loaded:   loaded,
			Accounts: directory.Size(),
		}}, nil
	})
}
