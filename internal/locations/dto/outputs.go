package dto

import (
	"time"

	"go-falcon-locations/internal/locations/models"
	"go-falcon-locations/internal/shard"
)

// LocationsStatus summarizes the synchronization loop
type LocationsStatus struct {
	Module   string               `json:"module" doc:"Module name"`
	Mode     string               `json:"mode" enum:"sharded,single" doc:"Run mode"`
	Accounts int                  `json:"accounts" doc:"Tracked characters in the account directory"`
	Capacity int                  `json:"capacity" doc:"Accounts per worker"`
	Required int                  `json:"required" doc:"Workers needed for the current directory size"`
	Live     int                  `json:"live" doc:"Workers currently running"`
	Records  int64                `json:"records" doc:"Published location records"`
	LastPass *time.Time           `json:"last_pass,omitempty" doc:"When a pass last completed"`
	Workers  []shard.WorkerStatus `json:"workers,omitempty" doc:"Per-slot worker state"`
}

// StatusOutput is the response of GET /locations/status
type StatusOutput struct {
	Body LocationsStatus `json:"body"`
}

// LocationInput selects one character's record
type LocationInput struct {
	CharacterID int64 `path:"character_id" minimum:"1" doc:"EVE character ID"`
}

// LocationOutput is the response of GET /locations/{character_id}
type LocationOutput struct {
	Body models.LocationRecord `json:"body"`
}
