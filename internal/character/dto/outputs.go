package dto

// DirectoryStatus summarizes the account directory
type DirectoryStatus struct {
	Module   string `json:"module" doc:"Module name"`
	Loaded   bool   `json:"loaded" doc:"Whether the initial snapshot has been applied"`
	Accounts int    `json:"accounts" doc:"Number of tracked characters"`
}

// StatusOutput is the response of GET /characters/status
type StatusOutput struct {
	Body DirectoryStatus `json:"body"`
}
