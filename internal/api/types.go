package api

import "github.com/randomizedcoder/go-procsup/internal/supervisor"

// WriteRequest is the body of POST /v1/processes/{id}/input.
// Newline defaults to true.
type WriteRequest struct {
	Input   string `json:"input"`
	Newline *bool  `json:"newline,omitempty"`
}

// KillRequest is the body of POST /v1/processes/{id}/kill.
type KillRequest struct {
	Signal string `json:"signal,omitempty"`
	Remove bool   `json:"remove,omitempty"`
}

// CleanupRequest is the body of POST /v1/cleanup.
type CleanupRequest struct {
	KillAll bool `json:"kill_all,omitempty"`
}

// ListResponse is returned by GET /v1/processes.
type ListResponse struct {
	Processes []supervisor.Status `json:"processes"`
	Tracked   int                 `json:"tracked"`
	Running   int                 `json:"running"`
}

// CloseInputResponse is returned by DELETE /v1/processes/{id}/input.
type CloseInputResponse struct {
	ID     string `json:"id"`
	Closed bool   `json:"closed"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	Instance      string `json:"instance"`
	Version       string `json:"version,omitempty"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Tracked       int    `json:"tracked"`
	Running       int    `json:"running"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	ID      string   `json:"id,omitempty"`
	Tracked []string `json:"tracked,omitempty"`
}
