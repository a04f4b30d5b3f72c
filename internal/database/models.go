package database

import "time"

// Execution lifecycle states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Site is one monitored site and its resolved run configuration.
type Site struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Config    string    `json:"config"` // run-configuration JSON
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Execution is one scan run and its captured outcome.
type Execution struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"site_id"`
	Status     string     `json:"status"`
	Config     string     `json:"config"`
	Result     string     `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
