package database

import "context"

// Repository defines the interface for scan persistence.
type Repository interface {
	// Database lifecycle
	Close() error

	// Sites
	CreateSite(ctx context.Context, s *Site) error
	GetSite(ctx context.Context, id string) (*Site, error)
	GetSiteByName(ctx context.Context, name string) (*Site, error)
	ListSites(ctx context.Context) ([]*Site, error)
	UpdateSiteConfig(ctx context.Context, id, config string) error
	DeleteSite(ctx context.Context, id string) error

	// Executions
	CreateExecution(ctx context.Context, e *Execution) error
	GetExecution(ctx context.Context, id string) (*Execution, error)
	ListExecutions(ctx context.Context, siteID string) ([]*Execution, error)
	MarkExecutionRunning(ctx context.Context, id string) error
	CompleteExecution(ctx context.Context, id, result string) error
	FailExecution(ctx context.Context, id, errMsg string) error
}
