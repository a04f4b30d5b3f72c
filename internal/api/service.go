// Package api provides the HTTP management surface: site configuration
// CRUD, scan triggering and execution status/result queries. The scanning
// core never talks to the persistence layer directly; this package is the
// collaborator that bridges the two.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/internal/database"
	"github.com/sitewatch/sitewatch/pkg/scan"
)

// ScanService runs scans as background jobs and records their lifecycle
// against execution rows.
type ScanService struct {
	repo    database.Repository
	scanner *scan.Scanner
	logger  zerolog.Logger

	mu      sync.Mutex
	running map[string]bool // site id → scan in flight
}

// NewScanService creates a scan service over a repository and scanner.
func NewScanService(repo database.Repository, scanner *scan.Scanner) *ScanService {
	return &ScanService{
		repo:    repo,
		scanner: scanner,
		logger:  log.With().Str("component", "scan-service").Logger(),
		running: make(map[string]bool),
	}
}

// TriggerScan creates an execution for the site and starts the scan in
// the background. One scan per site runs at a time.
func (s *ScanService) TriggerScan(ctx context.Context, siteID string) (*database.Execution, error) {
	site, err := s.repo.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if site == nil {
		return nil, fmt.Errorf("site %s not found", siteID)
	}

	var cfg scan.SiteConfig
	if err := json.Unmarshal([]byte(site.Config), &cfg); err != nil {
		return nil, fmt.Errorf("site %s has invalid config: %w", siteID, err)
	}
	if cfg.SiteID == "" {
		cfg.SiteID = site.Name
	}

	s.mu.Lock()
	if s.running[siteID] {
		s.mu.Unlock()
		return nil, fmt.Errorf("a scan is already running for site %s", siteID)
	}
	s.running[siteID] = true
	s.mu.Unlock()

	execution := &database.Execution{
		SiteID: siteID,
		Config: site.Config,
	}
	if err := s.repo.CreateExecution(ctx, execution); err != nil {
		s.clearRunning(siteID)
		return nil, err
	}

	go s.runScan(execution.ID, siteID, &cfg)
	return execution, nil
}

func (s *ScanService) runScan(executionID, siteID string, cfg *scan.SiteConfig) {
	defer s.clearRunning(siteID)
	ctx := context.Background()

	if err := s.repo.MarkExecutionRunning(ctx, executionID); err != nil {
		s.logger.Error().Err(err).Str("execution", executionID).Msg("failed to mark execution running")
	}

	result := s.scanner.ScanSite(ctx, cfg)

	data, err := json.Marshal(result)
	if err != nil {
		s.logger.Error().Err(err).Str("execution", executionID).Msg("failed to marshal scan result")
		if ferr := s.repo.FailExecution(ctx, executionID, err.Error()); ferr != nil {
			s.logger.Error().Err(ferr).Str("execution", executionID).Msg("failed to record execution failure")
		}
		return
	}

	if err := s.repo.CompleteExecution(ctx, executionID, string(data)); err != nil {
		s.logger.Error().Err(err).Str("execution", executionID).Msg("failed to record execution result")
	}
}

func (s *ScanService) clearRunning(siteID string) {
	s.mu.Lock()
	delete(s.running, siteID)
	s.mu.Unlock()
}

// IsRunning reports whether a scan is in flight for the site.
func (s *ScanService) IsRunning(siteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[siteID]
}
