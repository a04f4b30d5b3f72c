package scan

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoSubsections is returned when a config declares nothing to scan.
var ErrNoSubsections = errors.New("site config has no subsections")

// LoadSiteConfig reads and validates a run-configuration JSON file.
// A missing or unparseable file is fatal to the run; everything below the
// site level (bad ranges, unknown models) is handled during the scan.
func LoadSiteConfig(path string) (*SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading site config: %w", err)
	}

	var cfg SiteConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing site config: %w", err)
	}

	if len(cfg.Subsections) == 0 {
		return nil, ErrNoSubsections
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5
	}
	return &cfg, nil
}
