// Package scan implements site-level orchestration: range expansion and
// probing per subsection, per-IP detection and telemetry retrieval, issue
// analysis against the configured roster, and the aggregated result and
// report shapes consumed by the persistence and reporting collaborators.
package scan

import (
	"time"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// MinerCount is one roster entry: how many units of a model a subsection
// is supposed to hold.
type MinerCount struct {
	Model    string `json:"model"`
	Quantity int    `json:"quantity"`
}

// Subsection is one reporting unit of a site, typically a rack or pod.
type Subsection struct {
	Name     string       `json:"name"`
	IPRanges []string     `json:"ip_ranges"`
	Miners   []MinerCount `json:"miners"`
}

// ExpectedMiners sums the roster quantities.
func (s Subsection) ExpectedMiners() int {
	total := 0
	for _, m := range s.Miners {
		total += m.Quantity
	}
	return total
}

// SiteConfig is the resolved run configuration for one scan. It is
// immutable for the duration of the scan.
type SiteConfig struct {
	Username    string                         `json:"username"`
	Password    string                         `json:"password"`
	Timeout     int                            `json:"timeout"`
	SiteID      string                         `json:"site_id"`
	Subsections []Subsection                   `json:"subsections"`
	Models      map[string]device.ExpectedSpec `json:"models"`
}

// Context converts the config's credentials and timeout into the scan
// context handed to detectors and handlers.
func (c SiteConfig) Context() device.Context {
	return device.Context{
		Username: c.Username,
		Password: c.Password,
		Timeout:  time.Duration(c.Timeout) * time.Second,
	}
}

// ModelSpecs returns the expected specs keyed by canonical type name, so
// lookups work whatever spelling the config uses for a model.
func (c SiteConfig) ModelSpecs() map[string]device.ExpectedSpec {
	specs := make(map[string]device.ExpectedSpec, len(c.Models))
	for name, spec := range c.Models {
		specs[device.NormalizeType(name)] = spec
	}
	return specs
}

// Issue is one structured finding about a device.
type Issue struct {
	Category    string `json:"category"`
	Description string `json:"description"`
}

// TypeComparison is the expected-vs-actual accounting for one device type
// within a subsection.
type TypeComparison struct {
	Expected   int `json:"expected"`
	Actual     int `json:"actual"`
	Working    int `json:"working"`
	WithIssues int `json:"with_issues"`
	Offline    int `json:"offline"`
}

// SubsectionSummary aggregates a subsection's devices by canonical type:
// which IPs are working, which have issues and what the issues are, and
// the roster comparison.
type SubsectionSummary struct {
	Working    map[string][]string          `json:"working"`
	Issues     map[string]map[string][]Issue `json:"issues"`
	Comparison map[string]TypeComparison    `json:"comparison"`
}

// SubsectionResult is the scan outcome for one subsection.
type SubsectionResult struct {
	Name           string                            `json:"name"`
	IPRanges       []string                          `json:"ip_ranges"`
	ExpectedMiners int                               `json:"expected_miners"`
	ActiveIPs      []string                          `json:"active_ips"`
	Devices        map[string]device.TelemetryResult `json:"devices"`
	Summary        SubsectionSummary                 `json:"summary"`
}

// SiteResult is the full scan outcome handed to the reporting and
// persistence collaborators. ErrorGroups is the cross-subsection
// deduplicated view: canonical type, then normalized message, then the
// IPs reporting it.
type SiteResult struct {
	SiteID          string                            `json:"site_id"`
	Timestamp       string                            `json:"timestamp"`
	DurationSeconds float64                           `json:"duration_seconds"`
	Subsections     []SubsectionResult                `json:"subsections"`
	RawData         map[string]device.TelemetryResult `json:"raw_data"`
	ErrorGroups     map[string]map[string][]string    `json:"error_groups,omitempty"`
}
