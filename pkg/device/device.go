// Package device defines the capability contract shared by all device
// handlers, the ordered type registry used for probe-based detection, and
// the per-IP manager that drives detection and telemetry retrieval.
package device

import (
	"context"
	"time"
)

// Status values carried by a TelemetryResult.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Detection sources recorded on results.
const (
	SourceRegistry     = "registry"
	SourceAPI          = "api"
	SourceHTTPFallback = "http_fallback"
)

// TypeUnknown is the device type assigned when no detector matches.
const TypeUnknown = "unknown"

// Context carries the site credentials and per-operation timeout handed to
// every handler and detector. It is immutable for the duration of a scan.
type Context struct {
	Username string
	Password string
	Timeout  time.Duration
}

// ExpectedSpec is the configured baseline for one hardware model, used as
// the comparison target by the issue analyzer.
type ExpectedSpec struct {
	Hashrate   float64 `json:"hashrate"`
	Hashboards int     `json:"HB"`
	Fans       int     `json:"fans"`
}

// LogEntry is one parsed device log line.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level,omitempty"`
	Message   string `json:"message"`
}

// Hashboard is the reported state of one hashboard.
type Hashboard struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// TelemetryResult is the outcome of one telemetry fetch. Fetches never
// fail with an error value; failures are data, tagged StatusError with a
// human-readable message.
type TelemetryResult struct {
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Message    string `json:"message,omitempty"`
	DeviceType string `json:"device_type,omitempty"`
	Source     string `json:"device_type_source,omitempty"`
	ErrorType  string `json:"error_type,omitempty"`

	// MinerType is the vendor-reported type string, when the wire
	// protocol exposes one. It may disagree with DeviceType.
	MinerType string `json:"miner_type,omitempty"`

	FanRPM     map[string]int `json:"fan_data,omitempty"`
	Hashboards []Hashboard    `json:"hashboards,omitempty"`
	Hashrate   float64        `json:"hashrate,omitempty"`

	Date  string     `json:"date,omitempty"`
	Time  string     `json:"time,omitempty"`
	Level string     `json:"level,omitempty"`
	Logs  []LogEntry `json:"logs,omitempty"`

	// IgnoreSuccess marks an all-clear result whose empty message must
	// not contribute to message aggregation.
	IgnoreSuccess bool `json:"ignore_success,omitempty"`
}

// ActiveFans counts reported fans with nonzero RPM.
func (r TelemetryResult) ActiveFans() int {
	n := 0
	for _, rpm := range r.FanRPM {
		if rpm > 0 {
			n++
		}
	}
	return n
}

// ActiveHashboards counts hashboards reporting an active status.
func (r TelemetryResult) ActiveHashboards() int {
	n := 0
	for _, hb := range r.Hashboards {
		if hb.Status == "active" {
			n++
		}
	}
	return n
}

// ErrorResult builds an error-status result for ip with the given message.
func ErrorResult(ip, deviceType, errorType, message string) TelemetryResult {
	return TelemetryResult{
		IP:         ip,
		Status:     StatusError,
		Message:    message,
		DeviceType: deviceType,
		Source:     SourceRegistry,
		ErrorType:  errorType,
	}
}

// Handler is the capability contract every device family implements.
type Handler interface {
	// Detect probes the address and reports whether it matches this
	// handler's hardware family. It is side-effect-free and never
	// returns an error: any transport or protocol failure is a
	// negative detection.
	Detect(ctx context.Context, ip string) bool

	// FetchTelemetry retrieves current health data. It always returns
	// a result; failures are tagged StatusError, never raised.
	FetchTelemetry(ctx context.Context, ip string) TelemetryResult

	// NormalizeMessage maps a raw vendor message to a canonical form
	// used for deduplication during aggregation.
	NormalizeMessage(message string) string
}

// IdentityNormalizer provides the default NormalizeMessage, returning the
// message unchanged. Handlers without vendor-specific normalization rules
// embed it.
type IdentityNormalizer struct{}

// NormalizeMessage returns the message unchanged.
func (IdentityNormalizer) NormalizeMessage(message string) string {
	return message
}
