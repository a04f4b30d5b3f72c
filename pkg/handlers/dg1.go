package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sitewatch/sitewatch/pkg/antcgi"
	"github.com/sitewatch/sitewatch/pkg/device"
)

var (
	dg1Timestamp = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2})\s+(.*)`)

	dg1IPPattern   = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)
	dg1DatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	dg1TimePattern = regexp.MustCompile(`\d{2}:\d{2}:\d{2}`)
)

// DG1Handler handles DG1+ devices over the CGI interface: identity from
// system info, health from the plain-text hlog endpoint.
type DG1Handler struct {
	sc   device.Context
	spec device.ExpectedSpec
}

// NewDG1Handler creates a DG1+ handler.
func NewDG1Handler(sc device.Context, spec device.ExpectedSpec) *DG1Handler {
	return &DG1Handler{sc: sc, spec: spec}
}

func (h *DG1Handler) cgi(ip string) *antcgi.Client {
	auth := antcgi.NewDigestAuth(h.sc.Username, h.sc.Password)
	return antcgi.NewClient(ip, auth, antcgi.WithTimeout(h.sc.Timeout))
}

// Detect requires an exact minertype match; DG1+ firmware reports the
// bare model name.
func (h *DG1Handler) Detect(ctx context.Context, ip string) bool {
	info, err := h.cgi(ip).GetSystemInfo(ctx)
	if err != nil {
		return false
	}
	return info.MinerType == "DG1+"
}

// FetchTelemetry reads the hlog endpoint and surfaces the most recent
// line, split into date, time and message when the line carries a
// timestamp.
func (h *DG1Handler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		DeviceType: "DG1+",
		Source:     device.SourceRegistry,
	}

	content, err := h.cgi(ip).GetHlog(ctx)
	if err != nil {
		result.Status = device.StatusError
		result.Message = fmt.Sprintf("Request exception for DG1+ logs: %s", err)
		result.ErrorType = "connection_error"
		return result
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		result.Status = device.StatusError
		result.Message = "No log content found"
		result.ErrorType = "empty_log"
		return result
	}

	lastLine := lines[len(lines)-1]
	result.Status = device.StatusSuccess
	result.Message = lastLine

	if m := dg1Timestamp.FindStringSubmatch(lastLine); m != nil {
		result.Date = m[1]
		result.Time = m[2]
		result.Message = m[3]
	}

	// Keep up to the ten most recent lines for the report.
	keep := lines
	if len(keep) > 10 {
		keep = keep[len(keep)-10:]
	}
	result.Logs = make([]device.LogEntry, len(keep))
	for i, line := range keep {
		result.Logs[i] = device.LogEntry{Message: line}
	}
	return result
}

// NormalizeMessage scrubs addresses and timestamps out of DG1+ messages
// so the variable parts do not break grouping.
func (h *DG1Handler) NormalizeMessage(message string) string {
	normalized := dg1IPPattern.ReplaceAllString(message, "IP_ADDRESS")
	normalized = dg1DatePattern.ReplaceAllString(normalized, "DATE")
	normalized = dg1TimePattern.ReplaceAllString(normalized, "TIME")
	return normalized
}

// NewDG1Descriptor returns the registry descriptor for DG1+ devices.
func NewDG1Descriptor() device.Descriptor {
	return device.Descriptor{
		Type: "DG1+",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return NewDG1Handler(sc, device.ExpectedSpec{}).Detect(ctx, ip)
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewDG1Handler(sc, spec)
		},
	}
}
