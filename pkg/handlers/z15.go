package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sitewatch/sitewatch/pkg/antcgi"
	"github.com/sitewatch/sitewatch/pkg/device"
)

// kernelLogBody is the JSON wrapper newer Z15 firmware puts around the
// kernel log text.
type kernelLogBody struct {
	Log string `json:"log"`
}

var z15FanError = regexp.MustCompile(`No \d+ Fan find, check again`)

// Z15Handler handles Antminer Z15 devices over the CGI interface.
type Z15Handler struct {
	sc   device.Context
	spec device.ExpectedSpec
}

// NewZ15Handler creates a Z15 handler.
func NewZ15Handler(sc device.Context, spec device.ExpectedSpec) *Z15Handler {
	return &Z15Handler{sc: sc, spec: spec}
}

func (h *Z15Handler) cgi(ip string) *antcgi.Client {
	auth := antcgi.NewDigestAuth(h.sc.Username, h.sc.Password)
	return antcgi.NewClient(ip, auth, antcgi.WithTimeout(h.sc.Timeout))
}

// Detect checks the system-info minertype for the Z15 family. The Z15j
// detector runs earlier in the preferred order, so reaching this detector
// with a "Z15j" minertype cannot happen during a normal scan.
func (h *Z15Handler) Detect(ctx context.Context, ip string) bool {
	info, err := h.cgi(ip).GetSystemInfo(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(info.MinerType, "Z15")
}

// FetchTelemetry reads the kernel log and surfaces its message.
func (h *Z15Handler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		DeviceType: "Z15",
		Source:     device.SourceRegistry,
	}

	content, err := h.cgi(ip).GetKernelLog(ctx)
	if err != nil {
		result.Status = device.StatusError
		result.Message = fmt.Sprintf("Request exception for Z15 logs: %s", err)
		result.ErrorType = "connection_error"
		return result
	}

	result.Status = device.StatusSuccess
	result.Message = parseKernelLog(content)
	return result
}

// parseKernelLog extracts the log message: JSON-wrapped firmware exposes
// a "log" field, older builds serve plain text where the last line is the
// most recent entry.
func parseKernelLog(content string) string {
	var body kernelLogBody
	if err := json.Unmarshal([]byte(content), &body); err == nil {
		message := strings.TrimSpace(body.Log)
		if message == "" {
			message = "No log message"
		}
		return message
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

// NormalizeMessage strips timestamps and host noise from Z15 fan errors
// so identical failures group together.
func (h *Z15Handler) NormalizeMessage(message string) string {
	if strings.Contains(message, "Fan find, check again") {
		if m := z15FanError.FindString(message); m != "" {
			return m
		}
	}
	return message
}

// NewZ15Descriptor returns the registry descriptor for Z15 devices.
func NewZ15Descriptor() device.Descriptor {
	return device.Descriptor{
		Type: "Z15",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return NewZ15Handler(sc, device.ExpectedSpec{}).Detect(ctx, ip)
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewZ15Handler(sc, spec)
		},
	}
}
