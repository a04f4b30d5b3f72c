package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/sitewatch/sitewatch/pkg/antcgi"
	"github.com/sitewatch/sitewatch/pkg/cgminer"
	"github.com/sitewatch/sitewatch/pkg/device"
)

// z15jMaxFanSlots bounds the fanN scan of the counters section. Z15j
// firmware reports more slots than the chassis has working fans: the
// lowest-numbered slots read zero RPM by construction, so health is
// judged by working-fan count against the configured expectation, never
// slot by slot.
const z15jMaxFanSlots = 6

var (
	z15jFanFind      = regexp.MustCompile(`No\s+\d+\s+Fan\s+find,\s+check\s+again`)
	z15jFanFindLoose = regexp.MustCompile(`(No\s+\d+\s+Fan\s+find.*?)(?:$|\s*\|)`)
	z15jKernelFan    = regexp.MustCompile(`(?:.*cgminer\[\d+\]:\s*)?(No\s+\d+\s+Fan\s+find,\s+check\s+again)`)
)

// Z15jHandler handles Antminer Z15j devices. The socket API is preferred;
// its firmware emits concatenated JSON objects without separating commas,
// which the cgminer client repairs before parsing. When the socket API is
// disabled or answers garbage, the CGI kernel log is the fallback.
type Z15jHandler struct {
	sc   device.Context
	spec device.ExpectedSpec
	sock *cgminer.Client
}

// NewZ15jHandler creates a Z15j handler.
func NewZ15jHandler(sc device.Context, spec device.ExpectedSpec) *Z15jHandler {
	return &Z15jHandler{
		sc:   sc,
		spec: spec,
		sock: cgminer.NewClient(cgminer.WithTimeout(sc.Timeout)),
	}
}

func (h *Z15jHandler) cgi(ip string) *antcgi.Client {
	auth := antcgi.NewDigestAuth(h.sc.Username, h.sc.Password)
	return antcgi.NewClient(ip, auth, antcgi.WithTimeout(h.sc.Timeout))
}

// Detect tries the socket API first, then falls back to the CGI
// interface for units with the socket API disabled.
func (h *Z15jHandler) Detect(ctx context.Context, ip string) bool {
	if stats, err := h.sock.Stats(ctx, ip); err == nil {
		if strings.Contains(stats.DeviceType(), "Z15j") {
			return true
		}
	}
	return h.detectViaHTTP(ctx, ip)
}

func (h *Z15jHandler) detectViaHTTP(ctx context.Context, ip string) bool {
	cgi := h.cgi(ip)

	if info, err := cgi.GetSystemInfo(ctx); err == nil {
		if strings.Contains(info.MinerType, "Z15j") {
			return true
		}
	}

	// Some units only identify themselves in the web interface title.
	if page, err := cgi.GetIndex(ctx); err == nil {
		if strings.Contains(strings.ToLower(page), "z15j") {
			return true
		}
	}
	return false
}

// FetchTelemetry reads fan health over the socket API, comparing the
// working-fan count against the configured expectation. An invalid or
// short socket response falls back to the CGI kernel log.
func (h *Z15jHandler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	stats, err := h.sock.Stats(ctx, ip)
	if err != nil || !stats.HasCounters() {
		return h.fetchViaHTTP(ctx, ip)
	}

	result := device.TelemetryResult{
		IP:         ip,
		DeviceType: "Z15j",
		Source:     device.SourceRegistry,
	}
	if t := stats.DeviceType(); t != "" {
		result.MinerType = t
		result.Source = device.SourceAPI
	}

	fans := stats.ScanFanSlots(z15jMaxFanSlots)
	working := cgminer.WorkingFans(fans)
	expected := h.spec.Fans

	result.FanRPM = fans

	if working >= expected {
		result.Status = device.StatusSuccess
		result.IgnoreSuccess = true
		return result
	}

	failed := expected - working
	result.Status = device.StatusError
	result.ErrorType = "device_error"
	result.Message = fmt.Sprintf("No %d Fan find, check again (expected %d from config)", failed, expected)
	return result
}

// fetchViaHTTP reads the CGI kernel log when the socket API is unusable.
func (h *Z15jHandler) fetchViaHTTP(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		DeviceType: "Z15j",
		Source:     device.SourceHTTPFallback,
	}

	content, err := h.cgi(ip).GetKernelLog(ctx)
	if err != nil {
		result.Status = device.StatusError
		result.Message = fmt.Sprintf("HTTP Connection Error: %s", err)
		result.ErrorType = "connection_error"
		return result
	}

	status, message := parseZ15jKernelLog(content)
	result.Status = status
	result.Message = message
	if status == device.StatusError {
		result.ErrorType = "device_error"
	}
	if status == device.StatusSuccess && message == "" {
		result.IgnoreSuccess = true
	}
	return result
}

// parseZ15jKernelLog scans the kernel log for the fan failure pattern,
// then for kernel errors, and falls back to the most recent line.
func parseZ15jKernelLog(content string) (status, message string) {
	// JSON-wrapped log, same shape as Z15. The branch requires a real
	// parse: a plain-text dump that merely starts with a brace must still
	// go through the fan-failure scan below.
	var body kernelLogBody
	if json.Unmarshal([]byte(content), &body) == nil {
		return device.StatusSuccess, parseKernelLog(content)
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		lower := strings.ToLower(line)
		if strings.Contains(lower, "no") && strings.Contains(lower, "fan find") {
			if m := z15jKernelFan.FindStringSubmatch(line); m != nil {
				return device.StatusError, m[1]
			}
			return device.StatusError, line
		}
	}

	for i := len(lines) - 1; i >= 0; i-- {
		lower := strings.ToLower(lines[i])
		if strings.Contains(lower, "kernel") || strings.Contains(lower, "error") {
			return device.StatusError, lines[i]
		}
	}

	if len(lines) == 0 {
		return device.StatusSuccess, ""
	}
	return device.StatusSuccess, lines[len(lines)-1]
}

// NormalizeMessage reduces Z15j fan messages to one canonical template so
// identical failures across devices group together, and hides
// informational all-fans-working lines entirely.
func (h *Z15jHandler) NormalizeMessage(message string) string {
	lower := strings.ToLower(message)
	if strings.Contains(lower, "fan") &&
		(strings.Contains(lower, "working") || strings.Contains(lower, "normal")) {
		return ""
	}

	if m := z15jFanFind.FindString(message); m != "" {
		return m
	}

	if strings.Contains(lower, "fan") &&
		(strings.Contains(lower, "error") || strings.Contains(lower, "find")) {
		if m := z15jFanFindLoose.FindStringSubmatch(message); m != nil {
			return m[1]
		}
	}
	return message
}

// NewZ15jDescriptor returns the registry descriptor for Z15j devices.
// Z15j must be evaluated before Z15: both families answer the same CGI
// endpoints and the Z15 detector would claim a Z15j unit.
func NewZ15jDescriptor() device.Descriptor {
	return device.Descriptor{
		Type: "Z15j",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return NewZ15jHandler(sc, device.ExpectedSpec{}).Detect(ctx, ip)
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewZ15jHandler(sc, spec)
		},
	}
}
