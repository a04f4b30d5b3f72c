package handlers

import (
	"context"
	"strings"

	"github.com/sitewatch/sitewatch/pkg/antcgi"
	"github.com/sitewatch/sitewatch/pkg/device"
	"github.com/sitewatch/sitewatch/pkg/minerapi"
	"github.com/sitewatch/sitewatch/pkg/wslog"
)

// S21ProHandler handles Antminer S21 Pro devices. Identity comes from the
// api/v1 summary; health data is the log stream served over WebSocket.
type S21ProHandler struct {
	sc   device.Context
	spec device.ExpectedSpec
	logs *wslog.Client
}

// NewS21ProHandler creates an S21 Pro handler.
func NewS21ProHandler(sc device.Context, spec device.ExpectedSpec) *S21ProHandler {
	var opts []wslog.ClientOption
	if sc.Timeout > 0 {
		opts = append(opts, wslog.WithReceiveTimeout(sc.Timeout))
	}
	return &S21ProHandler{
		sc:   sc,
		spec: spec,
		logs: wslog.NewClient(opts...),
	}
}

// Detect checks the api/v1 summary for the S21 Pro miner type.
func (h *S21ProHandler) Detect(ctx context.Context, ip string) bool {
	auth := antcgi.NewDigestAuth(h.sc.Username, h.sc.Password)
	api := minerapi.NewClient(ip, auth, minerapi.WithTimeout(h.sc.Timeout))

	summary, err := api.GetSummary(ctx)
	if err != nil {
		return false
	}
	return strings.Contains(summary.Miner.MinerType, "S21 Pro")
}

// FetchTelemetry reads the most recent log entry from the WebSocket
// stream. No usable message within the receive window yields an explicit
// connection error result; the fetch never blocks indefinitely and never
// retries.
func (h *S21ProHandler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		DeviceType: "S21 Pro",
		Source:     device.SourceRegistry,
	}

	entries, err := h.logs.FetchLatest(ctx, ip)
	if err != nil {
		result.Status = device.StatusError
		result.Message = "Could not connect to logs WebSocket endpoint"
		result.ErrorType = "connection_error"
		return result
	}

	latest := entries[len(entries)-1]
	result.Status = device.StatusSuccess
	result.Message = latest.Message
	result.Level = latest.Level
	if parts := strings.Fields(latest.Timestamp); len(parts) == 2 {
		result.Date = parts[0]
		result.Time = parts[1]
	}

	result.Logs = make([]device.LogEntry, len(entries))
	for i, e := range entries {
		result.Logs[i] = device.LogEntry{Timestamp: e.Timestamp, Level: e.Level, Message: e.Message}
	}
	return result
}

// NormalizeMessage collapses the pool-configuration error variants S21
// Pro firmware emits.
func (h *S21ProHandler) NormalizeMessage(message string) string {
	if normalized, ok := normalizePoolMessage(message); ok {
		return normalized
	}
	return message
}

// NewS21ProDescriptor returns the registry descriptor for S21 Pro
// devices. It runs before the S21+ detector, whose broader "S21" match
// would otherwise claim Pro units that expose the socket API.
func NewS21ProDescriptor() device.Descriptor {
	return device.Descriptor{
		Type: "S21 Pro",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return NewS21ProHandler(sc, device.ExpectedSpec{}).Detect(ctx, ip)
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewS21ProHandler(sc, spec)
		},
	}
}
