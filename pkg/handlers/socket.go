package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sitewatch/sitewatch/pkg/cgminer"
	"github.com/sitewatch/sitewatch/pkg/device"
)

// socketStatsHandler is the shared implementation for families whose
// health data comes from the socket API "stats" command: fan RPMs are
// read from the counters section and a slot reporting zero RPM counts as
// a failed fan.
type socketStatsHandler struct {
	device.IdentityNormalizer

	deviceType string
	matches    []string
	sc         device.Context
	spec       device.ExpectedSpec
	sock       *cgminer.Client
}

// newSocketStatsHandler builds the base for one family. matches are the
// substrings identifying the family in the vendor Type string; when empty,
// the registered type name is used.
func newSocketStatsHandler(deviceType string, sc device.Context, spec device.ExpectedSpec, matches ...string) socketStatsHandler {
	if len(matches) == 0 {
		matches = []string{deviceType}
	}
	return socketStatsHandler{
		deviceType: deviceType,
		matches:    matches,
		sc:         sc,
		spec:       spec,
		sock:       cgminer.NewClient(cgminer.WithTimeout(sc.Timeout)),
	}
}

// Detect matches the vendor-reported Type from STATS[0] against the
// family's identifying substrings.
func (h *socketStatsHandler) Detect(ctx context.Context, ip string) bool {
	return detectBySocketType(ctx, ip, h.sc, h.matches...)
}

// FetchTelemetry reads fan health over the socket API.
func (h *socketStatsHandler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		Status:     device.StatusSuccess,
		DeviceType: h.deviceType,
		Source:     device.SourceRegistry,
	}

	stats, err := h.sock.Stats(ctx, ip)
	if err != nil {
		result.Status = device.StatusError
		result.Message = fmt.Sprintf("Error fetching fan status: %s", err)
		result.ErrorType = classifyFetchError(err)
		return result
	}

	if t := stats.DeviceType(); t != "" {
		result.MinerType = t
	}

	fans, err := stats.FanRPM()
	if err != nil {
		result.Status = device.StatusError
		result.Message = err.Error()
		result.ErrorType = "fan_data_error"
		return result
	}

	result.FanRPM = fans
	result.Hashrate = stats.GHSField("GHS 5s")

	if failed := cgminer.FailedFans(fans); failed > 0 {
		result.Message = fmt.Sprintf("No %d Fan find", failed)
	} else {
		// All fans OK: empty message, excluded from aggregation.
		result.IgnoreSuccess = true
	}
	return result
}

// detectBySocketType sends "stats" and reports whether the vendor Type
// contains any of the given substrings. Any transport or protocol failure
// is a negative detection.
func detectBySocketType(ctx context.Context, ip string, sc device.Context, matches ...string) bool {
	sock := cgminer.NewClient(cgminer.WithTimeout(sc.Timeout))

	stats, err := sock.Stats(ctx, ip)
	if err != nil {
		return false
	}

	deviceType := stats.DeviceType()
	if deviceType == "" {
		return false
	}
	for _, m := range matches {
		if strings.Contains(deviceType, m) {
			return true
		}
	}
	return false
}

func classifyFetchError(err error) string {
	switch {
	case errors.Is(err, cgminer.ErrTimeout), errors.Is(err, cgminer.ErrRefused):
		return "connection_error"
	case errors.Is(err, cgminer.ErrInvalidJSON):
		return "json_error"
	default:
		return "unknown_error"
	}
}
