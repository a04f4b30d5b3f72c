package scan

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/internal/netutil"
	"github.com/sitewatch/sitewatch/pkg/device"
)

func TestBuildSummaryComparison(t *testing.T) {
	sub := Subsection{
		Name:   "rack-1",
		Miners: []MinerCount{{Model: "T21", Quantity: 5}},
	}
	devices := map[string]device.TelemetryResult{
		"10.0.0.1": {Status: device.StatusSuccess, DeviceType: "T21", IgnoreSuccess: true},
		"10.0.0.2": {Status: device.StatusSuccess, DeviceType: "T21", IgnoreSuccess: true},
		"10.0.0.3": {Status: device.StatusError, DeviceType: "T21", Message: "No 1 Fan find"},
	}

	summary := buildSummary(sub, devices, nil)

	c := summary.Comparison["T21"]
	assert.Equal(t, 5, c.Expected)
	assert.Equal(t, 3, c.Actual)
	assert.Equal(t, 2, c.Working)
	assert.Equal(t, 1, c.WithIssues)
	assert.Equal(t, 2, c.Offline)

	// Aggregation completeness: working + issues == total responsive.
	assert.Equal(t, c.Actual, c.Working+c.WithIssues)

	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, summary.Working["T21"])
	require.Contains(t, summary.Issues["T21"], "10.0.0.3")
}

func TestBuildSummaryOfflineNeverNegative(t *testing.T) {
	sub := Subsection{Miners: []MinerCount{{Model: "T21", Quantity: 1}}}
	devices := map[string]device.TelemetryResult{
		"10.0.0.1": {Status: device.StatusSuccess, DeviceType: "T21", IgnoreSuccess: true},
		"10.0.0.2": {Status: device.StatusSuccess, DeviceType: "T21", IgnoreSuccess: true},
	}

	summary := buildSummary(sub, devices, nil)
	assert.Equal(t, 0, summary.Comparison["T21"].Offline)
}

// An errored device counts as actual (it answered) and as with-issues.
func TestBuildSummaryErroredDeviceCounts(t *testing.T) {
	sub := Subsection{Miners: []MinerCount{{Model: "Z15", Quantity: 2}}}
	devices := map[string]device.TelemetryResult{
		"10.0.0.1": {Status: device.StatusError, DeviceType: "Z15",
			Message: "Request exception for Z15 logs: connection refused", ErrorType: "connection_error"},
	}

	summary := buildSummary(sub, devices, nil)
	c := summary.Comparison["Z15"]
	assert.Equal(t, 1, c.Actual)
	assert.Equal(t, 1, c.WithIssues)
	assert.Equal(t, 0, c.Working)
	assert.Equal(t, 1, c.Offline)
}

func TestBuildSummaryUnexpectedType(t *testing.T) {
	sub := Subsection{Miners: []MinerCount{{Model: "T21", Quantity: 1}}}
	devices := map[string]device.TelemetryResult{
		"10.0.0.1": {Status: device.StatusSuccess, DeviceType: "T21", IgnoreSuccess: true},
		"10.0.0.2": {Status: device.StatusSuccess, DeviceType: "Z15", IgnoreSuccess: true},
	}

	summary := buildSummary(sub, devices, nil)

	// Types found on the network but absent from the roster still get a
	// comparison row.
	c, ok := summary.Comparison["Z15"]
	require.True(t, ok)
	assert.Equal(t, 0, c.Expected)
	assert.Equal(t, 1, c.Actual)
}

// stubRegistry detects every reachable IP as one fixed type whose handler
// always reports the given message (all-clear when empty).
func stubRegistry(t *testing.T, deviceType, message string) *device.Registry {
	t.Helper()
	r := device.NewRegistry()
	require.NoError(t, r.Register(device.Descriptor{
		Type: deviceType,
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return true
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return fixedResultHandler{deviceType: deviceType, message: message}
		},
	}))
	return r
}

type fixedResultHandler struct {
	deviceType string
	message    string
}

func (h fixedResultHandler) Detect(ctx context.Context, ip string) bool { return true }

func (h fixedResultHandler) FetchTelemetry(ctx context.Context, ip string) device.TelemetryResult {
	result := device.TelemetryResult{
		IP:         ip,
		Status:     device.StatusSuccess,
		DeviceType: h.deviceType,
		Message:    h.message,
	}
	if h.message == "" {
		result.IgnoreSuccess = true
	} else {
		result.Status = device.StatusError
	}
	return result
}

func (h fixedResultHandler) NormalizeMessage(message string) string { return message }

// loopbackListener opens an accept-and-close listener and returns its
// port, so probes against 127.0.0.1 succeed.
func loopbackListener(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, _ := strconv.Atoi(portStr)
	return port
}

func TestScanSite(t *testing.T) {
	port := loopbackListener(t)

	cfg := &SiteConfig{
		Username: "root",
		Password: "root",
		Timeout:  2,
		SiteID:   "test-site",
		Subsections: []Subsection{{
			Name:     "rack-1",
			IPRanges: []string{"127.0.0.1", "not a range at all"},
			Miners:   []MinerCount{{Model: "T21", Quantity: 2}},
		}},
	}

	scanner := NewScanner(stubRegistry(t, "T21", ""),
		WithProber(netutil.NewProber(netutil.WithProbeTimeout(time.Second))),
		WithProbePort(port),
	)
	result := scanner.ScanSite(context.Background(), cfg)

	assert.Equal(t, "test-site", result.SiteID)
	require.Len(t, result.Subsections, 1)

	sub := result.Subsections[0]
	assert.Equal(t, "rack-1", sub.Name)
	assert.Equal(t, 2, sub.ExpectedMiners)

	// The bad range is skipped, never fatal.
	assert.Equal(t, []string{"127.0.0.1"}, sub.ActiveIPs)
	require.Contains(t, sub.Devices, "127.0.0.1")
	assert.Equal(t, device.StatusSuccess, sub.Devices["127.0.0.1"].Status)

	c := sub.Summary.Comparison["T21"]
	assert.Equal(t, 1, c.Actual)
	assert.Equal(t, 1, c.Working)
	assert.Equal(t, 1, c.Offline)

	// Raw data mirrors every scanned device.
	assert.Contains(t, result.RawData, "127.0.0.1")
	assert.GreaterOrEqual(t, result.DurationSeconds, 0.0)

	// A clean fleet produces no error groups.
	assert.Empty(t, result.ErrorGroups)
}

// Failing devices surface in the site-wide deduplicated error groups.
func TestScanSiteErrorGroups(t *testing.T) {
	port := loopbackListener(t)

	cfg := &SiteConfig{
		Timeout: 2,
		SiteID:  "test-site",
		Subsections: []Subsection{{
			Name:     "rack-1",
			IPRanges: []string{"127.0.0.1"},
			Miners:   []MinerCount{{Model: "Z15j", Quantity: 1}},
		}},
	}

	scanner := NewScanner(stubRegistry(t, "Z15j", "No 2 Fan find, check again"),
		WithProber(netutil.NewProber(netutil.WithProbeTimeout(time.Second))),
		WithProbePort(port),
	)
	result := scanner.ScanSite(context.Background(), cfg)

	require.Contains(t, result.ErrorGroups, "Z15j")
	assert.Equal(t, []string{"127.0.0.1"},
		result.ErrorGroups["Z15j"]["No 2 Fan find, check again"])
}

func TestScanDeviceUnknownType(t *testing.T) {
	registry := device.NewRegistry()
	scanner := NewScanner(registry)
	manager := device.NewManager(registry, device.Context{}, nil)

	result := scanner.scanDevice(context.Background(), manager, "10.0.0.9")
	assert.Equal(t, device.StatusError, result.Status)
	assert.Equal(t, device.TypeUnknown, result.DeviceType)
	assert.Equal(t, "unknown_device", result.ErrorType)
}
