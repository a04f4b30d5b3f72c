package scan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitewatch/sitewatch/pkg/device"
)

func TestAnalyzeIssuesMissingFans(t *testing.T) {
	telemetry := device.TelemetryResult{
		Status: device.StatusSuccess,
		FanRPM: map[string]int{"fan1": 4200, "fan2": 4100, "fan3": 0, "fan4": 0},
	}
	issues := AnalyzeIssues(telemetry, device.ExpectedSpec{Fans: 4})

	require.Len(t, issues, 1)
	assert.Equal(t, "fan", issues[0].Category)
	assert.Equal(t, "Missing 2 Fan(s)", issues[0].Description)
}

func TestAnalyzeIssuesNoFans(t *testing.T) {
	telemetry := device.TelemetryResult{
		Status: device.StatusSuccess,
		FanRPM: map[string]int{"fan1": 0, "fan2": 0},
	}
	issues := AnalyzeIssues(telemetry, device.ExpectedSpec{Fans: 2})

	require.Len(t, issues, 1)
	assert.Equal(t, "No fans", issues[0].Description)
}

// Decreasing the active-fan count can only add or strengthen a fan
// issue, never remove one.
func TestAnalyzeIssuesFanMonotonicity(t *testing.T) {
	spec := device.ExpectedSpec{Fans: 4}

	previous := -1
	for active := 4; active >= 0; active-- {
		fans := make(map[string]int, 4)
		for i := 1; i <= 4; i++ {
			rpm := 0
			if i <= active {
				rpm = 4000
			}
			fans[fmt.Sprintf("fan%d", i)] = rpm
		}

		issues := AnalyzeIssues(device.TelemetryResult{Status: device.StatusSuccess, FanRPM: fans}, spec)

		fanIssues := 0
		for _, issue := range issues {
			if issue.Category == "fan" {
				fanIssues++
			}
		}
		assert.GreaterOrEqual(t, fanIssues, 0)
		if previous >= 0 {
			assert.GreaterOrEqual(t, fanIssues, previous, "active=%d", active)
		}
		previous = fanIssues
	}
}

func TestAnalyzeIssuesMissingHashboards(t *testing.T) {
	telemetry := device.TelemetryResult{
		Status: device.StatusSuccess,
		Hashboards: []device.Hashboard{
			{Index: 0, Status: "active"},
			{Index: 1, Status: "dead"},
			{Index: 2, Status: "dead"},
		},
	}
	issues := AnalyzeIssues(telemetry, device.ExpectedSpec{Hashboards: 3})

	require.Len(t, issues, 1)
	assert.Equal(t, "hashboard", issues[0].Category)
	assert.Equal(t, "Missing 2 Hashboard(s)", issues[0].Description)
}

func TestAnalyzeIssuesLowHashrate(t *testing.T) {
	spec := device.ExpectedSpec{Hashrate: 200}

	issues := AnalyzeIssues(device.TelemetryResult{Status: device.StatusSuccess, Hashrate: 100}, spec)
	require.Len(t, issues, 1)
	assert.Equal(t, "hashrate", issues[0].Category)
	assert.Equal(t, "Low hashrate: 100 (Expected: 200)", issues[0].Description)

	// At or above 60% of expected is fine.
	assert.Empty(t, AnalyzeIssues(device.TelemetryResult{Status: device.StatusSuccess, Hashrate: 120}, spec))

	// Zero hashrate never triggers the rule on its own.
	assert.Empty(t, AnalyzeIssues(device.TelemetryResult{Status: device.StatusSuccess}, spec))
}

func TestAnalyzeIssuesMessageCarriedVerbatim(t *testing.T) {
	raw := "Jun 28 cgminer[99]: No 2 Fan find, check again"
	issues := AnalyzeIssues(device.TelemetryResult{Status: device.StatusError, Message: raw}, device.ExpectedSpec{})

	require.Len(t, issues, 1)
	assert.Equal(t, "message", issues[0].Category)
	assert.Equal(t, raw, issues[0].Description, "normalization happens at aggregation, not analysis")
}

func TestAnalyzeIssuesErrorWithoutMessage(t *testing.T) {
	issues := AnalyzeIssues(device.TelemetryResult{Status: device.StatusError}, device.ExpectedSpec{})
	require.Len(t, issues, 1)
	assert.Equal(t, "Unknown error", issues[0].Description)
}

func TestAnalyzeIssuesRulesAreAdditive(t *testing.T) {
	telemetry := device.TelemetryResult{
		Status:   device.StatusSuccess,
		FanRPM:   map[string]int{"fan1": 4200, "fan2": 0},
		Hashrate: 50,
		Message:  "No 1 Fan find",
	}
	issues := AnalyzeIssues(telemetry, device.ExpectedSpec{Fans: 2, Hashrate: 200})
	assert.Len(t, issues, 3)
}

func TestAnalyzeIssuesWorkingDevice(t *testing.T) {
	telemetry := device.TelemetryResult{
		Status:        device.StatusSuccess,
		FanRPM:        map[string]int{"fan1": 4200, "fan2": 4100},
		Hashrate:      200,
		IgnoreSuccess: true,
	}
	assert.Empty(t, AnalyzeIssues(telemetry, device.ExpectedSpec{Fans: 2, Hashrate: 200}))
}
