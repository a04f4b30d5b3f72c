package scan

import (
	"fmt"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// AnalyzeIssues compares one device's telemetry against its model's
// expected spec. Each rule is independent and additive; a device with
// zero issues is working. The free-text message rule carries the raw
// message verbatim: normalization happens only at aggregation time.
func AnalyzeIssues(telemetry device.TelemetryResult, spec device.ExpectedSpec) []Issue {
	var issues []Issue

	if telemetry.FanRPM != nil && spec.Fans > 0 {
		active := telemetry.ActiveFans()
		if active < spec.Fans {
			description := fmt.Sprintf("Missing %d Fan(s)", spec.Fans-active)
			if active == 0 {
				description = "No fans"
			}
			issues = append(issues, Issue{Category: "fan", Description: description})
		}
	}

	if telemetry.Hashboards != nil && spec.Hashboards > 0 {
		active := telemetry.ActiveHashboards()
		if active < spec.Hashboards {
			issues = append(issues, Issue{
				Category:    "hashboard",
				Description: fmt.Sprintf("Missing %d Hashboard(s)", spec.Hashboards-active),
			})
		}
	}

	if telemetry.Hashrate > 0 && spec.Hashrate > 0 && telemetry.Hashrate < 0.6*spec.Hashrate {
		issues = append(issues, Issue{
			Category:    "hashrate",
			Description: fmt.Sprintf("Low hashrate: %g (Expected: %g)", telemetry.Hashrate, spec.Hashrate),
		})
	}

	if telemetry.Message != "" {
		issues = append(issues, Issue{Category: "message", Description: telemetry.Message})
	}

	// An errored device always counts as "with issues" even when its
	// message is empty.
	if telemetry.Status == device.StatusError && len(issues) == 0 {
		issues = append(issues, Issue{Category: "message", Description: "Unknown error"})
	}

	return issues
}
