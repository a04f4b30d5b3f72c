package scan

import (
	"sort"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// GroupMessages groups telemetry messages by canonical device type, then
// by the handler-normalized message, retaining the contributing IPs per
// group. This is the deduplication mechanism for alerting on identical
// failures across many devices: three units reporting the same fan error
// collapse into one group of size three.
//
// Results whose message is empty, or whose message normalizes to empty,
// or that are flagged IgnoreSuccess, contribute nothing.
func GroupMessages(manager *device.Manager, results map[string]device.TelemetryResult) map[string]map[string][]string {
	groups := make(map[string]map[string][]string)

	for ip, telemetry := range results {
		if telemetry.IgnoreSuccess || telemetry.Message == "" {
			continue
		}

		message := manager.NormalizeMessage(telemetry.DeviceType, telemetry.Message)
		if message == "" {
			continue
		}

		deviceType := device.NormalizeType(telemetry.DeviceType)
		if groups[deviceType] == nil {
			groups[deviceType] = make(map[string][]string)
		}
		groups[deviceType][message] = append(groups[deviceType][message], ip)
	}

	for _, byMessage := range groups {
		for message := range byMessage {
			sort.Strings(byMessage[message])
		}
	}
	return groups
}
