package cgminer

import (
	"encoding/json"
	"fmt"
)

// StatsReply is a parsed "stats" response. STATS[0] identifies the device
// (Type, firmware versions); STATS[1] carries the live counters, fan RPMs
// included. Field sets vary wildly between firmware builds, so sections
// stay loosely typed and are read through helpers.
type StatsReply struct {
	Stats  []map[string]json.RawMessage `json:"STATS"`
	Status []map[string]json.RawMessage `json:"STATUS"`
	ID     int                          `json:"id"`
}

// DeviceType returns the vendor-reported type from STATS[0], or "".
func (r *StatsReply) DeviceType() string {
	if len(r.Stats) == 0 {
		return ""
	}
	return stringField(r.Stats[0], "Type")
}

// HasCounters reports whether the reply carries a counters section.
func (r *StatsReply) HasCounters() bool {
	return len(r.Stats) >= 2
}

// FanRPM reads the fan map from the counters section: fan_num gives the
// slot count, fan1..fanN the RPM per slot.
func (r *StatsReply) FanRPM() (map[string]int, error) {
	if !r.HasCounters() {
		return nil, fmt.Errorf("no counters section in stats reply")
	}
	counters := r.Stats[1]

	fanNum, ok := intField(counters, "fan_num")
	if !ok {
		return nil, fmt.Errorf("no fan data found in stats response")
	}

	fans := make(map[string]int, fanNum)
	for i := 1; i <= fanNum; i++ {
		key := fmt.Sprintf("fan%d", i)
		if rpm, ok := intField(counters, key); ok {
			fans[key] = rpm
		}
	}
	return fans, nil
}

// ScanFanSlots reads every fanN field present in the counters section up
// to maxSlots, without consulting fan_num. Families whose firmware reports
// architecturally dead slots (always-zero RPM) are compared by working
// count against the configured expectation, not slot by slot.
func (r *StatsReply) ScanFanSlots(maxSlots int) map[string]int {
	if !r.HasCounters() {
		return nil
	}
	counters := r.Stats[1]

	fans := make(map[string]int)
	for i := 1; i <= maxSlots; i++ {
		key := fmt.Sprintf("fan%d", i)
		if rpm, ok := intField(counters, key); ok {
			fans[key] = rpm
		}
	}
	return fans
}

// FailedFans counts slots reporting zero RPM.
func FailedFans(fans map[string]int) int {
	failed := 0
	for _, rpm := range fans {
		if rpm == 0 {
			failed++
		}
	}
	return failed
}

// WorkingFans counts slots reporting nonzero RPM.
func WorkingFans(fans map[string]int) int {
	working := 0
	for _, rpm := range fans {
		if rpm > 0 {
			working++
		}
	}
	return working
}

// GHSField reads a float counter such as "GHS 5s" or "GHS av", or 0.
func (r *StatsReply) GHSField(name string) float64 {
	if !r.HasCounters() {
		return 0
	}
	raw, ok := r.Stats[1][name]
	if !ok {
		return 0
	}

	// Some firmware encodes hashrate numbers as strings.
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		fmt.Sscanf(s, "%f", &f)
	}
	return f
}

func stringField(section map[string]json.RawMessage, key string) string {
	raw, ok := section[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func intField(section map[string]json.RawMessage, key string) (int, bool) {
	raw, ok := section[key]
	if !ok {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	// Tolerate string-encoded integers.
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		var v int
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			return v, true
		}
	}
	return 0, false
}
