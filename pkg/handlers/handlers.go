// Package handlers implements the protocol-bound device handlers for all
// supported hardware families and registers them into a device registry.
//
// Three wire protocols are covered: digest-authenticated CGI over HTTP
// (Z15, Z15j fallback, DG1+), the raw-socket JSON command API (T21, S21+,
// S19j Pro, Z15j) and WebSocket log streaming (S21 Pro).
package handlers

import (
	"strings"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// DetectionOrder is the preferred detector evaluation order. Detection is
// probe-based and several families answer the same endpoints, so specific
// models come before the general ones that would otherwise claim them:
// Z15j before Z15, S21 Pro before S21+.
var DetectionOrder = []string{"Z15j", "Z15", "T21", "S21 Pro", "S21+", "S19j Pro", "DG1+"}

// RegisterAll registers every supported device family and applies the
// preferred detection order. Call once at startup, before scanning.
func RegisterAll(r *device.Registry) error {
	descriptors := []device.Descriptor{
		NewZ15jDescriptor(),
		NewZ15Descriptor(),
		NewT21Descriptor(),
		NewS21PlusDescriptor(),
		NewS21ProDescriptor(),
		NewS19jProDescriptor(),
		NewDG1Descriptor(),
	}

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return err
		}
	}

	r.Reorder(DetectionOrder)
	return nil
}

// NewRegistry builds a registry with every supported family registered in
// the preferred detection order.
func NewRegistry() (*device.Registry, error) {
	r := device.NewRegistry()
	if err := RegisterAll(r); err != nil {
		return nil, err
	}
	return r, nil
}

// normalizePoolMessage collapses the pool-configuration error variants
// newer firmware emits into two canonical templates. The templates keep
// the vendor's own spelling so they group with raw device output.
func normalizePoolMessage(message string) (string, bool) {
	if !strings.Contains(message, "Pools") && !strings.Contains(message, "pool") {
		return message, false
	}
	if strings.Contains(message, "wrong format") {
		return "Pools not specifed or have wrong format", true
	}
	if strings.Contains(message, "specify") {
		return "Need to specify at least one pool", true
	}
	return message, false
}
