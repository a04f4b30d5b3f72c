package handlers

import (
	"context"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// T21Handler handles Antminer T21 devices over the socket API.
type T21Handler struct {
	socketStatsHandler
}

// NewT21Handler creates a T21 handler.
func NewT21Handler(sc device.Context, spec device.ExpectedSpec) *T21Handler {
	return &T21Handler{newSocketStatsHandler("T21", sc, spec)}
}

// NormalizeMessage collapses the pool-configuration error variants T21
// firmware emits.
func (h *T21Handler) NormalizeMessage(message string) string {
	if normalized, ok := normalizePoolMessage(message); ok {
		return normalized
	}
	return message
}

// NewT21Descriptor returns the registry descriptor for T21 devices.
func NewT21Descriptor() device.Descriptor {
	return device.Descriptor{
		Type: "T21",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return detectBySocketType(ctx, ip, sc, "T21")
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewT21Handler(sc, spec)
		},
	}
}
