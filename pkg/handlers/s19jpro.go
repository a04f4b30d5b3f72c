package handlers

import (
	"context"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// S19jProHandler handles Antminer S19j Pro devices over the socket API.
type S19jProHandler struct {
	socketStatsHandler
}

// NewS19jProHandler creates an S19j Pro handler.
func NewS19jProHandler(sc device.Context, spec device.ExpectedSpec) *S19jProHandler {
	return &S19jProHandler{newSocketStatsHandler("S19j Pro", sc, spec)}
}

// NewS19jProDescriptor returns the registry descriptor for S19j Pro
// devices.
func NewS19jProDescriptor() device.Descriptor {
	return device.Descriptor{
		Type: "S19j Pro",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return detectBySocketType(ctx, ip, sc, "S19j Pro")
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewS19jProHandler(sc, spec)
		},
	}
}
