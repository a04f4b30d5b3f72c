package handlers

import (
	"context"

	"github.com/sitewatch/sitewatch/pkg/device"
)

// S21PlusHandler handles Antminer S21+ devices over the socket API.
type S21PlusHandler struct {
	socketStatsHandler
}

// NewS21PlusHandler creates an S21+ handler.
func NewS21PlusHandler(sc device.Context, spec device.ExpectedSpec) *S21PlusHandler {
	return &S21PlusHandler{newSocketStatsHandler("S21+", sc, spec, "S21+", "S21")}
}

// NewS21PlusDescriptor returns the registry descriptor for S21+ devices.
// The detector matches the broader "S21" Type string as well; the S21 Pro
// detector runs earlier in the preferred order so it claims Pro units
// first.
func NewS21PlusDescriptor() device.Descriptor {
	return device.Descriptor{
		Type: "S21+",
		Detect: func(ctx context.Context, ip string, sc device.Context) bool {
			return detectBySocketType(ctx, ip, sc, "S21+", "S21")
		},
		NewHandler: func(sc device.Context, spec device.ExpectedSpec) device.Handler {
			return NewS21PlusHandler(sc, spec)
		},
	}
}
