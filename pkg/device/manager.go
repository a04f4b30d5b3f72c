package device

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Detection is the outcome of running the registry's detectors against
// one address.
type Detection struct {
	Type   string `json:"device_type"`
	Source string `json:"device_type_source,omitempty"`
}

// Manager orchestrates detection and telemetry retrieval for single IPs.
// It iterates the registry's detectors in their current order and routes
// telemetry fetches to the matching handler.
type Manager struct {
	registry *Registry
	sc       Context
	models   map[string]ExpectedSpec
	logger   zerolog.Logger
}

// NewManager creates a manager bound to a registry, scan context and the
// per-model expected specs from the site configuration.
func NewManager(registry *Registry, sc Context, models map[string]ExpectedSpec) *Manager {
	return &Manager{
		registry: registry,
		sc:       sc,
		models:   models,
		logger:   log.With().Str("component", "device-manager").Logger(),
	}
}

// DetectDeviceType runs the registered detectors in order and returns the
// first positive match. A detector panic counts as a negative match for
// that type; it never propagates. Exhausting all detectors yields
// TypeUnknown with an empty source.
func (m *Manager) DetectDeviceType(ctx context.Context, ip string) Detection {
	for _, d := range m.registry.Descriptors() {
		if m.runDetector(ctx, d, ip) {
			m.logger.Debug().Str("ip", ip).Str("type", d.Type).Msg("device detected")
			return Detection{Type: d.Type, Source: SourceRegistry}
		}
	}

	m.logger.Debug().Str("ip", ip).Msg("unknown device type")
	return Detection{Type: TypeUnknown}
}

func (m *Manager) runDetector(ctx context.Context, d Descriptor, ip string) (matched bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Str("ip", ip).Str("type", d.Type).
				Interface("panic", r).Msg("detector panicked, treating as no match")
			matched = false
		}
	}()
	return d.Detect(ctx, ip, m.sc)
}

// FetchTelemetry fetches telemetry from ip using the handler registered
// for deviceType. A missing handler or a panic during construction or
// fetch yields an error-status result naming the cause; it never aborts
// the enclosing scan.
func (m *Manager) FetchTelemetry(ctx context.Context, ip, deviceType string) (result TelemetryResult) {
	d, ok := m.registry.Lookup(deviceType)
	if !ok {
		return ErrorResult(ip, deviceType, "no_handler",
			fmt.Sprintf("No handler registered for device type: %s", deviceType))
	}

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Str("ip", ip).Str("type", deviceType).
				Interface("panic", r).Msg("handler panicked during telemetry fetch")
			result = ErrorResult(ip, deviceType, "handler_error",
				fmt.Sprintf("Error using %s handler: %v", deviceType, r))
		}
	}()

	spec := m.models[NormalizeType(deviceType)]
	handler := d.NewHandler(m.sc, spec)

	result = handler.FetchTelemetry(ctx, ip)
	if result.IP == "" {
		result.IP = ip
	}
	if result.DeviceType == "" {
		result.DeviceType = deviceType
		result.Source = SourceRegistry
	}
	return result
}

// NormalizeMessage applies the handler-specific normalization for
// deviceType to a raw message. Unregistered types fall back to identity.
func (m *Manager) NormalizeMessage(deviceType, message string) string {
	d, ok := m.registry.Lookup(deviceType)
	if !ok {
		return message
	}
	spec := m.models[NormalizeType(deviceType)]
	return d.NewHandler(m.sc, spec).NormalizeMessage(message)
}

// Context returns the scan context the manager was built with.
func (m *Manager) Context() Context {
	return m.sc
}

// Models returns the per-model expected specs.
func (m *Manager) Models() map[string]ExpectedSpec {
	return m.models
}
