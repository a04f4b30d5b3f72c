package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubDescriptor(name string, matches bool) Descriptor {
	return Descriptor{
		Type: name,
		Detect: func(ctx context.Context, ip string, sc Context) bool {
			return matches
		},
		NewHandler: func(sc Context, spec ExpectedSpec) Handler {
			return stubHandler{deviceType: name}
		},
	}
}

type stubHandler struct {
	IdentityNormalizer
	deviceType string
}

func (h stubHandler) Detect(ctx context.Context, ip string) bool { return true }

func (h stubHandler) FetchTelemetry(ctx context.Context, ip string) TelemetryResult {
	return TelemetryResult{IP: ip, Status: StatusSuccess, DeviceType: h.deviceType}
}

func TestRegistryRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubDescriptor("A", true)))
	assert.Error(t, r.Register(stubDescriptor("A", true)))
}

func TestRegistryRegisterInvalid(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(Descriptor{}))
	assert.Error(t, r.Register(Descriptor{Type: "A"}))
}

func TestRegistryReorderStablePartition(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"A", "B", "C", "D"} {
		require.NoError(t, r.Register(stubDescriptor(name, false)))
	}

	// Named types move to the front in the given order; the rest keep
	// their relative order. Unknown names are ignored.
	r.Reorder([]string{"C", "nonexistent", "B"})
	assert.Equal(t, []string{"C", "B", "A", "D"}, r.Types())

	// Lookup stays consistent after reordering.
	d, ok := r.Lookup("D")
	require.True(t, ok)
	assert.Equal(t, "D", d.Type)
}

// With two detectors that both match, reordering decides the winner
// deterministically.
func TestDetectionOrderDeterminism(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubDescriptor("A", true)))
	require.NoError(t, r.Register(stubDescriptor("B", true)))

	m := NewManager(r, Context{}, nil)
	assert.Equal(t, "A", m.DetectDeviceType(context.Background(), "10.0.0.1").Type)

	r.Reorder([]string{"B", "A"})
	detection := m.DetectDeviceType(context.Background(), "10.0.0.1")
	assert.Equal(t, "B", detection.Type)
	assert.Equal(t, SourceRegistry, detection.Source)
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"Antminer Z15j":            "Z15j",
		"Antminer Z15":             "Z15",
		"Antminer Z15 Pro":         "Z15",
		"Antminer T21":             "T21",
		"Antminer S21 Pro":         "S21 Pro",
		"S21Pro":                   "S21 Pro",
		"Antminer S21+":            "S21+",
		"Antminer S19j Pro":        "S19j Pro",
		"DG1+":                     "DG1+",
		"Antminer S33 (vnish 1.2)": "S33",
		"Antminer S33+":            "S33+",
		"something else":           "something else",
		"":                         TypeUnknown,
		TypeUnknown:                TypeUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeType(raw), "raw %q", raw)
	}
}
