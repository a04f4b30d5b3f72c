package device

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// DetectorFunc probes an address and reports whether it matches one
// hardware family. Implementations swallow transport errors and answer
// false rather than failing.
type DetectorFunc func(ctx context.Context, ip string, sc Context) bool

// HandlerFactory builds a handler bound to the scan context and the
// model's expected spec.
type HandlerFactory func(sc Context, spec ExpectedSpec) Handler

// Descriptor couples a device type name with its detector and handler
// factory.
type Descriptor struct {
	Type       string
	Detect     DetectorFunc
	NewHandler HandlerFactory
}

// Registry holds the supported device types in explicit detection order.
// Detection is probe-based and several families answer overlapping
// endpoints, so iteration order decides which detector claims a device:
// a more specific model must be evaluated before a more general one.
//
// The registry is populated once at startup (registration plus at most one
// Reorder call) and is read-only during a scan; no locking is needed as
// long as that discipline holds.
type Registry struct {
	descriptors []Descriptor
	byType      map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]int)}
}

// Register adds a device type in insertion order.
func (r *Registry) Register(d Descriptor) error {
	if d.Type == "" {
		return fmt.Errorf("descriptor has no type name")
	}
	if d.Detect == nil || d.NewHandler == nil {
		return fmt.Errorf("descriptor %q is missing a detector or handler factory", d.Type)
	}
	if _, dup := r.byType[d.Type]; dup {
		return fmt.Errorf("device type %q already registered", d.Type)
	}
	r.byType[d.Type] = len(r.descriptors)
	r.descriptors = append(r.descriptors, d)
	return nil
}

// Reorder moves the named types to the front of the detection order, in
// the order given; all remaining types keep their relative order after
// them. Unknown names are ignored. This is a stable partition.
func (r *Registry) Reorder(preferred []string) {
	if len(preferred) == 0 {
		return
	}

	taken := make(map[string]bool, len(preferred))
	reordered := make([]Descriptor, 0, len(r.descriptors))

	for _, name := range preferred {
		if idx, ok := r.byType[name]; ok && !taken[name] {
			reordered = append(reordered, r.descriptors[idx])
			taken[name] = true
		}
	}
	for _, d := range r.descriptors {
		if !taken[d.Type] {
			reordered = append(reordered, d)
		}
	}

	r.descriptors = reordered
	for i, d := range r.descriptors {
		r.byType[d.Type] = i
	}
}

// Descriptors returns the registered types in current detection order.
func (r *Registry) Descriptors() []Descriptor {
	return r.descriptors
}

// Lookup returns the descriptor for a type name.
func (r *Registry) Lookup(typeName string) (Descriptor, bool) {
	idx, ok := r.byType[typeName]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[idx], true
}

// Types returns the registered type names in detection order.
func (r *Registry) Types() []string {
	names := make([]string, len(r.descriptors))
	for i, d := range r.descriptors {
		names[i] = d.Type
	}
	return names
}

// typeAliases resolves vendor-reported type strings to canonical names.
// Order matters: most specific first, so "Z15j" wins over "Z15" and
// "S21 Pro" over "S21+".
var typeAliases = []struct {
	match     string
	canonical string
}{
	{"Z15j", "Z15j"},
	{"Z15", "Z15"},
	{"T21", "T21"},
	{"S21 Pro", "S21 Pro"},
	{"S21Pro", "S21 Pro"},
	{"S21+", "S21+"},
	{"S19j Pro", "S19j Pro"},
	{"DG1+", "DG1+"},
}

// modelPattern extracts a bare model number from strings like
// "Antminer S19 (...)" when no alias matches.
var modelPattern = regexp.MustCompile(`Antminer\s+([A-Z]\d+\+*)`)

// NormalizeType resolves a vendor-reported device type string, which may
// carry firmware flavor text or be a superstring of the canonical name, to
// the canonical model name used for grouping and config lookup. Unmatched
// strings are returned unchanged.
func NormalizeType(raw string) string {
	if raw == "" || raw == TypeUnknown {
		return TypeUnknown
	}

	for _, alias := range typeAliases {
		if strings.Contains(raw, alias.match) {
			return alias.canonical
		}
	}

	if m := modelPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
