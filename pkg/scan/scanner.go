package scan

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sitewatch/sitewatch/internal/netutil"
	"github.com/sitewatch/sitewatch/pkg/device"
)

// DefaultProbePort is the TCP port probed for reachability. A connect
// success marks the host responsive regardless of HTTP semantics.
const DefaultProbePort = 80

// defaultFetchConcurrency bounds concurrent per-IP detection+fetch. The
// protocol round-trips are the bottleneck, not address-space size, so
// this is far smaller than the prober's budget.
const defaultFetchConcurrency = 10

// Scanner is the top-level orchestrator: it expands and probes each
// subsection's ranges, delegates responsive IPs to a device manager and
// assembles per-subsection and site-level results.
type Scanner struct {
	registry         *device.Registry
	prober           *netutil.Prober
	probePort        int
	fetchConcurrency int
	logger           zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithProber replaces the default reachability prober.
func WithProber(p *netutil.Prober) Option {
	return func(s *Scanner) {
		s.prober = p
	}
}

// WithProbePort sets the TCP port used for reachability probing.
func WithProbePort(port int) Option {
	return func(s *Scanner) {
		s.probePort = port
	}
}

// WithFetchConcurrency bounds concurrent per-IP detection and telemetry
// fetches.
func WithFetchConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.fetchConcurrency = n
		}
	}
}

// NewScanner creates a scanner over a populated device registry. Register
// and reorder device types before scanning begins; the registry is
// treated as read-only for the duration of a scan.
func NewScanner(registry *device.Registry, opts ...Option) *Scanner {
	s := &Scanner{
		registry:         registry,
		prober:           netutil.NewProber(),
		probePort:        DefaultProbePort,
		fetchConcurrency: defaultFetchConcurrency,
		logger:           log.With().Str("component", "scanner").Logger(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// ScanSite runs a full scan of every subsection in the config and returns
// the assembled site result. Failures below the site level are recorded
// as data, never returned as errors.
func (s *Scanner) ScanSite(ctx context.Context, cfg *SiteConfig) *SiteResult {
	started := time.Now()
	manager := device.NewManager(s.registry, cfg.Context(), cfg.ModelSpecs())

	result := &SiteResult{
		SiteID:    cfg.SiteID,
		Timestamp: started.UTC().Format(time.RFC3339),
		RawData:   make(map[string]device.TelemetryResult),
	}

	for _, sub := range cfg.Subsections {
		subResult := s.scanSubsection(ctx, manager, sub)
		result.Subsections = append(result.Subsections, subResult)
		for ip, telemetry := range subResult.Devices {
			result.RawData[ip] = telemetry
		}
	}

	result.ErrorGroups = GroupMessages(manager, result.RawData)
	result.DurationSeconds = time.Since(started).Seconds()
	s.logger.Info().Str("site", cfg.SiteID).
		Float64("duration_seconds", result.DurationSeconds).
		Int("devices", len(result.RawData)).Msg("site scan complete")
	return result
}

func (s *Scanner) scanSubsection(ctx context.Context, manager *device.Manager, sub Subsection) SubsectionResult {
	result := SubsectionResult{
		Name:           sub.Name,
		IPRanges:       sub.IPRanges,
		ExpectedMiners: sub.ExpectedMiners(),
		Devices:        make(map[string]device.TelemetryResult),
	}

	var addrs []string
	for _, spec := range sub.IPRanges {
		expanded, err := netutil.ExpandRange(spec)
		if err != nil {
			// Bad range syntax skips the range, never the subsection.
			s.logger.Warn().Str("subsection", sub.Name).Str("range", spec).
				Err(err).Msg("skipping unparseable IP range")
			continue
		}
		addrs = append(addrs, expanded...)
	}

	active := s.prober.Probe(ctx, addrs, s.probePort)
	sort.Strings(active)
	result.ActiveIPs = active

	s.logger.Info().Str("subsection", sub.Name).
		Int("expanded", len(addrs)).Int("active", len(active)).Msg("probe complete")

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.fetchConcurrency)
	)

	for _, ip := range active {
		wg.Add(1)
		sem <- struct{}{}

		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()

			telemetry := s.scanDevice(ctx, manager, ip)
			mu.Lock()
			result.Devices[ip] = telemetry
			mu.Unlock()
		}(ip)
	}
	wg.Wait()

	result.Summary = buildSummary(sub, result.Devices, manager.Models())
	return result
}

// scanDevice detects one IP's device type and fetches its telemetry. The
// detection source is preserved when the handler reports a more specific
// one than the registry default.
func (s *Scanner) scanDevice(ctx context.Context, manager *device.Manager, ip string) device.TelemetryResult {
	detection := manager.DetectDeviceType(ctx, ip)
	if detection.Type == device.TypeUnknown {
		return device.TelemetryResult{
			IP:         ip,
			Status:     device.StatusError,
			Message:    "Unknown device type",
			DeviceType: device.TypeUnknown,
			ErrorType:  "unknown_device",
		}
	}

	telemetry := manager.FetchTelemetry(ctx, ip, detection.Type)
	if telemetry.Source == "" {
		telemetry.Source = detection.Source
	}
	return telemetry
}

// buildSummary groups a subsection's devices by canonical type and builds
// the roster comparison. Errored devices count toward both actual and
// with_issues.
func buildSummary(sub Subsection, devices map[string]device.TelemetryResult, models map[string]device.ExpectedSpec) SubsectionSummary {
	summary := SubsectionSummary{
		Working:    make(map[string][]string),
		Issues:     make(map[string]map[string][]Issue),
		Comparison: make(map[string]TypeComparison),
	}

	expected := make(map[string]int)
	for _, m := range sub.Miners {
		expected[device.NormalizeType(m.Model)] += m.Quantity
	}

	actual := make(map[string]int)
	withIssues := make(map[string]int)

	ips := make([]string, 0, len(devices))
	for ip := range devices {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	for _, ip := range ips {
		telemetry := devices[ip]
		deviceType := device.NormalizeType(telemetry.DeviceType)
		actual[deviceType]++

		issues := AnalyzeIssues(telemetry, models[deviceType])
		if len(issues) == 0 {
			summary.Working[deviceType] = append(summary.Working[deviceType], ip)
			continue
		}

		withIssues[deviceType]++
		if summary.Issues[deviceType] == nil {
			summary.Issues[deviceType] = make(map[string][]Issue)
		}
		summary.Issues[deviceType][ip] = issues
	}

	for deviceType := range expected {
		summary.Comparison[deviceType] = compareType(expected[deviceType], actual[deviceType], withIssues[deviceType])
	}
	// Types found on the network but absent from the roster still get a
	// comparison row, with expected zero.
	for deviceType := range actual {
		if _, ok := summary.Comparison[deviceType]; !ok {
			summary.Comparison[deviceType] = compareType(0, actual[deviceType], withIssues[deviceType])
		}
	}

	return summary
}

func compareType(expected, actual, withIssues int) TypeComparison {
	offline := expected - actual
	if offline < 0 {
		offline = 0
	}
	return TypeComparison{
		Expected:   expected,
		Actual:     actual,
		Working:    actual - withIssues,
		WithIssues: withIssues,
		Offline:    offline,
	}
}
