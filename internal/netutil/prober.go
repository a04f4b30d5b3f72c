package netutil

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
)

// Prober checks TCP reachability of network hosts with bounded concurrency.
type Prober struct {
	timeout     time.Duration
	concurrency int
}

// ProberOption configures a Prober.
type ProberOption func(*Prober)

// WithProbeTimeout sets the timeout for each connection attempt.
func WithProbeTimeout(timeout time.Duration) ProberOption {
	return func(p *Prober) {
		p.timeout = timeout
	}
}

// WithProbeConcurrency sets the maximum number of concurrent probes.
func WithProbeConcurrency(concurrency int) ProberOption {
	return func(p *Prober) {
		p.concurrency = concurrency
	}
}

// NewProber creates a new reachability prober.
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		timeout:     2 * time.Second,
		concurrency: 50,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// IsReachable reports whether a TCP connection to host:port succeeds.
// Any socket error (timeout, refusal, unreachable) counts as not reachable.
func (p *Prober) IsReachable(ctx context.Context, host string, port int) bool {
	dialer := &net.Dialer{Timeout: p.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Probe checks every address and returns the responsive subset.
// Per-address failures are swallowed; one dead host never aborts the batch.
// Result order follows probe completion, not input order.
func (p *Prober) Probe(ctx context.Context, addrs []string, port int) []string {
	if len(addrs) == 0 {
		return nil
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		sem        = make(chan struct{}, p.concurrency)
		responsive []string
	)

probeLoop:
	for _, addr := range addrs {
		select {
		case <-ctx.Done():
			break probeLoop
		default:
		}

		wg.Add(1)
		sem <- struct{}{}

		go func(host string) {
			defer wg.Done()
			defer func() { <-sem }()

			if p.IsReachable(ctx, host, port) {
				mu.Lock()
				responsive = append(responsive, host)
				mu.Unlock()
			}
		}(addr)
	}

	wg.Wait()
	return responsive
}
