// Package minerapi provides a client for the JSON api/v1 interface found
// on newer Antminer control boards, used for model detection where the
// classic CGI endpoints are absent or unreliable.
package minerapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sitewatch/sitewatch/pkg/antcgi"
)

// SummaryEndpoint reports the miner identity and aggregate state.
const SummaryEndpoint = "/api/v1/summary"

var (
	// ErrUnexpectedStatus indicates a non-200 HTTP response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")
)

// Summary is the subset of /api/v1/summary used for detection.
type Summary struct {
	Miner MinerIdentity `json:"miner"`
}

// MinerIdentity identifies the hardware behind the API.
type MinerIdentity struct {
	MinerType       string  `json:"miner_type"`
	CompileTime     string  `json:"compile_time,omitempty"`
	AverageHashrate float64 `json:"average_hashrate,omitempty"`
}

// Client performs requests against one device's api/v1 interface.
// The API shares the device's digest-auth realm with the CGI interface.
type Client struct {
	host       string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates an api/v1 client for host.
func NewClient(host string, auth *antcgi.DigestAuth, opts ...ClientOption) *Client {
	c := &Client{
		host:    host,
		baseURL: fmt.Sprintf("http://%s", host),
		httpClient: &http.Client{
			Timeout:   10 * time.Second,
			Transport: &antcgi.DigestTransport{Auth: auth},
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Host returns the device host address.
func (c *Client) Host() string {
	return c.host
}

// GetSummary fetches and decodes /api/v1/summary.
func (c *Client) GetSummary(ctx context.Context) (*Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+SummaryEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var summary Summary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &summary, nil
}
