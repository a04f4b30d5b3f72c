// Package antcgi provides an HTTP client for the CGI interface of stock
// Antminer firmware: digest-authenticated GETs against /cgi-bin endpoints.
package antcgi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CGI endpoints exposed by stock firmware.
const (
	SystemInfoEndpoint = "/cgi-bin/get_system_info.cgi"
	KernelLogEndpoint  = "/cgi-bin/get_kernel_log.cgi"
	HlogEndpoint       = "/cgi-bin/hlog.cgi"
)

// SystemInfo is the subset of get_system_info.cgi used for detection and
// reporting. The field names mirror the firmware's JSON, quirks included.
type SystemInfo struct {
	MinerType               string `json:"minertype"`
	Hostname                string `json:"hostname"`
	MACAddr                 string `json:"macaddr"`
	IPAddress               string `json:"ipaddress"`
	SystemFilesystemVersion string `json:"system_filesystem_version"`
	Algorithm               string `json:"Algorithm"`
}

// Client performs digest-authenticated requests against one device.
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

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a CGI client for host.
func NewClient(host string, auth *DigestAuth, opts ...ClientOption) *Client {
	c := &Client{
		host:    host,
		baseURL: fmt.Sprintf("http://%s", host),
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: &DigestTransport{Auth: auth},
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

// GetSystemInfo fetches and decodes get_system_info.cgi.
func (c *Client) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	body, err := c.get(ctx, SystemInfoEndpoint, nil)
	if err != nil {
		return nil, err
	}

	var info SystemInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to parse system info: %w", err)
	}
	return &info, nil
}

// GetKernelLog fetches the kernel log endpoint as raw text.
func (c *Client) GetKernelLog(ctx context.Context) (string, error) {
	body, err := c.get(ctx, KernelLogEndpoint, nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetHlog fetches the plain-text hlog endpoint. The firmware only serves
// it to XHR-looking requests, hence the extra headers.
func (c *Client) GetHlog(ctx context.Context) (string, error) {
	headers := map[string]string{
		"Accept":           "text/plain, */*; q=0.01",
		"X-Requested-With": "XMLHttpRequest",
	}
	body, err := c.get(ctx, HlogEndpoint, headers)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetIndex fetches the web interface landing page. Some families with the
// socket API disabled can only be identified by their page content.
func (c *Client) GetIndex(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d on %s", ErrUnexpectedStatus, resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
