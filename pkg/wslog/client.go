// Package wslog reads device log streams exposed over WebSocket. One
// fetch is one bounded exchange: connect, wait briefly for a single
// message, parse its lines, surface the most recent entry by timestamp.
package wslog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultEndpoint is the status log stream path on supported firmware.
const DefaultEndpoint = "/api/v1/logs-ws/status"

// maxRetained bounds how many parsed entries a fetch keeps.
const maxRetained = 10

var (
	// ErrNoMessages indicates no usable log line arrived within the
	// receive window.
	ErrNoMessages = errors.New("no messages received from WebSocket within timeout")
)

// Entry is one parsed log line.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// linePattern matches lines like:
//
//	[2025/06/28 09:23:01] INFO: Performance settings setup completed
var linePattern = regexp.MustCompile(`^\[(\d{4}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2})\]\s+(\w+):\s+(.+)`)

// ParseLines extracts valid log entries from one WebSocket message.
// Lines that do not carry the bracketed timestamp prefix are skipped.
func ParseLines(message string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimRight(line, "\r")
		m := linePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{Timestamp: m[1], Level: m[2], Message: m[3]})
	}
	return entries
}

// Client fetches log entries from a device's WebSocket endpoint.
type Client struct {
	endpoint    string
	recvTimeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint overrides the stream path.
func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithReceiveTimeout sets how long a fetch waits for the first message.
func WithReceiveTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.recvTimeout = timeout
	}
}

// NewClient creates a WebSocket log client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    DefaultEndpoint,
		recvTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// FetchLatest connects to ip, waits up to the receive timeout for one
// message and returns the parsed entries sorted oldest-first, capped at
// the last ten. "Most recent" is decided by timestamp value, not arrival
// order. The timeout is mandatory: a silent device yields ErrNoMessages,
// never an indefinite block.
func (c *Client) FetchLatest(ctx context.Context, ip string) ([]Entry, error) {
	url := fmt.Sprintf("ws://%s%s", ip, c.endpoint)

	dialer := websocket.Dialer{HandshakeTimeout: c.recvTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(c.recvTimeout))
	_, message, err := conn.ReadMessage()
	if err != nil {
		return nil, ErrNoMessages
	}

	entries := ParseLines(string(message))
	if len(entries) == 0 {
		return nil, ErrNoMessages
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp < entries[j].Timestamp
	})
	if len(entries) > maxRetained {
		entries = entries[len(entries)-maxRetained:]
	}
	return entries, nil
}
