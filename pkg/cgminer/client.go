// Package cgminer implements the raw-socket JSON command API spoken by
// miner control boards on TCP port 4028. A session is one exchange: send
// a {"command": ...} envelope, read until the device closes the
// connection, repair known vendor malformations, parse.
package cgminer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"
)

// DefaultPort is the conventional cgminer API port.
const DefaultPort = 4028

var (
	// ErrTimeout indicates the device did not answer in time.
	ErrTimeout = errors.New("connection timed out")

	// ErrRefused indicates the device does not expose the socket API.
	ErrRefused = errors.New("connection refused")

	// ErrInvalidJSON indicates the response stayed unparseable even
	// after repair.
	ErrInvalidJSON = errors.New("invalid JSON response")
)

// Client issues commands against the socket API of miner control boards.
type Client struct {
	port    int
	timeout time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithPort sets the API port.
func WithPort(port int) ClientOption {
	return func(c *Client) {
		c.port = port
	}
}

// WithTimeout sets the connect and read timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// NewClient creates a socket API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		port:    DefaultPort,
		timeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// commandEnvelope is the request wire format.
type commandEnvelope struct {
	Command string `json:"command"`
}

// Command sends one command to ip and returns the raw, repaired response
// bytes. The device signals end-of-response by closing the connection.
func (c *Client) Command(ctx context.Context, ip, command string) ([]byte, error) {
	dialer := &net.Dialer{Timeout: c.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, c.port))
	if err != nil {
		return nil, classifyDialError(err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(c.timeout))

	payload, err := json.Marshal(commandEnvelope{Command: command})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	var response []byte
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		response = append(response, buf[:n]...)
		if err != nil {
			break
		}
	}

	// Firmware pads responses with NUL bytes, some with a stray '%'.
	cleaned := strings.TrimRight(string(response), "\x00")
	cleaned = strings.TrimRight(cleaned, "%")
	if cleaned == "" {
		return nil, ErrTimeout
	}

	return []byte(RepairJSON(cleaned)), nil
}

// Stats sends the "stats" command and parses the reply.
func (c *Client) Stats(ctx context.Context, ip string) (*StatsReply, error) {
	raw, err := c.Command(ctx, ip, "stats")
	if err != nil {
		return nil, err
	}

	var reply StatsReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return &reply, nil
}

// malformedBoundary matches adjacent JSON objects missing the separating
// comma, the malformation some firmware (Z15j) produces inside the STATS
// array: ..."Type":"Antminer Z15j"}{"STATS":0,...
var malformedBoundary = regexp.MustCompile(`\}\{`)

// RepairJSON fixes the known vendor malformation of concatenated objects
// without a separating comma. Well-formed input is returned unchanged, so
// the transform is idempotent.
func RepairJSON(s string) string {
	if json.Valid([]byte(s)) {
		return s
	}
	return malformedBoundary.ReplaceAllString(s, "},{")
}

func classifyDialError(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ErrTimeout
	}
	if strings.Contains(err.Error(), "connection refused") {
		return ErrRefused
	}
	return err
}
