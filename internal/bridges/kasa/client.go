package kasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

// Default connection parameters for relay communication.
const (
	// defaultTimeout bounds each request: dial, write and read together.
	defaultTimeout = 2 * time.Second
)

// ClientConfig holds relay transport configuration.
type ClientConfig struct {
	// Port is the relay TCP port.
	// Default: 9999.
	Port int

	// Timeout is the per-request deadline.
	// Default: 2 seconds.
	Timeout time.Duration
}

// ClientStats holds operational statistics.
type ClientStats struct {
	RequestsTotal uint64
	Unreachable   uint64
	Malformed     uint64
	LastActivity  time.Time
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport is the request/response exchange used by devices.
// It is satisfied by *Client and by test fakes.
type Transport interface {
	Send(ctx context.Context, host string, request []byte) ([]byte, error)
	Query(ctx context.Context, host string, request, response any) error
}

// Ensure Client implements Transport.
var _ Transport = (*Client)(nil)

// Client exchanges framed commands with relays.
//
// Every request opens its own connection: relays close the socket after
// answering, so there is nothing to pool. All methods are safe for
// concurrent use.
type Client struct {
	cfg    ClientConfig
	logger Logger

	requestsTotal atomic.Uint64
	unreachable   atomic.Uint64
	malformed     atomic.Uint64
	lastActivity  atomic.Int64
}

// NewClient creates a relay client, applying defaults for zero values.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{cfg: cfg, logger: noopLogger{}}
}

// SetLogger sets the logger used for request diagnostics.
func (c *Client) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	c.logger = logger
}

// Timeout returns the per-request deadline.
func (c *Client) Timeout() time.Duration {
	return c.cfg.Timeout
}

// Send encrypts request, writes it to host and returns the decrypted reply.
//
// host may carry an explicit port ("10.0.0.5:9999"); otherwise the
// configured port is used. Connection, write and read failures are
// reported as ErrUnreachable, framing problems as ErrMalformed.
func (c *Client) Send(ctx context.Context, host string, request []byte) ([]byte, error) {
	c.requestsTotal.Add(1)
	addr := c.address(host)

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.unreachable.Add(1)
		return nil, fmt.Errorf("%w: dial %s: %w", ErrUnreachable, addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			c.unreachable.Add(1)
			return nil, fmt.Errorf("%w: set deadline: %w", ErrUnreachable, err)
		}
	}

	if _, err := conn.Write(Encrypt(request)); err != nil {
		c.unreachable.Add(1)
		return nil, fmt.Errorf("%w: write %s: %w", ErrUnreachable, addr, err)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		c.unreachable.Add(1)
		return nil, fmt.Errorf("%w: read header from %s: %w", ErrUnreachable, addr, err)
	}
	size, err := ParseHeader(header)
	if err != nil {
		c.malformed.Add(1)
		return nil, err
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(conn, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			c.malformed.Add(1)
			return nil, fmt.Errorf("%w: truncated frame from %s: %w", ErrMalformed, addr, err)
		}
		c.unreachable.Add(1)
		return nil, fmt.Errorf("%w: read body from %s: %w", ErrUnreachable, addr, err)
	}

	c.lastActivity.Store(time.Now().Unix())
	c.logger.Debug("relay exchange", "host", addr, "request_bytes", len(request), "response_bytes", size)
	return Decrypt(body), nil
}

// Query marshals request as JSON, sends it and unmarshals the reply into response.
func (c *Client) Query(ctx context.Context, host string, request, response any) error {
	data, err := encodeRequest(request)
	if err != nil {
		return err
	}
	reply, err := c.Send(ctx, host, data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(reply, response); err != nil {
		c.malformed.Add(1)
		return fmt.Errorf("%w: decoding reply from %s: %w", ErrMalformed, host, err)
	}
	return nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() ClientStats {
	var last time.Time
	if ts := c.lastActivity.Load(); ts > 0 {
		last = time.Unix(ts, 0)
	}
	return ClientStats{
		RequestsTotal: c.requestsTotal.Load(),
		Unreachable:   c.unreachable.Load(),
		Malformed:     c.malformed.Load(),
		LastActivity:  last,
	}
}

func (c *Client) address(host string) string {
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	return net.JoinHostPort(host, strconv.Itoa(c.cfg.Port))
}
