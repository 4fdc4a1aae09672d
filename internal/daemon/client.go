package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/Aman-CERP/wordindex/internal/errors"
	"github.com/Aman-CERP/wordindex/internal/store"
)

// Client talks to a running daemon over its Unix socket.
type Client struct {
	socketPath string
	timeout    time.Duration
	requestID  atomic.Uint64
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, errors.New(errors.ErrCodeDaemonUnavailable, "daemon is not running", err).
			WithDetail("socket", c.socketPath).
			WithSuggestion("Start it with 'wordindex serve'")
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// WaitReady pings the daemon with backoff until it answers.
func (c *Client) WaitReady(ctx context.Context, cfg errors.RetryConfig) error {
	return errors.Retry(ctx, cfg, func() error {
		return c.Ping(ctx)
	})
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var pong PingResult
	return c.call(ctx, MethodPing, nil, &pong)
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Search returns the files containing word.
func (c *Client) Search(ctx context.Context, word string) (*SearchResult, error) {
	params := SearchParams{Word: word}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	var result SearchResult
	if err := c.call(ctx, MethodSearch, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Files lists every known file with its state.
func (c *Client) Files(ctx context.Context) ([]store.FileStatistics, error) {
	var files []store.FileStatistics
	err := c.call(ctx, MethodFiles, nil, &files)
	return files, err
}

// Words lists every indexed word.
func (c *Client) Words(ctx context.Context) ([]string, error) {
	var words []string
	err := c.call(ctx, MethodWords, nil, &words)
	return words, err
}

// Stats returns index counters.
func (c *Client) Stats(ctx context.Context) (*store.Statistics, error) {
	var stats store.Statistics
	if err := c.call(ctx, MethodStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Add registers a root and returns the resulting root list.
func (c *Client) Add(ctx context.Context, path string) ([]string, error) {
	var roots []string
	err := c.call(ctx, MethodAdd, RootParams{Path: path}, &roots)
	return roots, err
}

// Remove unregisters a root and returns the resulting root list.
func (c *Client) Remove(ctx context.Context, path string) ([]string, error) {
	var roots []string
	err := c.call(ctx, MethodRemove, RootParams{Path: path}, &roots)
	return roots, err
}

// call performs one request on a fresh connection.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	req, err := NewRequest(c.nextID(), method, params)
	if err != nil {
		return err
	}

	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	// Set deadline from context or timeout
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return errors.New(errors.ErrCodeDaemonTimeout, method+" timed out", err)
		}
		return fmt.Errorf("failed to receive response: %w", err)
	}

	if resp.Error != nil {
		code := resp.Error.Data
		if code == "" {
			code = errors.ErrCodeInternal
		}
		return errors.New(code, resp.Error.Message, nil).WithDetail("method", method)
	}

	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}

// nextID generates a unique request ID.
func (c *Client) nextID() string {
	id := c.requestID.Add(1)
	return fmt.Sprintf("req-%d", id)
}
