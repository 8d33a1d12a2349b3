// Package fetch performs upstream JSON requests with a per-attempt timeout
// and exponential backoff between failed attempts.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/quakewatch-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// maxErrorBody caps how much of a failed response body ends up in errors.
const maxErrorBody = 512

// Client issues GET and HEAD requests under a retry Policy.
type Client struct {
	httpClient *http.Client
	policy     Policy
	clock      clockwork.Clock
	logger     *slog.Logger
	metrics    *observability.Metrics
	endpoint   string
}

// NewClient creates a fetch client. Backoff waits run on clock.
func NewClient(policy Policy, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{},
		policy:     policy,
		clock:      clock,
		logger:     logger,
		metrics:    metrics,
		endpoint:   "default",
	}
}

// Named returns a copy of the client that labels its logs and metrics with
// endpoint.
func (c *Client) Named(endpoint string) *Client {
	cp := *c
	cp.endpoint = endpoint
	cp.logger = c.logger.With("endpoint", endpoint)
	return &cp
}

// GetJSON fetches rawURL and decodes the body into out. Network errors,
// timeouts, non-2xx statuses and undecodable bodies are retried according to
// the policy. When the context is cancelled during a backoff wait the
// remaining retries are abandoned.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	safe := redact(rawURL)
	var lastErr error
	attempts := 0
	for k := 0; k <= c.policy.MaxRetries; k++ {
		if k > 0 {
			wait := c.policy.backoff(k - 1)
			c.metrics.FetchRetries.WithLabelValues(c.endpoint).Inc()
			c.logger.Info("retrying upstream request", "url", safe, "retry", k, "backoff", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return &Error{URL: safe, Attempts: attempts, Err: err}
			}
		}

		attempts++
		lastErr = c.attempt(ctx, rawURL, out, attempts)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
	}
	return &Error{URL: safe, Attempts: attempts, Err: lastErr}
}

func (c *Client) attempt(ctx context.Context, rawURL string, out any, n int) error {
	safe := redact(rawURL)
	start := c.clock.Now()
	err := c.doGet(ctx, rawURL, out)
	elapsed := c.clock.Since(start)

	c.metrics.FetchDuration.WithLabelValues(c.endpoint).Observe(elapsed.Seconds())
	if err != nil {
		c.metrics.FetchAttempts.WithLabelValues(c.endpoint, "error").Inc()
		c.logger.Warn("upstream attempt failed", "url", safe, "attempt", n, "duration", elapsed, "error", err)
		return err
	}
	c.metrics.FetchAttempts.WithLabelValues(c.endpoint, "success").Inc()
	c.logger.Debug("upstream attempt succeeded", "url", safe, "attempt", n, "duration", elapsed)
	return nil
}

func (c *Client) doGet(ctx context.Context, rawURL string, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", redactURLError(err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get request: %w", redactURLError(err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Head issues a single HEAD request and reports whether it returned 2xx.
func (c *Client) Head(ctx context.Context, rawURL string) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", redactURLError(err))
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("head request: %w", redactURLError(err))
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.policy.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.policy.Timeout)
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
}
