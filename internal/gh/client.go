package gh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gitscout/gitscout/internal/metrics"
)

const rateLimitResetHeader = "X-RateLimit-Reset"

// ClientConfig controls retry, backoff, and scan limits for the API client.
type ClientConfig struct {
	BaseURL         string
	Timeout         time.Duration
	MaxAttempts     int
	RateLimitPause  time.Duration
	BackoffBase     time.Duration
	PerPage         int
	RepoScanLimit   int
	CommitScanLimit int
}

// Response is a fully buffered API response. Non-2xx statuses are handed back
// to callers so they can decide (a 404 on a sub-resource is "no data", not an
// error).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client wraps outbound API calls with token injection, rotation on
// rate-limit responses, and bounded retry with exponential backoff on
// transport failures.
type Client struct {
	cfg    ClientConfig
	pool   *TokenPool
	http   *http.Client
	logger *zap.Logger

	// sleep is swapped out in tests to avoid real waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client over the given token pool.
func NewClient(cfg ClientConfig, pool *TokenPool, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RateLimitPause <= 0 {
		cfg.RateLimitPause = 60 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 100
	}
	if cfg.RepoScanLimit <= 0 {
		cfg.RepoScanLimit = 5
	}
	if cfg.CommitScanLimit <= 0 {
		cfg.CommitScanLimit = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		pool:   pool,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		sleep:  sleepCtx,
	}
}

// Get performs a credential-gated GET against the API. Rate-limit responses
// rotate the token pool and retry without consuming the attempt budget; only
// genuine transport failures are budget-limited.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.do(ctx, url)
		if err != nil {
			attempts++
			if attempts >= c.cfg.MaxAttempts {
				return nil, fmt.Errorf("get %s after %d attempts: %w", url, attempts, err)
			}
			backoff := c.cfg.BackoffBase << (attempts - 1)
			c.logger.Warn("request failed, backing off",
				zap.String("url", url),
				zap.Int("attempt", attempts),
				zap.Duration("backoff", backoff),
				zap.Error(err),
			)
			if serr := c.sleep(ctx, backoff); serr != nil {
				return nil, serr
			}
			continue
		}

		metrics.ObserveGitHubRequest(resp.StatusCode)

		if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
			if resetAt, ok := parseReset(resp.Header); ok {
				c.pool.MarkRateLimited(resetAt)
				continue
			}
			c.logger.Warn("rate limited without reset header, pausing",
				zap.String("url", url),
				zap.Duration("pause", c.cfg.RateLimitPause),
			)
			if serr := c.sleep(ctx, c.cfg.RateLimitPause); serr != nil {
				return nil, serr
			}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			c.logger.Warn("unexpected API status",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
			)
		}
		return resp, nil
	}
}

func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "token "+c.pool.Current())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func parseReset(h http.Header) (time.Time, bool) {
	raw := h.Get(rateLimitResetHeader)
	if raw == "" {
		return time.Time{}, false
	}
	epoch, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(epoch, 0), true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
