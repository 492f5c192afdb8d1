package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Non-retryable failures. The resource is absent or forbidden; retrying cannot
// help, so these surface to the caller after a single attempt.
var (
	ErrNotFound  = errors.New("resource not found")
	ErrForbidden = errors.New("resource forbidden")
)

const (
	maxBodyBytes      = 4 << 20
	defaultRetryAfter = 60 * time.Second
	maxRetryAfter     = 120 * time.Second
	maxBackoff        = 30 * time.Second
)

// Options configures a Client.
type Options struct {
	Concurrency int           // max in-flight requests (default 4)
	Retries     int           // max retry count for transient failures (default 3)
	Timeout     time.Duration // per-request timeout (default 20s)
	MinDelay    time.Duration // minimum spacing between dispatches (default 500ms)
	MaxDelay    time.Duration // maximum randomized spacing (default 1500ms)
	UserAgent   string
}

// Client is a concurrency-bounded, throttled, retrying HTTP accessor.
//
// In-flight requests are bounded by a weighted semaphore; waiters are admitted
// FIFO. Successive dispatches are additionally spaced by a randomized delay in
// [MinDelay, MaxDelay], tracked per client instance so multiple clients
// throttle independently.
type Client struct {
	http      *http.Client
	gate      *semaphore.Weighted
	floor     *rate.Limiter
	retries   int
	minDelay  time.Duration
	maxDelay  time.Duration
	userAgent string

	mu           sync.Mutex
	lastDispatch time.Time
}

// Result is the per-address outcome of a batch fetch.
type Result struct {
	Body string
	Err  error
}

// New creates a Client. Zero-valued options fall back to defaults.
func New(opts Options) *Client {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	} else if opts.Retries == 0 {
		opts.Retries = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 500 * time.Millisecond
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; tubewatch/1.0)"
	}

	return &Client{
		http:      &http.Client{Timeout: opts.Timeout},
		gate:      semaphore.NewWeighted(int64(opts.Concurrency)),
		floor:     rate.NewLimiter(rate.Every(opts.MinDelay), 1),
		retries:   opts.Retries,
		minDelay:  opts.MinDelay,
		maxDelay:  opts.MaxDelay,
		userAgent: opts.UserAgent,
	}
}

// Fetch retrieves a single document. Transient failures (timeouts, connection
// errors, 5xx) are retried with exponential backoff up to the configured retry
// count; 429 sleeps for the server-suggested interval and re-attempts without
// consuming a retry slot; 403/404 fail immediately.
func (c *Client) Fetch(ctx context.Context, addr string) (string, error) {
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.gate.Release(1)

	var lastErr error
	for attempt := 0; attempt <= c.retries; {
		if err := c.throttle(ctx); err != nil {
			return "", err
		}

		body, retryAfter, err := c.do(ctx, addr)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if retryAfter > 0 {
			// Rate limited. Wait out the cooldown; this is not a retry.
			if err := sleep(ctx, retryAfter); err != nil {
				return "", err
			}
			continue
		}

		lastErr = err
		if attempt < c.retries {
			backoff := min(time.Second<<attempt, maxBackoff)
			if err := sleep(ctx, backoff); err != nil {
				return "", err
			}
		}
		attempt++
	}

	return "", fmt.Errorf("fetch %s: %w", addr, lastErr)
}

// FetchAll retrieves many addresses concurrently (bounded by the admission
// gate) and returns a per-address outcome. A failed address never fails the
// batch.
func (c *Client) FetchAll(ctx context.Context, addrs []string) map[string]Result {
	results := make(map[string]Result, len(addrs))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, addr := range addrs {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			body, err := c.Fetch(ctx, addr)
			mu.Lock()
			results[addr] = Result{Body: body, Err: err}
			mu.Unlock()
		}(addr)
	}
	wg.Wait()

	return results
}

// throttle enforces the randomized minimum spacing between dispatches. The
// rate limiter provides the hard MinDelay floor; the jitter above it is
// tracked against the last dispatch time owned by this client instance.
func (c *Client) throttle(ctx context.Context) error {
	if err := c.floor.Wait(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	spacing := c.minDelay
	if c.maxDelay > c.minDelay {
		spacing += rand.N(c.maxDelay - c.minDelay + 1)
	}
	wait := spacing - time.Since(c.lastDispatch)
	c.mu.Unlock()

	if wait > 0 {
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.lastDispatch = time.Now()
	c.mu.Unlock()
	return nil
}

// do performs one HTTP attempt. A positive retryAfter means the server rate
// limited us and suggested (or defaulted to) a cooldown.
func (c *Client) do(ctx context.Context, addr string) (body string, retryAfter time.Duration, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		b, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if readErr != nil {
			return "", 0, fmt.Errorf("read body: %w", readErr)
		}
		return string(b), 0, nil
	case http.StatusNotFound:
		return "", 0, fmt.Errorf("%s: %w", addr, ErrNotFound)
	case http.StatusForbidden:
		return "", 0, fmt.Errorf("%s: %w", addr, ErrForbidden)
	case http.StatusTooManyRequests:
		return "", parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("rate limited (HTTP 429)")
	default:
		return "", 0, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
}

func parseRetryAfter(header string) time.Duration {
	if header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return min(time.Duration(seconds)*time.Second, maxRetryAfter)
		}
	}
	return defaultRetryAfter
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
