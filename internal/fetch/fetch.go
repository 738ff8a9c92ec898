// Package fetch retrieves raw bytes for source and article URLs with
// bounded retries and a shared wall-clock budget.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mypybite/newsriver/internal/logger"
)

// Request profiles. The default profile identifies the bot; the alternate
// one mimics a browser and is used on the last retry to route around
// simple bot-blocking.
type profile struct {
	userAgent string
	accept    string
}

var browserProfile = profile{
	userAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121 Safari/537.36",
	accept:    "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
}

// Client fetches one URL at a time. Safe for concurrent use; the
// underlying http.Client pools connections across workers.
type Client struct {
	http       *http.Client
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
	defaultUA  string
	maxBody    int64
}

// Options configure a Client.
type Options struct {
	Timeout    time.Duration
	Retries    int // retries after the first attempt
	RetryDelay time.Duration
	UserAgent  string
	MaxBody    int64 // response size cap in bytes, 0 for default
}

func NewClient(opts Options) *Client {
	maxBody := opts.MaxBody
	if maxBody == 0 {
		maxBody = 8 << 20
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 16,
			},
		},
		timeout:    opts.Timeout,
		attempts:   opts.Retries + 1,
		retryDelay: opts.RetryDelay,
		defaultUA:  opts.UserAgent,
		maxBody:    maxBody,
	}
}

// Get fetches url, retrying with a fixed-multiplier exponential backoff.
// The final attempt switches to the browser profile. ctx is the global
// budget; each attempt additionally runs under the per-request timeout.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, lastErr
			case <-time.After(delay):
			}
			delay *= 2
		}

		p := profile{userAgent: c.defaultUA}
		if attempt == c.attempts && c.attempts > 1 {
			p = browserProfile
		}

		body, err := c.do(ctx, url, p)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if attempt < c.attempts {
			logger.Debug("fetch attempt failed", "url", url, "attempt", attempt, "err", err)
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, url string, p profile) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: NetworkError, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", p.userAgent)
	if p.accept != "" {
		req.Header.Set("Accept", p.accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: Timeout, URL: url, Err: err}
		}
		return nil, &Error{Kind: NetworkError, URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &Error{Kind: HTTPError, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, &Error{Kind: Timeout, URL: url, Err: err}
		}
		return nil, &Error{Kind: NetworkError, URL: url, Err: err}
	}
	return body, nil
}
