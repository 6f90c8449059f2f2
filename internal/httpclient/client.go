// Package httpclient builds the HTTP client shared by the YouTube clients.
// It sets a desktop User-Agent, can route through a proxy and retries
// idempotent requests a few times.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// UserAgent is sent when a request carries none.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

const (
	defaultTimeout = 30 * time.Second
	defaultRetries = 2
	firstPause     = 200 * time.Millisecond
	pauseCap       = 3 * time.Second
)

// Config holds optional client parameters. Zero values use defaults and a
// negative Retries disables retrying.
type Config struct {
	Timeout   time.Duration
	Retries   int
	UserAgent string
	ProxyURL  string
}

// Client sends requests with a default User-Agent and retries GETs that
// fail with a network error or a 5xx status.
type Client struct {
	HTTPClient *http.Client
	Retries    int
	UserAgent  string

	pause time.Duration
}

// New creates a client from cfg. A malformed proxy URL is an error.
func New(cfg Config) (*Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConnsPerHost = 10
	tr.ResponseHeaderTimeout = 15 * time.Second
	if cfg.ProxyURL != "" {
		proxy, err := url.Parse(cfg.ProxyURL)
		if err != nil || proxy.Scheme == "" || proxy.Host == "" {
			return nil, fmt.Errorf("httpclient: invalid proxy URL %q", cfg.ProxyURL)
		}
		tr.Proxy = http.ProxyURL(proxy)
	}

	c := &Client{
		HTTPClient: &http.Client{Timeout: or(cfg.Timeout, defaultTimeout), Transport: tr},
		Retries:    cfg.Retries,
		UserAgent:  or(cfg.UserAgent, UserAgent),
		pause:      firstPause,
	}
	switch {
	case c.Retries < 0:
		c.Retries = 0
	case c.Retries == 0:
		c.Retries = defaultRetries
	}
	return c, nil
}

func or[T comparable](v, fallback T) T {
	var zero T
	if v == zero {
		return fallback
	}
	return v
}

// Wrap adapts an existing http.Client, typically a test server's.
func Wrap(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{HTTPClient: hc, Retries: defaultRetries, UserAgent: UserAgent, pause: time.Millisecond}
}

// Do sends req and returns the last response or error.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	retries := 0
	if req.Method == http.MethodGet {
		retries = c.Retries
	}

	pause := c.pause
	for try := 0; ; try++ {
		resp, err := c.HTTPClient.Do(req)
		if (err == nil && resp.StatusCode < http.StatusInternalServerError) || try == retries {
			return resp, err
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		if err := sleep(req.Context(), pause); err != nil {
			return nil, err
		}
		pause = min(2*pause, pauseCap)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
