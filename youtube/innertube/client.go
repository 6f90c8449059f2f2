// Package innertube talks to YouTube's internal player API, which lists the
// streams available for a video.
package innertube

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/yamihome/yami/internal/botguard"
	"github.com/yamihome/yami/internal/logger"
)

// DefaultBaseURL is the public YouTube origin.
const DefaultBaseURL = "https://www.youtube.com"

const browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

// profile describes how a named InnerTube client identifies itself.
type profile struct {
	code    string
	android bool
}

var profiles = map[string]profile{
	"WEB":                 {code: "1"},
	"MWEB":                {code: "2"},
	"ANDROID":             {code: "3", android: true},
	"IOS":                 {code: "5"},
	"TVHTML5":             {code: "7"},
	"WEB_EMBEDDED_PLAYER": {code: "56"},
}

// clientCodeFromName returns the X-YouTube-Client-Name value, or "" for
// clients it does not know.
func clientCodeFromName(name string) string {
	return profiles[strings.ToUpper(name)].code
}

// Client for the InnerTube player API. It is safe for concurrent use.
type Client struct {
	HTTPClient *http.Client

	base       string
	clientName string

	mu      sync.Mutex
	key     string
	version string
	visitor string
	seen    time.Time

	attest attestation

	log *logger.ComponentLogger
}

type attestation struct {
	solver botguard.Solver
	mode   botguard.Mode
	cache  botguard.Cache
	ttl    time.Duration
}

// New creates a WEB client. A nil httpClient means http.DefaultClient.
func New(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		HTTPClient: httpClient,
		base:       DefaultBaseURL,
		clientName: "WEB",
		log:        logger.WithComponent(logger.ComponentInnerTube),
	}
}

// WithBaseURL points the client at another origin.
func (c *Client) WithBaseURL(base string) *Client {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.base = base
	}
	return c
}

// WithAPIKey skips scraping the key from the watch page.
func (c *Client) WithAPIKey(key string) *Client {
	c.mu.Lock()
	c.key = strings.TrimSpace(key)
	c.mu.Unlock()
	return c
}

// WithClient overrides the client identity, which shapes the stream URLs
// returned. Blank arguments keep the current value.
func (c *Client) WithClient(name, version string) *Client {
	if name = strings.TrimSpace(name); name != "" {
		c.clientName = name
	}
	if version = strings.TrimSpace(version); version != "" {
		c.mu.Lock()
		c.version = version
		c.mu.Unlock()
	}
	return c
}

// WithBotguard configures attestation.
func (c *Client) WithBotguard(solver botguard.Solver, mode botguard.Mode, cache botguard.Cache) *Client {
	c.attest.solver, c.attest.mode, c.attest.cache = solver, mode, cache
	return c
}

// WithBotguardTTL applies when the solver returns no expiry.
func (c *Client) WithBotguardTTL(ttl time.Duration) *Client {
	c.attest.ttl = ttl
	return c
}

func (c *Client) profile() profile {
	return profiles[strings.ToUpper(c.clientName)]
}
