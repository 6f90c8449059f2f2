package innertube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/yamihome/yami/internal/logger"
)

const (
	fallbackVersion = "2.20250312.04.00"
	visitorTTL      = 10 * time.Hour
	ytcfgCall       = "\nytcfg.set("
)

var (
	keyPattern     = regexp.MustCompile(`"INNERTUBE_API_KEY":"([^"]+)"`)
	versionPattern = regexp.MustCompile(`"INNERTUBE_CLIENT_VERSION":"([^"]+)"`)
)

// credentials returns the API key and client version, scraping the watch
// page and then the home page for whichever is still unknown.
func (c *Client) credentials(ctx context.Context, videoID string) (key, version string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pages := []string{c.base + "/watch?v=" + videoID, c.base + "/"}
	for _, page := range pages {
		if c.key != "" && c.version != "" {
			break
		}
		html, err := c.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return "", "", ctx.Err()
			}
			c.log.Debug("Key source unavailable", logger.Fields{"url": page, "error": err.Error()})
			continue
		}
		fill(&c.key, keyPattern, html)
		fill(&c.version, versionPattern, html)
	}

	if c.key == "" {
		return "", "", errors.New("innertube: api key not found")
	}
	if c.version == "" {
		c.version = fallbackVersion
	}
	return c.key, c.version, nil
}

// fill sets *dst from the first capture of re when *dst is empty.
func fill(dst *string, re *regexp.Regexp, html []byte) {
	if *dst != "" {
		return
	}
	if m := re.FindSubmatch(html); m != nil {
		*dst = string(m[1])
	}
}

func (c *Client) fetchPage(ctx context.Context, page string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page, nil)
	if err != nil {
		return nil, err
	}
	setHeaders(req, map[string]string{
		"User-Agent":      browserUA,
		"Accept":          "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Accept-Encoding": "identity",
	})
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: HTTP %d", page, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// visitorID returns the visitorData from the home page ytcfg, cached for
// visitorTTL.
func (c *Client) visitorID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visitor != "" && time.Since(c.seen) < visitorTTL {
		return c.visitor, nil
	}

	html, err := c.fetchPage(ctx, c.base+"/")
	if err != nil {
		return "", err
	}
	_, cfg, ok := strings.Cut(string(html), ytcfgCall)
	if !ok {
		return "", errors.New("innertube: no ytcfg on home page")
	}
	var ytcfg struct {
		Context struct {
			Client struct {
				VisitorData string `json:"visitorData"`
			} `json:"client"`
		} `json:"INNERTUBE_CONTEXT"`
	}
	if err := json.NewDecoder(strings.NewReader(cfg)).Decode(&ytcfg); err != nil {
		return "", fmt.Errorf("innertube: decode ytcfg: %w", err)
	}
	c.visitor = strings.ReplaceAll(ytcfg.Context.Client.VisitorData, "%3D", "=")
	c.seen = time.Now()
	return c.visitor, nil
}

func setHeaders(req *http.Request, headers map[string]string) {
	for k, v := range headers {
		req.Header.Set(k, v)
	}
}
