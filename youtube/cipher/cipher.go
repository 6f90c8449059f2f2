package cipher

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/robertkrimen/otto"

	"github.com/yamihome/yami/internal/logger"
)

const (
	userAgentValue   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
	decipherFuncName = "decipher"
	ncodeFuncName    = "ncode"

	// PlayerTTL is how long a downloaded base.js is reused.
	PlayerTTL = 10 * time.Minute
)

var playerJSURLRegex = regexp.MustCompile(`"jsUrl":"([^"]+)"`)

type playerEntry struct {
	body  string
	steps []step
	expAt time.Time
}

// Resolver finds and runs the player's transforms. It is safe for
// concurrent use.
type Resolver struct {
	HTTPClient *http.Client

	base string
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]*playerEntry

	log *logger.ComponentLogger
}

// NewResolver creates a Resolver resolving relative player URLs against
// base, normally https://www.youtube.com.
func NewResolver(httpClient *http.Client, base string) *Resolver {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Resolver{
		HTTPClient: httpClient,
		base:       strings.TrimRight(base, "/"),
		now:        time.Now,
		cache:      make(map[string]*playerEntry),
		log:        logger.WithComponent(logger.ComponentCipher),
	}
}

// PlayerURL returns the absolute base.js URL used by the watch page of videoID.
func (r *Resolver) PlayerURL(ctx context.Context, videoID string) (string, error) {
	page, err := r.get(ctx, r.base+"/watch?v="+url.QueryEscape(videoID))
	if err != nil {
		return "", newError(ErrCodePlayerJSNotFound, "failed to fetch watch page", err)
	}
	src, err := findPlayerScript(page)
	if err != nil {
		return "", newError(ErrCodePlayerJSNotFound, "could not find player js url in video page", err)
	}
	return r.absolute(src)
}

// findPlayerScript looks for the base.js script tag, then the jsUrl field.
func findPlayerScript(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", err
	}
	var src string
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("src")
		if strings.Contains(v, "/player/") && strings.HasSuffix(v, "base.js") {
			src = v
			return false
		}
		return true
	})
	if src != "" {
		return src, nil
	}
	if m := playerJSURLRegex.FindSubmatch(page); len(m) == 2 && len(m[1]) > 0 {
		return strings.ReplaceAll(string(m[1]), `\/`, `/`), nil
	}
	return "", fmt.Errorf("no base.js reference")
}

func (r *Resolver) absolute(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", newError(ErrCodePlayerJSNotFound, "malformed player js url", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	base, err := url.Parse(r.base + "/")
	if err != nil {
		return "", newError(ErrCodePlayerJSNotFound, "malformed base url", err)
	}
	return base.ResolveReference(u).String(), nil
}

// Decipher unscrambles a signature using the player at playerURL.
func (r *Resolver) Decipher(ctx context.Context, playerURL, signature string) (string, error) {
	if signature == "" {
		return "", newError(ErrCodeSignatureInvalid, "empty signature", nil)
	}
	entry, err := r.player(ctx, playerURL)
	if err != nil {
		return "", err
	}
	if len(entry.steps) > 0 {
		return apply(entry.steps, signature), nil
	}

	r.log.Debug("Transform steps not recognised, running player in otto")
	out, err := callJS(entry.body, decipherFuncName, signature)
	if err != nil {
		return "", newError(ErrCodeSignatureDecipher, "decipher function failed", err)
	}
	if out == nil {
		return "", newError(ErrCodeSignatureDecipher, "player defines no decipher function", nil)
	}
	return *out, nil
}

// DecipherN transforms the n parameter. Without an ncode function in the
// player the value is returned unchanged.
func (r *Resolver) DecipherN(ctx context.Context, playerURL, n string) (string, error) {
	entry, err := r.player(ctx, playerURL)
	if err != nil {
		return "", err
	}
	out, err := callJS(entry.body, ncodeFuncName, n)
	if err != nil {
		return "", newError(ErrCodeJSExecutionFailed, "ncode function failed", err)
	}
	if out == nil {
		return n, nil
	}
	return *out, nil
}

// callJS runs src and calls the global fn with arg. A nil result means fn
// is not defined.
func callJS(src, fn, arg string) (*string, error) {
	vm := otto.New()
	if _, err := vm.Run(src); err != nil {
		return nil, fmt.Errorf("failed to run player.js: %w", err)
	}
	f, err := vm.Get(fn)
	if err != nil || !f.IsFunction() {
		return nil, nil
	}
	v, err := f.Call(otto.NullValue(), arg)
	if err != nil {
		return nil, err
	}
	s, err := v.ToString()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// player returns the cached base.js for playerURL, downloading it when
// missing or expired.
func (r *Resolver) player(ctx context.Context, playerURL string) (*playerEntry, error) {
	r.mu.Lock()
	e, ok := r.cache[playerURL]
	r.mu.Unlock()
	if ok && r.now().Before(e.expAt) {
		return e, nil
	}

	body, err := r.get(ctx, playerURL)
	if err != nil {
		return nil, newError(ErrCodePlayerJSDownload, "failed to download player.js", err)
	}
	js := string(body)
	e = &playerEntry{body: js, steps: extractSteps(js), expAt: r.now().Add(PlayerTTL)}
	r.log.Debug("Player loaded", logger.Fields{"url": playerURL, "bytes": len(body), "steps": len(e.steps)})

	r.mu.Lock()
	r.cache[playerURL] = e
	r.mu.Unlock()
	return e, nil
}

func (r *Resolver) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgentValue)
	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
