package innertube

import (
	"errors"
	"net/http"
	"time"

	"github.com/yamihome/yami/internal/botguard"
	"github.com/yamihome/yami/internal/logger"
)

// send performs req. Force mode attaches a token before the first attempt;
// Auto and Force answer a 403 with one fresh attestation and a retry.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	a := c.attest
	if a.solver == nil || a.mode == botguard.Off {
		return c.HTTPClient.Do(req)
	}
	if a.mode == botguard.Force {
		if err := c.attach(req, false); err != nil {
			c.log.Warn("Botguard preflight failed", logger.Fields{"error": err.Error()})
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil || resp.StatusCode != http.StatusForbidden {
		return resp, err
	}
	c.log.Info("Player request forbidden, attesting and retrying")
	if err := c.attach(req, true); err != nil {
		c.log.Warn("Botguard attestation failed", logger.Fields{"error": err.Error()})
		return resp, nil
	}
	_ = resp.Body.Close()

	again := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		again.Body = body
	}
	return c.HTTPClient.Do(again)
}

// attach sets the attestation header, reusing a cached token unless fresh.
func (c *Client) attach(req *http.Request, fresh bool) error {
	c.mu.Lock()
	in := botguard.Input{
		UserAgent:     req.Header.Get("User-Agent"),
		PageURL:       c.base + "/",
		ClientName:    c.clientName,
		ClientVersion: c.version,
		VisitorID:     req.Header.Get("X-Goog-Visitor-Id"),
	}
	c.mu.Unlock()

	a, key := c.attest, in.Key()
	if a.cache != nil && !fresh {
		if cached, ok := a.cache.Get(key); ok && cached.Token != "" {
			c.log.Debug("Botguard cache hit")
			req.Header.Set(botguard.Header, cached.Token)
			return nil
		}
	}

	out, err := a.solver.Attest(req.Context(), in)
	switch {
	case err != nil:
		return err
	case out.Token == "":
		return errors.New("botguard: empty token")
	}
	if out.ExpiresAt.IsZero() && a.ttl > 0 {
		out.ExpiresAt = time.Now().Add(a.ttl)
	}
	req.Header.Set(botguard.Header, out.Token)
	if a.cache != nil {
		a.cache.Set(key, out)
	}
	return nil
}
