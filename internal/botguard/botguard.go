// Package botguard attaches an attestation token to InnerTube player
// requests. Tokens come from a user-supplied JavaScript solver and are
// cached per client identity until they expire.
package botguard

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Header carries the token on InnerTube requests.
const Header = "x-goog-ext-123-botguard"

// Mode selects when the solver runs.
type Mode int

const (
	// Off never attests.
	Off Mode = iota
	// Auto attests after a 403 and retries once.
	Auto
	// Force attests before every request.
	Force
)

func (m Mode) String() string {
	switch m {
	case Auto:
		return "auto"
	case Force:
		return "force"
	default:
		return "off"
	}
}

// ParseMode reads "off", "auto" or "force"; empty means off.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off":
		return Off, nil
	case "auto":
		return Auto, nil
	case "force":
		return Force, nil
	}
	return Off, fmt.Errorf("unknown botguard mode %q", s)
}

// Input identifies the client the token is minted for.
type Input struct {
	UserAgent     string `json:"userAgent"`
	PageURL       string `json:"pageUrl"`
	ClientName    string `json:"clientName"`
	ClientVersion string `json:"clientVersion"`
	VisitorID     string `json:"visitorId"`
}

// Key is the cache key for in.
func (in Input) Key() string {
	return strings.Join([]string{in.UserAgent, in.ClientName, in.ClientVersion, in.VisitorID}, "|")
}

// Output is a minted token. A zero ExpiresAt never expires.
type Output struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether o is no longer usable at now.
func (o Output) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

// Solver mints tokens.
type Solver interface {
	Attest(ctx context.Context, in Input) (Output, error)
}

// Cache stores tokens by Input.Key.
type Cache interface {
	Get(key string) (Output, bool)
	Set(key string, value Output)
}
