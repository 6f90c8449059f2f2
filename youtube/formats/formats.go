// Package formats converts player responses into stream records and builds
// the final download URL of a chosen stream.
package formats

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/internal/mimeext"
	"github.com/yamihome/yami/types"
	"github.com/yamihome/yami/youtube/innertube"
)

var heightRe = regexp.MustCompile(`([0-9]{3,4})p`)

func parseHeight(label string) int {
	m := heightRe.FindStringSubmatch(label)
	if len(m) >= 2 {
		if v, err := strconv.Atoi(m[1]); err == nil {
			return v
		}
	}
	return 0
}

// resolution normalises a quality label to "<height>p", dropping any frame
// rate suffix ("720p60" becomes "720p").
func resolution(f innertube.Format) string {
	if h := parseHeight(f.QualityLabel); h > 0 {
		return strconv.Itoa(h) + "p"
	}
	if f.Height > 0 {
		return strconv.Itoa(f.Height) + "p"
	}
	return ""
}

// ParseStreams lists the streams of pr in API order: muxed formats first,
// then adaptive ones.
func ParseStreams(pr *innertube.PlayerResponse) []types.Stream {
	if pr == nil {
		return nil
	}
	out := make([]types.Stream, 0, len(pr.StreamingData.Formats)+len(pr.StreamingData.AdaptiveFormats))
	add := func(list []innertube.Format, progressive bool) {
		for _, f := range list {
			s := types.Stream{
				Itag:            f.Itag,
				URL:             f.URL,
				Resolution:      resolution(f),
				Container:       mimeext.Subtype(f.MimeType),
				MimeType:        f.MimeType,
				Bitrate:         f.Bitrate,
				Progressive:     progressive,
				SignatureCipher: f.SignatureCipher,
			}
			if s.SignatureCipher == "" {
				s.SignatureCipher = f.Cipher
			}
			if n, err := strconv.ParseInt(f.ContentLength, 10, 64); err == nil {
				s.Size = n
			}
			out = append(out, s)
		}
	}
	add(pr.StreamingData.Formats, true)
	add(pr.StreamingData.AdaptiveFormats, false)
	return out
}

// Decipherer runs the player's signature and n transforms.
type Decipherer interface {
	Decipher(ctx context.Context, playerURL, signature string) (string, error)
	DecipherN(ctx context.Context, playerURL, n string) (string, error)
}

// NeedsPlayer reports whether resolving s requires the player script.
func NeedsPlayer(s types.Stream) bool {
	if strings.TrimSpace(s.URL) == "" {
		return true
	}
	u, err := url.Parse(s.URL)
	return err == nil && u.Query().Get("n") != ""
}

// ResolveURL builds the downloadable URL of s. A signatureCipher is
// deciphered with d; an n parameter is transformed when d is given. d may
// be nil when NeedsPlayer(s) is false.
func ResolveURL(ctx context.Context, s types.Stream, d Decipherer, playerURL string) (string, error) {
	log := logger.WithComponent(logger.ComponentFormat)

	var (
		u   *url.URL
		err error
	)
	if strings.TrimSpace(s.URL) != "" {
		u, err = url.Parse(s.URL)
		if err != nil {
			return "", fmt.Errorf("parse stream url failed: %w", err)
		}
	} else {
		if strings.TrimSpace(s.SignatureCipher) == "" {
			return "", fmt.Errorf("stream %d has neither url nor signatureCipher", s.Itag)
		}
		if d == nil {
			return "", fmt.Errorf("stream %d needs deciphering", s.Itag)
		}
		parsed, perr := url.ParseQuery(s.SignatureCipher)
		if perr != nil {
			return "", fmt.Errorf("parse signatureCipher failed: %w", perr)
		}
		sig, sp, base := parsed.Get("s"), parsed.Get("sp"), parsed.Get("url")
		if sp == "" {
			sp = "signature"
		}
		if base == "" || sig == "" {
			return "", fmt.Errorf("signatureCipher missing signature or url")
		}
		plain, derr := d.Decipher(ctx, playerURL, sig)
		if derr != nil {
			return "", fmt.Errorf("decipher signature failed: %w", derr)
		}
		u, err = url.Parse(base)
		if err != nil {
			return "", fmt.Errorf("parse cipher url failed: %w", err)
		}
		q := u.Query()
		q.Set(sp, plain)
		u.RawQuery = q.Encode()
	}

	q := u.Query()
	if n := q.Get("n"); n != "" && d != nil {
		if out, nerr := d.DecipherN(ctx, playerURL, n); nerr == nil && out != "" {
			q.Set("n", out)
		} else if nerr != nil {
			log.Warn("n transform failed, download may be throttled", logger.Fields{"itag": s.Itag, "error": nerr.Error()})
		}
	}
	if q.Get("ratebypass") == "" {
		q.Set("ratebypass", "yes")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
