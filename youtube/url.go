package youtube

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var videoIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the video ID from a watch, youtu.be, shorts, embed
// or live URL. A bare 11 character ID is accepted as is.
func ParseVideoID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if videoIDRe.MatchString(raw) {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse video url: %w", err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			id = v
			break
		}
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(parts) == 2 {
			switch parts[0] {
			case "shorts", "embed", "live", "v":
				id = parts[1]
			}
		}
	}
	if !videoIDRe.MatchString(id) {
		return "", fmt.Errorf("no video id in %q", raw)
	}
	return id, nil
}

// ParsePlaylistID returns the list parameter of a playlist URL, or raw
// itself when it already looks like a playlist ID.
func ParsePlaylistID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Host != "" {
		if id := u.Query().Get("list"); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("no playlist id in %q", raw)
	}
	if raw != "" && !strings.ContainsAny(raw, "/?&= ") {
		return raw, nil
	}
	return "", fmt.Errorf("no playlist id in %q", raw)
}

// IsPlaylistURL reports whether raw names a playlist. Only the word
// "playlist" counts, so a watch URL carrying a list parameter is a video.
func IsPlaylistURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), "playlist")
}
