// Package mimeext maps stream MIME types to file extensions.
package mimeext

import "strings"

// ExtJPEG is the poster image extension.
const ExtJPEG = "jpg"

const fallback = "mp4"

// known covers types whose extension differs from their subtype.
var known = map[string]string{
	"audio/mp4":  "m4a",
	"audio/webm": "webm",
	"image/jpeg": ExtJPEG,
}

func mediaType(mime string) string {
	t, _, _ := strings.Cut(mime, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// Subtype returns "mp4" for `video/mp4; codecs="avc1"`, or "" when mime has
// no subtype.
func Subtype(mime string) string {
	if _, sub, ok := strings.Cut(mediaType(mime), "/"); ok {
		return sub
	}
	return ""
}

// ExtFromMime returns the extension without a dot. Unknown or empty types
// yield mp4.
func ExtFromMime(mime string) string {
	if ext, ok := known[mediaType(mime)]; ok {
		return ext
	}
	if sub := Subtype(mime); sub != "" {
		return sub
	}
	return fallback
}
