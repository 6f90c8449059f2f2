package sanitize

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxFilenameLength is the maximum allowed length in bytes for the filename base.
	MaxFilenameLength = 200
	// DefaultExt is the default extension used when none is provided.
	DefaultExt = "mp4"
	// DefaultName is the replacement name when the title is empty.
	DefaultName = "video"
	// Replacement substitutes every unsafe character.
	Replacement = "_"
)

// UnsafeChars are the characters rejected by common filesystems.
const UnsafeChars = `\/:*?"<>|`

var replacer = strings.NewReplacer(
	`\`, Replacement,
	`/`, Replacement,
	`:`, Replacement,
	`*`, Replacement,
	`?`, Replacement,
	`"`, Replacement,
	`<`, Replacement,
	`>`, Replacement,
	`|`, Replacement,
)

// Sanitize replaces each filesystem-unsafe character in title with an underscore.
func Sanitize(title string) string {
	return replacer.Replace(title)
}

// Filename builds the on-disk name for a video title and extension (without dot).
func Filename(title, ext string) string {
	name := Sanitize(title)
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	name = truncate(name, MaxFilenameLength)
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = DefaultExt
	}
	return name + "." + ext
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
