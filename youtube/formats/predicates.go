package formats

import (
	"strings"

	"github.com/yamihome/yami/types"
)

// Predicate filters streams.
type Predicate func(types.Stream) bool

// Progressive keeps muxed audio+video streams.
func Progressive() Predicate {
	return func(s types.Stream) bool { return s.Progressive }
}

// Container keeps streams whose MIME subtype is ext; case-insensitive and
// a leading dot is ignored. An empty ext keeps everything.
func Container(ext string) Predicate {
	want := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	return func(s types.Stream) bool {
		return want == "" || strings.ToLower(s.Container) == want
	}
}

// Resolution keeps streams whose resolution equals res exactly.
func Resolution(res string) Predicate {
	return func(s types.Stream) bool { return s.Resolution == res }
}

// Filter returns the streams matching every predicate, in order.
func Filter(streams []types.Stream, preds ...Predicate) []types.Stream {
	var out []types.Stream
	for _, s := range streams {
		if matchAll(s, preds) {
			out = append(out, s)
		}
	}
	return out
}

// First returns the first stream matching every predicate.
func First(streams []types.Stream, preds ...Predicate) (types.Stream, bool) {
	for _, s := range streams {
		if matchAll(s, preds) {
			return s, true
		}
	}
	return types.Stream{}, false
}

func matchAll(s types.Stream, preds []Predicate) bool {
	for _, p := range preds {
		if !p(s) {
			return false
		}
	}
	return true
}
