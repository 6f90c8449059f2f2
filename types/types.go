// Package types holds the records shared between the YouTube clients and the fetcher.
package types

// Stream describes one entry of a video's stream catalog.
type Stream struct {
	Itag            int
	URL             string
	Resolution      string // quality label, e.g. "720p"
	Container       string // MIME subtype, e.g. "mp4"
	MimeType        string
	Bitrate         int
	Size            int64
	Progressive     bool // muxed audio+video
	SignatureCipher string
}

// Thumbnail is a single poster/preview image variant.
type Thumbnail struct {
	URL    string
	Width  int
	Height int
}

// VideoMeta is the subset of video snippet metadata the fetcher needs.
type VideoMeta struct {
	ID          string
	Title       string
	Description string
	ChannelID   string
	Channel     string
	PublishedAt string
	Thumbnails  map[string]Thumbnail // keyed by size name: default, medium, high, standard, maxres
}

// PlaylistMeta describes a playlist.
type PlaylistMeta struct {
	ID          string
	Title       string
	Description string
	Channel     string
	ItemCount   int
}

// PlaylistItem is a playlist member in playlist-declared order.
type PlaylistItem struct {
	VideoID string
	Title   string
	Index   int
}
