// Package fetcher downloads videos, playlists and Plex-style folders from
// YouTube URLs. Metadata comes from the Data API, streams from the player
// catalog, bytes from the downloader.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/yamihome/yami/downloader"
	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/internal/mimeext"
	"github.com/yamihome/yami/internal/sanitize"
	"github.com/yamihome/yami/types"
	"github.com/yamihome/yami/youtube"
	"github.com/yamihome/yami/youtube/formats"
)

const (
	DefaultResolution  = "1080p"
	FallbackResolution = "720p"
	DefaultContainer   = "mp4"

	posterName = "poster." + mimeext.ExtJPEG
)

// MetadataSource answers metadata queries; *dataapi.Client implements it.
type MetadataSource interface {
	Video(ctx context.Context, videoID string) (types.VideoMeta, error)
	Playlist(ctx context.Context, playlistID string) (types.PlaylistMeta, error)
	PlaylistItems(ctx context.Context, playlistID string) ([]types.PlaylistItem, error)
}

// StreamSource lists and resolves streams; *youtube.Catalog implements it.
type StreamSource interface {
	Streams(ctx context.Context, videoURL string) (string, []types.Stream, error)
	ResolveURL(ctx context.Context, videoURL string, s types.Stream) (string, error)
}

// Options tune a Fetcher. Zero values use the package defaults.
type Options struct {
	DefaultResolution  string
	FallbackResolution string
	Container          string
	// Concurrency bounds parallel playlist downloads; below 2 is sequential.
	Concurrency int
	// Out receives progress bars and status lines; nil means os.Stdout.
	Out io.Writer
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	meta    MetadataSource
	streams StreamSource
	dl      *downloader.Downloader
	opts    Options
	log     *logger.ComponentLogger
}

// New creates a Fetcher.
func New(meta MetadataSource, streams StreamSource, dl *downloader.Downloader, opts Options) *Fetcher {
	if opts.DefaultResolution == "" {
		opts.DefaultResolution = DefaultResolution
	}
	if opts.FallbackResolution == "" {
		opts.FallbackResolution = FallbackResolution
	}
	if opts.Container == "" {
		opts.Container = DefaultContainer
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	opts.Out = &syncWriter{w: opts.Out}
	if dl == nil {
		dl = downloader.New(nil, nil, downloader.DefaultRetryPolicy())
	}
	return &Fetcher{
		meta:    meta,
		streams: streams,
		dl:      dl,
		opts:    opts,
		log:     logger.WithComponent(logger.ComponentFetcher),
	}
}

// Sanitize replaces every character in \ / : * ? " < > | with an underscore.
func Sanitize(title string) string {
	return sanitize.Sanitize(title)
}

// FetchMetadata returns the snippet of the video at videoURL.
func (f *Fetcher) FetchMetadata(ctx context.Context, videoURL string) (types.VideoMeta, error) {
	id, err := youtube.ParseVideoID(videoURL)
	if err != nil {
		return types.VideoMeta{}, err
	}
	return f.meta.Video(ctx, id)
}

// PlaylistTitle returns the localized title of the playlist at playlistURL.
func (f *Fetcher) PlaylistTitle(ctx context.Context, playlistURL string) (string, error) {
	id, err := youtube.ParsePlaylistID(playlistURL)
	if err != nil {
		return "", err
	}
	meta, err := f.meta.Playlist(ctx, id)
	if err != nil {
		return "", err
	}
	return meta.Title, nil
}

// SelectStream returns the first progressive stream in the configured
// container at res, else at the fallback resolution. Neither yields
// errs.ErrNoStream.
func (f *Fetcher) SelectStream(streams []types.Stream, res string) (types.Stream, error) {
	if res == "" {
		res = f.opts.DefaultResolution
	}
	if s, ok := formats.First(streams, formats.Progressive(), formats.Container(f.opts.Container), formats.Resolution(res)); ok {
		return s, nil
	}
	fallback := f.opts.FallbackResolution
	f.log.Warn("Resolution not available, downgrading", logger.Fields{"requested": res, "fallback": fallback})
	f.printf("Video with resolution '%s' not available. Downloading with fallback resolution: %s.\n", res, fallback)
	if s, ok := formats.First(streams, formats.Progressive(), formats.Container(f.opts.Container), formats.Resolution(fallback)); ok {
		return s, nil
	}
	return types.Stream{}, fmt.Errorf("%w (wanted %s or %s)", errs.ErrNoStream, res, fallback)
}

func (f *Fetcher) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(f.opts.Out, format, args...)
}

// syncWriter serializes status lines written by playlist workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
