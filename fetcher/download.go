package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yamihome/yami/downloader"
	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/internal/mimeext"
	"github.com/yamihome/yami/internal/progress"
	"github.com/yamihome/yami/internal/sanitize"
)

// DownloadSingle downloads the video at videoURL into folder (the working
// directory when empty) and returns the written path.
func (f *Fetcher) DownloadSingle(ctx context.Context, videoURL, folder, res string) (string, error) {
	return f.download(ctx, videoURL, folder, res, item{})
}

// item adjusts one download.
type item struct {
	// name replaces the player title in the file name when set.
	name string
	// quiet drops the progress bar; parallel workers share one terminal.
	quiet bool
}

func (f *Fetcher) download(ctx context.Context, videoURL, folder, res string, it item) (string, error) {
	log := f.logFor(ctx)

	title, streams, err := f.streams.Streams(ctx, videoURL)
	if err != nil {
		return "", err
	}
	stream, err := f.SelectStream(streams, res)
	if err != nil {
		return "", err
	}
	mediaURL, err := f.streams.ResolveURL(ctx, videoURL, stream)
	if err != nil {
		return "", fmt.Errorf("resolve stream %d: %w", stream.Itag, err)
	}

	name := title
	if it.name != "" {
		name = it.name
	}
	path := sanitize.Filename(name, mimeext.ExtFromMime(stream.MimeType))
	if folder != "" {
		path = filepath.Join(folder, path)
	}
	log.Info("Downloading video", logger.Fields{"url": videoURL, "title": title, "itag": stream.Itag, "resolution": stream.Resolution, "path": path})

	dl := f.dl
	var bar *progress.Bar
	if !it.quiet {
		bar = progress.New(f.opts.Out, fmt.Sprintf("Downloading '%s' :: %s", title, stream.Resolution))
		dl = dl.WithProgress(func(p downloader.Progress) {
			bar.Update(p.DownloadedSize, p.TotalSize)
		})
	}
	size, err := dl.Download(ctx, mediaURL, path)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return "", err
	}

	log.Info("Video downloaded", logger.Fields{"path": path, "bytes": size})
	f.printf("Downloaded: %s at %s\n", title, stream.Resolution)
	return path, nil
}

// Plexify stores the video at videoURL as folder/<title>/<title>.mp4, title
// being the Data API one, with the maxres thumbnail saved next to it as
// poster.jpg.
func (f *Fetcher) Plexify(ctx context.Context, videoURL, folder, res string) (string, error) {
	if folder == "" {
		return "", errs.ErrFolderRequired
	}
	meta, err := f.FetchMetadata(ctx, videoURL)
	if err != nil {
		return "", err
	}
	thumb, ok := meta.Thumbnails["maxres"]
	if !ok || thumb.URL == "" {
		return "", fmt.Errorf("maxres thumbnail of %q: %w", meta.Title, errs.ErrDataUnavailable)
	}

	dir := filepath.Join(folder, Sanitize(meta.Title))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create plex folder: %w", err)
	}

	poster := filepath.Join(dir, posterName)
	f.printf("Downloading thumbnail...\n")
	if _, err := f.dl.Download(ctx, thumb.URL, poster); err != nil {
		return "", fmt.Errorf("download poster: %w", err)
	}
	f.printf("Thumbnail downloaded: %s\n", poster)
	f.logFor(ctx).Debug("Poster saved", logger.Fields{"path": poster})

	// Folder and file share the metadata title even when the player's differs.
	return f.download(ctx, videoURL, dir, res, item{name: meta.Title})
}
