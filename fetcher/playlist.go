package fetcher

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/youtube"
)

const watchURL = "https://www.youtube.com/watch?v="

// Failure records one URL that could not be fetched. Index is the position
// in the playlist, or in the batch for URLs given directly.
type Failure struct {
	URL   string
	Index int
	Err   error
}

// Report summarises a batch of downloads.
type Report struct {
	Total     int
	Succeeded int
	Failed    []Failure
}

func (r *Report) add(o Report) {
	r.Total += o.Total
	r.Succeeded += o.Succeeded
	r.Failed = append(r.Failed, o.Failed...)
}

// DownloadPlaylist downloads every member of the playlist at playlistURL
// into folder, which defaults to the sanitized playlist title. A failing
// member is recorded in the report and never stops the others; only a
// failure to read the playlist itself is returned as an error.
func (f *Fetcher) DownloadPlaylist(ctx context.Context, playlistURL, folder, res string) (Report, error) {
	log := f.logFor(ctx)

	id, err := youtube.ParsePlaylistID(playlistURL)
	if err != nil {
		return Report{}, err
	}
	meta, err := f.meta.Playlist(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("playlist title: %w", err)
	}
	f.printf("Playlist Title: %s\n", meta.Title)

	if folder == "" {
		folder = Sanitize(meta.Title)
	}
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return Report{}, fmt.Errorf("create playlist folder: %w", err)
	}

	items, err := f.meta.PlaylistItems(ctx, id)
	if err != nil {
		return Report{}, fmt.Errorf("playlist items: %w", err)
	}
	log.Info("Playlist resolved", logger.Fields{"playlist_id": id, "title": meta.Title, "items": len(items), "folder": folder})

	urls := make([]string, len(items))
	for i, it := range items {
		urls[i] = watchURL + it.VideoID
	}
	return f.downloadAll(ctx, urls, folder, res), nil
}

// downloadAll downloads urls with at most f.opts.Concurrency transfers in
// flight. Progress bars are only drawn when downloads run one at a time.
func (f *Fetcher) downloadAll(ctx context.Context, urls []string, folder, res string) Report {
	report := Report{Total: len(urls)}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan int)
	)
	workers := f.opts.Concurrency
	if workers > len(urls) {
		workers = len(urls)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				jobCtx, _ := withJob(ctx)
				_, err := f.download(jobCtx, urls[i], folder, res, item{quiet: workers > 1})
				mu.Lock()
				if err != nil {
					report.Failed = append(report.Failed, Failure{URL: urls[i], Index: i, Err: err})
				} else {
					report.Succeeded++
				}
				mu.Unlock()
				if err != nil {
					f.logFor(jobCtx).Error("Playlist item failed", logger.Fields{"url": urls[i], "index": i, "error": err.Error()})
					f.printf("Error downloading video: %v\n", err)
				}
			}
		}()
	}

feed:
	for i := range urls {
		select {
		case jobs <- i:
		case <-ctx.Done():
			mu.Lock()
			for j := i; j < len(urls); j++ {
				report.Failed = append(report.Failed, Failure{URL: urls[j], Index: j, Err: ctx.Err()})
			}
			mu.Unlock()
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Slice(report.Failed, func(a, b int) bool { return report.Failed[a].Index < report.Failed[b].Index })
	return report
}
