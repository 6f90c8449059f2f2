package fetcher

import (
	"context"
	"strings"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/youtube"
)

// Request is one batch entered by the user.
type Request struct {
	// URLs is a comma-separated list.
	URLs       string
	Folder     string
	Resolution string
	Plex       bool
}

// SplitURLs splits a comma-separated list, trimming entries and dropping
// blanks.
func SplitURLs(list string) []string {
	var out []string
	for _, u := range strings.Split(list, ",") {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Process handles every URL of req in order: playlists are downloaded as a
// whole, single videos plain or Plex style. Per-URL failures are logged,
// reported and skipped; only a cancelled context or a fatal error such as
// a missing API key stops the batch.
func (f *Fetcher) Process(ctx context.Context, req Request) (Report, error) {
	res := req.Resolution
	if res == "" {
		res = f.opts.DefaultResolution
	}

	var report Report
	for i, u := range SplitURLs(req.URLs) {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		jobCtx, jobID := withJob(ctx)
		log := f.log.With(logger.Fields{"job_id": jobID, "url": u})

		var err error
		switch {
		case youtube.IsPlaylistURL(u):
			log.Info("Processing playlist")
			var pr Report
			pr, err = f.DownloadPlaylist(jobCtx, u, req.Folder, res)
			report.add(pr)
			if err != nil {
				report.Total++
				f.printf("Error downloading playlist videos: %v\n", err)
			}
		case req.Plex:
			log.Info("Processing video (plex)")
			report.Total++
			if _, err = f.Plexify(jobCtx, u, req.Folder, res); err == nil {
				report.Succeeded++
			} else {
				f.printf("Error: %v\n", err)
			}
		default:
			log.Info("Processing video")
			report.Total++
			if _, err = f.DownloadSingle(jobCtx, u, req.Folder, res); err == nil {
				report.Succeeded++
			} else {
				f.printf("Error downloading video: %v\n", err)
			}
		}

		if err != nil {
			report.Failed = append(report.Failed, Failure{URL: u, Index: i, Err: err})
			if errs.IsUserInput(err) {
				log.Warn("URL skipped", logger.Fields{"error": err.Error()})
			} else {
				log.Error("URL failed", logger.Fields{"error": err.Error()})
			}
			if errs.IsFatal(err) {
				return report, err
			}
		}
	}
	log := f.log.With(logger.Fields{"total": report.Total, "succeeded": report.Succeeded, "failed": len(report.Failed)})
	log.Info("Batch finished")
	return report, nil
}
