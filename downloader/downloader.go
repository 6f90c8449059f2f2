// Package downloader streams a remote file to disk with progress reporting,
// resumption from a partial file, and a bounded retry policy for transient
// failures.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
)

const (
	partialFileSuffix   = ".part"
	copyBufferSizeBytes = 32 * 1024

	headerRange          = "Range"
	headerContentRange   = "Content-Range"
	headerUserAgent      = "User-Agent"
	headerAccept         = "Accept"
	headerAcceptEncoding = "Accept-Encoding"

	userAgentValue = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"
)

// Progress holds information about download progress.
type Progress struct {
	TotalSize      int64
	DownloadedSize int64
	Percent        float64
}

// RetryPolicy bounds how often a transient failure is retried. The delay
// starts at Backoff and doubles up to MaxBackoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy is three retries, 500ms doubling to 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Backoff: 500 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// Delay returns the wait before retry number attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// StatusError is a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d", e.StatusCode)
}

// Downloader writes remote files to disk.
type Downloader struct {
	Client       *http.Client
	ProgressFunc func(Progress)
	Retry        RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
	log   *logger.ComponentLogger
}

// New creates a downloader. A nil client means http.DefaultClient.
func New(client *http.Client, progressFunc func(Progress), policy RetryPolicy) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	return &Downloader{
		Client:       client,
		ProgressFunc: progressFunc,
		Retry:        policy,
		sleep:        sleepContext,
		log:          logger.WithComponent(logger.ComponentDownloader),
	}
}

// WithProgress returns a copy of d reporting to fn.
func (d *Downloader) WithProgress(fn func(Progress)) *Downloader {
	c := *d
	c.ProgressFunc = fn
	return &c
}

// Download fetches urlStr into outputPath and returns the file size. Bytes
// land in outputPath+".part" first; an existing partial file is resumed
// with a Range request when the server honours it. Transient failures are
// retried per d.Retry; when retries run out the error wraps errs.ErrTransient.
func (d *Downloader) Download(ctx context.Context, urlStr, outputPath string) (int64, error) {
	tmpPath := outputPath + partialFileSuffix
	attempts := d.Retry.MaxRetries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := d.Retry.Delay(attempt - 1)
			d.log.Warn("Retrying download", logger.Fields{
				"attempt": attempt,
				"wait":    wait.String(),
				"error":   lastErr.Error(),
			})
			if err := d.sleep(ctx, wait); err != nil {
				return 0, err
			}
		}

		size, err := d.fetch(ctx, urlStr, tmpPath)
		if err == nil {
			if size == 0 {
				_ = os.Remove(tmpPath)
				return 0, fmt.Errorf("empty download: 0 bytes written")
			}
			if err := os.Rename(tmpPath, outputPath); err != nil {
				return 0, fmt.Errorf("failed to finalize download: %w", err)
			}
			d.log.Debug("Download complete", logger.Fields{"path": outputPath, "bytes": size})
			return size, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		if !IsTransient(err) {
			_ = os.Remove(tmpPath)
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("download failed after %d attempts: %w", attempts, lastErr)
}

// fetch performs one request, appending to tmpPath when resuming.
func (d *Downloader) fetch(ctx context.Context, urlStr, tmpPath string) (int64, error) {
	var offset int64
	if fi, err := os.Stat(tmpPath); err == nil {
		offset = fi.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return 0, fmt.Errorf("invalid download URL: %w", err)
	}
	req.Header.Set(headerUserAgent, userAgentValue)
	req.Header.Set(headerAccept, "*/*")
	req.Header.Set(headerAcceptEncoding, "identity")
	if offset > 0 {
		req.Header.Set(headerRange, fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.Client.Do(req)
	if err != nil {
		return 0, classify(err)
	}
	defer func() { _ = resp.Body.Close() }()

	var total int64
	flags := os.O_WRONLY | os.O_CREATE
	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		flags |= os.O_APPEND
		total = totalFromContentRange(resp.Header.Get(headerContentRange))
		d.log.Debug("Resuming partial download", logger.Fields{"offset": offset})
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0:
		return offset, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		flags |= os.O_TRUNC
		offset = 0
		total = resp.ContentLength
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return 0, fmt.Errorf("%w: %w", errs.ErrTransient, &StatusError{URL: urlStr, StatusCode: resp.StatusCode})
	default:
		return 0, &StatusError{URL: urlStr, StatusCode: resp.StatusCode}
	}

	out, err := os.OpenFile(tmpPath, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to open output file: %w", err)
	}
	defer func() { _ = out.Close() }()

	downloaded := offset
	buf := make([]byte, copyBufferSizeBytes)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return downloaded, fmt.Errorf("failed to write chunk: %w", werr)
			}
			downloaded += int64(n)
			d.report(downloaded, total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return downloaded, classify(rerr)
		}
	}
	if total > 0 && downloaded < total {
		return downloaded, fmt.Errorf("%w: %w", errs.ErrTransient, io.ErrUnexpectedEOF)
	}
	return downloaded, nil
}

func (d *Downloader) report(downloaded, total int64) {
	if d.ProgressFunc == nil {
		return
	}
	p := Progress{TotalSize: total, DownloadedSize: downloaded}
	if total > 0 {
		p.Percent = float64(downloaded) / float64(total) * 100
	}
	d.ProgressFunc(p)
}

// IsTransient reports whether err is worth retrying: a dropped or reset
// connection, a timeout, or a 5xx/429 response.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errs.ErrTransient) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// classify marks transport errors as transient unless the context ended.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if IsTransient(err) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %w", errs.ErrTransient, err)
	}
	return err
}

// totalFromContentRange parses "bytes 100-199/200".
func totalFromContentRange(v string) int64 {
	_, total, ok := strings.Cut(v, "/")
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(total), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
