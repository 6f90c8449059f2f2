package downloader

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamihome/yami/errs"
)

var payload = bytes.Repeat([]byte("0123456789"), 10_000)

func fastPolicy(retries int) RetryPolicy {
	return RetryPolicy{MaxRetries: retries, Backoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func serveContent(w http.ResponseWriter, r *http.Request) {
	http.ServeContent(w, r, "video.mp4", time.Unix(0, 0), bytes.NewReader(payload))
}

func TestDownload_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(serveContent))
	defer srv.Close()

	var last Progress
	calls := 0
	d := New(srv.Client(), func(p Progress) { last = p; calls++ }, fastPolicy(3))

	out := filepath.Join(t.TempDir(), "video.mp4")
	n, err := d.Download(context.Background(), srv.URL, out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.NoFileExists(t, out+partialFileSuffix)

	assert.Greater(t, calls, 0)
	assert.Equal(t, int64(len(payload)), last.TotalSize)
	assert.Equal(t, int64(len(payload)), last.DownloadedSize)
	assert.InDelta(t, 100.0, last.Percent, 0.001)
}

func flaky(failures int32, hits *int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(hits, 1) <= failures {
			http.Error(w, "try later", http.StatusServiceUnavailable)
			return
		}
		serveContent(w, r)
	}
}

func TestDownload_RetriesTransientFailures(t *testing.T) {
	tests := []struct {
		name     string
		failures int32
		retries  int
		wantErr  bool
		wantHits int32
	}{
		{"no failures", 0, 3, false, 1},
		{"k equals max retries", 3, 3, false, 4},
		{"k below max retries", 1, 3, false, 2},
		{"k above max retries", 4, 3, true, 4},
		{"retries disabled", 1, 0, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := httptest.NewServer(flaky(tt.failures, &hits))
			defer srv.Close()

			d := New(srv.Client(), nil, fastPolicy(tt.retries))
			out := filepath.Join(t.TempDir(), "v.mp4")
			_, err := d.Download(context.Background(), srv.URL, out)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errs.ErrTransient), "got %v", err)
				assert.NoFileExists(t, out)
			} else {
				require.NoError(t, err)
				assert.FileExists(t, out)
			}
			assert.Equal(t, tt.wantHits, atomic.LoadInt32(&hits))
		})
	}
}

func TestDownload_NotFoundIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	d := New(srv.Client(), nil, fastPolicy(3))
	_, err := d.Download(context.Background(), srv.URL, filepath.Join(t.TempDir(), "v.mp4"))
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.False(t, errors.Is(err, errs.ErrTransient))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestDownload_ResumesFromPartialFile(t *testing.T) {
	var ranges []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ranges = append(ranges, r.Header.Get("Range"))
		serveContent(w, r)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "v.mp4")
	half := len(payload) / 2
	require.NoError(t, os.WriteFile(out+partialFileSuffix, payload[:half], 0o644))

	d := New(srv.Client(), nil, fastPolicy(0))
	n, err := d.Download(context.Background(), srv.URL, out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, []string{"bytes=" + strconv.Itoa(half) + "-"}, ranges)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownload_TruncatedBodyResumes(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(payload[:1000])
			return
		}
		serveContent(w, r)
	}))
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "v.mp4")
	d := New(srv.Client(), nil, fastPolicy(2))
	_, err := d.Download(context.Background(), srv.URL, out)
	require.NoError(t, err)

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestDownload_ContextCanceled(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(flaky(100, &hits))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := New(srv.Client(), nil, RetryPolicy{MaxRetries: 5, Backoff: time.Hour})
	d.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	_, err := d.Download(ctx, srv.URL, filepath.Join(t.TempDir(), "v.mp4"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 500*time.Millisecond, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(2))
	assert.Equal(t, 2*time.Second, p.Delay(3))
	assert.Equal(t, 4*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(5))
	assert.Equal(t, 5*time.Second, p.Delay(10))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errs.ErrTransient))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(&StatusError{StatusCode: 403}))
}

func TestTotalFromContentRange(t *testing.T) {
	assert.Equal(t, int64(200), totalFromContentRange("bytes 100-199/200"))
	assert.Equal(t, int64(0), totalFromContentRange("bytes 100-199/*"))
	assert.Equal(t, int64(0), totalFromContentRange(""))
}
