package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamihome/yami/downloader"
	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/types"
	"github.com/yamihome/yami/youtube"
)

const (
	vidA = "aaaaaaaaaaa"
	vidB = "bbbbbbbbbbb"
	vidC = "ccccccccccc"

	playlistURL = "https://www.youtube.com/playlist?list=PL1"
)

type fakeMeta struct {
	videos    map[string]types.VideoMeta
	playlists map[string]types.PlaylistMeta
	items     map[string][]types.PlaylistItem
	err       error
}

func (m *fakeMeta) Video(_ context.Context, id string) (types.VideoMeta, error) {
	if m.err != nil {
		return types.VideoMeta{}, m.err
	}
	v, ok := m.videos[id]
	if !ok {
		return types.VideoMeta{}, errs.ErrDataUnavailable
	}
	return v, nil
}

func (m *fakeMeta) Playlist(_ context.Context, id string) (types.PlaylistMeta, error) {
	if m.err != nil {
		return types.PlaylistMeta{}, m.err
	}
	p, ok := m.playlists[id]
	if !ok {
		return types.PlaylistMeta{}, errs.ErrDataUnavailable
	}
	return p, nil
}

func (m *fakeMeta) PlaylistItems(_ context.Context, id string) ([]types.PlaylistItem, error) {
	return m.items[id], nil
}

type video struct {
	title   string
	streams []types.Stream
}

type fakeStreams struct {
	videos map[string]video
}

func (s *fakeStreams) Streams(_ context.Context, videoURL string) (string, []types.Stream, error) {
	id, err := youtube.ParseVideoID(videoURL)
	if err != nil {
		return "", nil, err
	}
	v, ok := s.videos[id]
	if !ok {
		return "", nil, errs.ErrVideoUnavailable
	}
	return v.title, v.streams, nil
}

func (s *fakeStreams) ResolveURL(_ context.Context, _ string, st types.Stream) (string, error) {
	return st.URL, nil
}

type env struct {
	srv     *httptest.Server
	meta    *fakeMeta
	streams *fakeStreams
	out     *bytes.Buffer
	hits    int32
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		meta:    &fakeMeta{videos: map[string]types.VideoMeta{}, playlists: map[string]types.PlaylistMeta{}, items: map[string][]types.PlaylistItem{}},
		streams: &fakeStreams{videos: map[string]video{}},
		out:     &bytes.Buffer{},
	}
	r := chi.NewRouter()
	r.Get("/media/{name}", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&e.hits, 1)
		name := chi.URLParam(r, "name")
		if strings.HasPrefix(name, "missing") {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "bytes of "+name)
	})
	e.srv = httptest.NewServer(r)
	t.Cleanup(e.srv.Close)
	return e
}

func (e *env) media(name string) string { return e.srv.URL + "/media/" + name }

func (e *env) addVideo(id, title, media string) {
	e.streams.videos[id] = video{title: title, streams: []types.Stream{
		{Itag: 137, URL: e.media("adaptive"), Resolution: "1080p", Container: "mp4"},
		{Itag: 22, URL: e.media(media), Resolution: "720p", Container: "mp4", Progressive: true},
		{Itag: 43, URL: e.media("webm"), Resolution: "360p", Container: "webm", Progressive: true},
	}}
}

func (e *env) fetcher(opts Options) *Fetcher {
	if opts.Out == nil {
		opts.Out = e.out
	}
	dl := downloader.New(e.srv.Client(), nil, downloader.RetryPolicy{})
	return New(e.meta, e.streams, dl, opts)
}

func watch(id string) string { return "https://www.youtube.com/watch?v=" + id }

func TestSanitize(t *testing.T) {
	assert.Equal(t, "My_ Video", Sanitize("My: Video"))
	assert.Equal(t, "a_b_c_d_e_f_g_h_i_j", Sanitize(`a\b/c:d*e?f"g<h>i|j`))
	s := Sanitize(`x<>y`)
	assert.Equal(t, s, Sanitize(s))
	assert.Equal(t, "", Sanitize(""))
}

func FuzzSanitize(f *testing.F) {
	for _, seed := range []string{"", "My: Video", `a\b/c:d*e?f"g<h>i|j`, "__", "日本語: 動画?", "\x00|\xff"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, title string) {
		once := Sanitize(title)
		if strings.ContainsAny(once, `\/:*?"<>|`) {
			t.Fatalf("Sanitize(%q) = %q keeps an unsafe character", title, once)
		}
		if twice := Sanitize(once); twice != once {
			t.Fatalf("Sanitize not idempotent: %q -> %q -> %q", title, once, twice)
		}
		if utf8.RuneCountInString(once) != utf8.RuneCountInString(title) {
			t.Fatalf("Sanitize(%q) = %q changed the length", title, once)
		}
	})
}

func TestSelectStream(t *testing.T) {
	var logs bytes.Buffer
	prev := logger.GetGlobalLogger()
	cfg := logger.DefaultConfig()
	cfg.Output = &logs
	logger.SetGlobalLogger(logger.New(cfg))
	t.Cleanup(func() { logger.SetGlobalLogger(prev) })

	e := newEnv(t)
	f := e.fetcher(Options{})
	streams := []types.Stream{
		{Itag: 137, Resolution: "1080p", Container: "mp4"},
		{Itag: 43, Resolution: "720p", Container: "webm", Progressive: true},
		{Itag: 22, Resolution: "720p", Container: "mp4", Progressive: true},
		{Itag: 18, Resolution: "360p", Container: "mp4", Progressive: true},
	}

	s, err := f.SelectStream(streams, "360p")
	require.NoError(t, err)
	assert.Equal(t, 18, s.Itag)
	assert.Empty(t, logs.String())

	s, err = f.SelectStream(streams, "1080p")
	require.NoError(t, err)
	assert.Equal(t, 22, s.Itag)
	assert.Contains(t, logs.String(), "downgrading")
	assert.Contains(t, e.out.String(), "Video with resolution '1080p' not available")

	_, err = f.SelectStream(streams[:2], "1080p")
	assert.True(t, errors.Is(err, errs.ErrNoStream))
}

func TestDownloadSingle(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "My: Video", "a")
	dir := t.TempDir()

	path, err := e.fetcher(Options{}).DownloadSingle(context.Background(), watch(vidA), dir, "720p")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "My_ Video.mp4"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bytes of a", string(data))
	assert.Contains(t, e.out.String(), "Downloading 'My: Video' :: 720p")
	assert.Contains(t, e.out.String(), "Downloaded: My: Video at 720p")
}

func TestDownloadSingle_NoFolder(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "Clip", "a")
	t.Chdir(t.TempDir())

	path, err := e.fetcher(Options{}).DownloadSingle(context.Background(), watch(vidA), "", "720p")
	require.NoError(t, err)
	assert.Equal(t, "Clip.mp4", path)
	assert.FileExists(t, "Clip.mp4")
}

func TestDownloadSingle_NoStream(t *testing.T) {
	e := newEnv(t)
	e.streams.videos[vidA] = video{title: "x", streams: []types.Stream{{Itag: 137, Resolution: "1080p", Container: "mp4"}}}

	_, err := e.fetcher(Options{}).DownloadSingle(context.Background(), watch(vidA), t.TempDir(), "1080p")
	assert.True(t, errors.Is(err, errs.ErrNoStream))
}

func playlistEnv(t *testing.T) *env {
	e := newEnv(t)
	e.addVideo(vidA, "One", "a")
	e.addVideo(vidB, "Two", "missing-b")
	e.addVideo(vidC, "Three", "c")
	e.meta.playlists["PL1"] = types.PlaylistMeta{ID: "PL1", Title: "Best: Of"}
	e.meta.items["PL1"] = []types.PlaylistItem{{VideoID: vidA}, {VideoID: vidB, Index: 1}, {VideoID: vidC, Index: 2}}
	return e
}

func TestDownloadPlaylist_FailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 3} {
		e := playlistEnv(t)
		dir := t.TempDir()
		report, err := e.fetcher(Options{Concurrency: workers}).DownloadPlaylist(context.Background(), playlistURL, dir, "720p")
		require.NoError(t, err)
		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 2, report.Succeeded)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, 1, report.Failed[0].Index)
		assert.Equal(t, watch(vidB), report.Failed[0].URL)

		assert.FileExists(t, filepath.Join(dir, "One.mp4"))
		assert.FileExists(t, filepath.Join(dir, "Three.mp4"))
		assert.NoFileExists(t, filepath.Join(dir, "Two.mp4"))

		out := e.out.String()
		assert.Contains(t, out, "Downloaded: One at 720p\n")
		assert.Contains(t, out, "Downloaded: Three at 720p\n")
		if workers > 1 {
			assert.NotContains(t, out, "\r", "parallel workers must not draw progress bars")
		} else {
			assert.Contains(t, out, "\rDownloading 'One' :: 720p")
		}
	}
}

func TestDownloadPlaylist_DefaultFolder(t *testing.T) {
	e := playlistEnv(t)
	t.Chdir(t.TempDir())

	_, err := e.fetcher(Options{}).DownloadPlaylist(context.Background(), playlistURL, "", "720p")
	require.NoError(t, err)
	assert.Contains(t, e.out.String(), "Playlist Title: Best: Of")
	assert.FileExists(t, filepath.Join("Best_ Of", "One.mp4"))
}

func TestDownloadPlaylist_TitleFailureAborts(t *testing.T) {
	e := playlistEnv(t)

	_, err := e.fetcher(Options{}).DownloadPlaylist(context.Background(), "https://www.youtube.com/playlist?list=PLX", t.TempDir(), "720p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable))
	assert.Zero(t, atomic.LoadInt32(&e.hits))
}

func TestPlexify(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "My: Video", "a")
	e.meta.videos[vidA] = types.VideoMeta{ID: vidA, Title: "My: Video", Thumbnails: map[string]types.Thumbnail{
		"default": {URL: e.media("small")},
		"maxres":  {URL: e.media("poster")},
	}}
	out := filepath.Join(t.TempDir(), "out")

	path, err := e.fetcher(Options{}).Plexify(context.Background(), watch(vidA), out, "720p")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "My_ Video", "My_ Video.mp4"), path)

	poster, err := os.ReadFile(filepath.Join(out, "My_ Video", "poster.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "bytes of poster", string(poster))
	assert.FileExists(t, path)
}

func TestPlexify_UsesMetadataTitleForFile(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "player title", "a")
	e.meta.videos[vidA] = types.VideoMeta{ID: vidA, Title: "Data: Title", Thumbnails: map[string]types.Thumbnail{
		"maxres": {URL: e.media("poster")},
	}}
	out := t.TempDir()

	path, err := e.fetcher(Options{}).Plexify(context.Background(), watch(vidA), out, "720p")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Data_ Title", "Data_ Title.mp4"), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(out, "Data_ Title", "player title.mp4"))
}

func TestPlexify_Errors(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "No Poster", "a")
	e.meta.videos[vidA] = types.VideoMeta{ID: vidA, Title: "No Poster", Thumbnails: map[string]types.Thumbnail{
		"high": {URL: e.media("high")},
	}}
	f := e.fetcher(Options{})
	ctx := context.Background()

	_, err := f.Plexify(ctx, watch(vidA), "", "720p")
	assert.True(t, errors.Is(err, errs.ErrFolderRequired))

	out := t.TempDir()
	_, err = f.Plexify(ctx, watch(vidA), out, "720p")
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable))
	assert.NoDirExists(t, filepath.Join(out, "No Poster"))

	_, err = f.Plexify(ctx, watch(vidB), out, "720p")
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable))
}

func TestProcess(t *testing.T) {
	e := playlistEnv(t)
	dir := t.TempDir()

	urls := strings.Join([]string{watch(vidA), "  ", playlistURL, "https://example.com/not-a-video"}, ",")
	report, err := e.fetcher(Options{}).Process(context.Background(), Request{URLs: urls, Folder: dir})
	require.NoError(t, err)

	// vidA + three playlist members + the bad URL
	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Len(t, report.Failed, 2)
	assert.FileExists(t, filepath.Join(dir, "One.mp4"))
	assert.FileExists(t, filepath.Join(dir, "Three.mp4"))
}

func TestProcess_Plex(t *testing.T) {
	e := newEnv(t)
	e.addVideo(vidA, "Movie", "a")
	e.meta.videos[vidA] = types.VideoMeta{ID: vidA, Title: "Movie", Thumbnails: map[string]types.Thumbnail{"maxres": {URL: e.media("poster")}}}
	dir := t.TempDir()

	report, err := e.fetcher(Options{}).Process(context.Background(), Request{URLs: watch(vidA), Folder: dir, Plex: true})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.FileExists(t, filepath.Join(dir, "Movie", "poster.jpg"))
	assert.FileExists(t, filepath.Join(dir, "Movie", "Movie.mp4"))
}

func TestProcess_FatalStops(t *testing.T) {
	e := playlistEnv(t)
	e.meta.err = errs.ErrMissingAPIKey

	report, err := e.fetcher(Options{}).Process(context.Background(), Request{URLs: playlistURL + "," + playlistURL, Folder: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMissingAPIKey))
	assert.Len(t, report.Failed, 1)
}

func TestProcess_Cancelled(t *testing.T) {
	e := playlistEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := e.fetcher(Options{}).Process(ctx, Request{URLs: watch(vidA), Folder: t.TempDir()})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSplitURLs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitURLs(" a , ,b,"))
	assert.Nil(t, SplitURLs("  "))
}
