package youtube

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/types"
	"github.com/yamihome/yami/youtube/cipher"
	"github.com/yamihome/yami/youtube/innertube"
)

const (
	testVideoID = "dQw4w9WgXcQ"

	watchPage = `<html><head><script src="/s/player/p1/base.js"></script>
<script>ytcfg.set({"INNERTUBE_API_KEY":"KEY","INNERTUBE_CLIENT_VERSION":"20.10.38"});</script></head></html>`

	playerJS = `function decipher(s){return s.split("").reverse().join("")}
function ncode(n){return n.toUpperCase()}`

	catalogJSON = `{
  "playabilityStatus": {"status": "OK"},
  "videoDetails": {"videoId": "dQw4w9WgXcQ", "title": "My: Video"},
  "streamingData": {
    "formats": [
      {"itag": 18, "url": "https://cdn.example/18", "mimeType": "video/mp4", "qualityLabel": "360p"},
      {"itag": 22, "signatureCipher": "s=ZYX&sp=sig&url=https%3A%2F%2Fcdn.example%2F22%3Fn%3Dabc", "mimeType": "video/mp4", "qualityLabel": "720p"}
    ],
    "adaptiveFormats": [{"itag": 137, "url": "https://cdn.example/137", "mimeType": "video/mp4", "qualityLabel": "1080p"}]
  }
}`
)

func newFakeSite(t *testing.T, player string) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/watch", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, watchPage)
	})
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html></html>")
	})
	r.Get("/s/player/p1/base.js", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, playerJS)
	})
	r.Post("/youtubei/v1/player", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, player)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newTestCatalog(srv *httptest.Server) *Catalog {
	player := innertube.New(srv.Client()).WithBaseURL(srv.URL)
	return NewCatalog(player, cipher.NewResolver(srv.Client(), srv.URL))
}

func TestCatalog_Streams(t *testing.T) {
	srv := newFakeSite(t, catalogJSON)
	c := newTestCatalog(srv)

	title, streams, err := c.Streams(context.Background(), "https://www.youtube.com/watch?v="+testVideoID)
	require.NoError(t, err)
	assert.Equal(t, "My: Video", title)
	require.Len(t, streams, 3)
	assert.True(t, streams[0].Progressive)
	assert.False(t, streams[2].Progressive)
	assert.Equal(t, "720p", streams[1].Resolution)
}

func TestCatalog_StreamsPlayability(t *testing.T) {
	srv := newFakeSite(t, `{"playabilityStatus":{"status":"LOGIN_REQUIRED","reason":"Sign in to confirm your age"}}`)
	c := newTestCatalog(srv)

	_, _, err := c.Streams(context.Background(), testVideoID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrAgeRestricted), "got %v", err)
}

func TestCatalog_StreamsBadURL(t *testing.T) {
	c := NewCatalog(innertube.New(nil), nil)
	_, _, err := c.Streams(context.Background(), "https://example.com/nothing")
	assert.Error(t, err)
}

func TestCatalog_ResolveURL(t *testing.T) {
	srv := newFakeSite(t, catalogJSON)
	c := newTestCatalog(srv)
	ctx := context.Background()
	_, streams, err := c.Streams(ctx, testVideoID)
	require.NoError(t, err)

	direct, err := c.ResolveURL(ctx, testVideoID, streams[0])
	require.NoError(t, err)
	assert.Contains(t, direct, "https://cdn.example/18")

	ciphered, err := c.ResolveURL(ctx, testVideoID, streams[1])
	require.NoError(t, err)
	u, err := url.Parse(ciphered)
	require.NoError(t, err)
	assert.Equal(t, "XYZ", u.Query().Get("sig"))
	assert.Equal(t, "ABC", u.Query().Get("n"))
	assert.Equal(t, "yes", u.Query().Get("ratebypass"))
}

func TestCatalog_ResolveURLWithoutCipher(t *testing.T) {
	c := NewCatalog(innertube.New(nil), nil)
	_, err := c.ResolveURL(context.Background(), testVideoID, types.Stream{Itag: 22, SignatureCipher: "s=1&url=https%3A%2F%2Fcdn"})
	assert.Error(t, err)
}
