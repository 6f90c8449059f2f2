package dataapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/httpclient"
)

func newServer(t *testing.T, setup func(r chi.Router)) *Client {
	t.Helper()
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get(keyHeader) != "secret" || req.URL.Query().Has("key") {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"message":"API key not valid","errors":[{"reason":"keyInvalid"}]}}`)
				return
			}
			next.ServeHTTP(w, req)
		})
	})
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(httpclient.Wrap(srv.Client()), "secret").WithBaseURL(srv.URL)
}

func TestTransportErrorHidesKey(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	hc := srv.Client()
	srv.Close()

	c := New(httpclient.Wrap(hc), "SECRET-KEY-123").WithBaseURL(srv.URL)
	_, err := c.Video(context.Background(), "aaaaaaaaaaa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data api videos")
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
}

func TestVideo(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Get("/videos", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "snippet", r.URL.Query().Get("part"))
			if r.URL.Query().Get("id") != "vid1" {
				_, _ = io.WriteString(w, `{"items":[]}`)
				return
			}
			_, _ = io.WriteString(w, `{"items":[{"id":"vid1","snippet":{"title":"My: Video","channelTitle":"Chan",
"thumbnails":{"default":{"url":"https://i/d.jpg","width":120,"height":90},"maxres":{"url":"https://i/max.jpg","width":1280,"height":720}}}}]}`)
		})
	})

	meta, err := c.Video(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "My: Video", meta.Title)
	assert.Equal(t, "Chan", meta.Channel)
	require.Contains(t, meta.Thumbnails, "maxres")
	assert.Equal(t, "https://i/max.jpg", meta.Thumbnails["maxres"].URL)

	_, err = c.Video(context.Background(), "missing")
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable), "got %v", err)
}

func TestPlaylist_LocalizedTitle(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Get("/playlists", func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Query().Get("id") {
			case "PL1":
				_, _ = io.WriteString(w, `{"items":[{"id":"PL1","snippet":{"title":"Original","localized":{"title":"Localized"}},"contentDetails":{"itemCount":3}}]}`)
			case "PL2":
				_, _ = io.WriteString(w, `{"items":[{"id":"PL2","snippet":{"title":"Plain"}}]}`)
			default:
				_, _ = io.WriteString(w, `{"items":[]}`)
			}
		})
	})
	ctx := context.Background()

	meta, err := c.Playlist(ctx, "PL1")
	require.NoError(t, err)
	assert.Equal(t, "Localized", meta.Title)
	assert.Equal(t, 3, meta.ItemCount)

	meta, err = c.Playlist(ctx, "PL2")
	require.NoError(t, err)
	assert.Equal(t, "Plain", meta.Title)

	_, err = c.Playlist(ctx, "nope")
	assert.True(t, errors.Is(err, errs.ErrDataUnavailable))
}

func TestPlaylistItems_Paginated(t *testing.T) {
	pages := map[string]string{
		"":   `{"nextPageToken":"p2","items":[{"snippet":{"title":"A"},"contentDetails":{"videoId":"a"}},{"snippet":{"title":"B","resourceId":{"videoId":"b"}}}]}`,
		"p2": `{"items":[{"snippet":{"title":"deleted"}},{"snippet":{"title":"C"},"contentDetails":{"videoId":"c"}}]}`,
	}
	c := newServer(t, func(r chi.Router) {
		r.Get("/playlistItems", func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "PL1", r.URL.Query().Get("playlistId"))
			assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
			_, _ = io.WriteString(w, pages[r.URL.Query().Get("pageToken")])
		})
	})

	items, err := c.PlaylistItems(context.Background(), "PL1")
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, want, items[i].VideoID)
		assert.Equal(t, i, items[i].Index)
	}
}

func TestErrors(t *testing.T) {
	c := newServer(t, func(r chi.Router) {
		r.Get("/videos", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"error":{"message":"quota","errors":[{"reason":"quotaExceeded"}]}}`)
		})
	})
	ctx := context.Background()

	_, err := c.Video(ctx, "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrRateLimited))
	assert.True(t, IsAPIError(err, http.StatusForbidden))

	bad := New(c.HTTP, "wrong").WithBaseURL(c.base)
	_, err = bad.Video(ctx, "x")
	require.Error(t, err)
	assert.True(t, IsAPIError(err, http.StatusBadRequest))
	assert.Contains(t, err.Error(), "keyInvalid")

	_, err = New(c.HTTP, "").Video(ctx, "x")
	assert.True(t, errors.Is(err, errs.ErrMissingAPIKey))
}
