// Package dataapi is a small client for the YouTube Data API v3 endpoints the
// fetcher needs: videos, playlists and playlistItems.
package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/httpclient"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/types"
)

const (
	// DefaultBaseURL is the public Data API root.
	DefaultBaseURL = "https://www.googleapis.com/youtube/v3"

	keyHeader   = "X-Goog-Api-Key"
	maxPageSize = 50
	// guards against a server that keeps returning the same token
	maxPages = 200
)

// APIError is a non-200 answer from the Data API.
type APIError struct {
	StatusCode int
	Reason     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("data api: HTTP %d (%s): %s", e.StatusCode, e.Reason, e.Message)
	}
	return fmt.Sprintf("data api: HTTP %d", e.StatusCode)
}

// Unwrap maps quota errors to errs.ErrRateLimited.
func (e *APIError) Unwrap() error {
	switch e.Reason {
	case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		return errs.ErrRateLimited
	}
	if e.StatusCode == http.StatusTooManyRequests {
		return errs.ErrRateLimited
	}
	return nil
}

// Client calls the Data API with a developer key.
type Client struct {
	HTTP *httpclient.Client

	base string
	key  string
	log  *logger.ComponentLogger
}

// New creates a client authenticating with apiKey.
func New(hc *httpclient.Client, apiKey string) *Client {
	if hc == nil {
		hc = httpclient.Wrap(nil)
	}
	return &Client{
		HTTP: hc,
		base: DefaultBaseURL,
		key:  strings.TrimSpace(apiKey),
		log:  logger.WithComponent(logger.ComponentDataAPI),
	}
}

// WithBaseURL points the client at another API root.
func (c *Client) WithBaseURL(base string) *Client {
	if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
		c.base = base
	}
	return c
}

type thumbnail struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type videoList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string               `json:"title"`
			Description  string               `json:"description"`
			ChannelID    string               `json:"channelId"`
			ChannelTitle string               `json:"channelTitle"`
			PublishedAt  string               `json:"publishedAt"`
			Thumbnails   map[string]thumbnail `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type playlistList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			Localized    struct {
				Title       string `json:"title"`
				Description string `json:"description"`
			} `json:"localized"`
		} `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemList struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		Snippet struct {
			Title      string `json:"title"`
			Position   int    `json:"position"`
			ResourceID struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// Video returns the snippet of videoID. No matching item is
// errs.ErrDataUnavailable.
func (c *Client) Video(ctx context.Context, videoID string) (types.VideoMeta, error) {
	var out videoList
	if err := c.get(ctx, "videos", url.Values{"part": {"snippet"}, "id": {videoID}}, &out); err != nil {
		return types.VideoMeta{}, err
	}
	if len(out.Items) == 0 {
		return types.VideoMeta{}, fmt.Errorf("video %s: %w", videoID, errs.ErrDataUnavailable)
	}
	it := out.Items[0]
	meta := types.VideoMeta{
		ID:          it.ID,
		Title:       it.Snippet.Title,
		Description: it.Snippet.Description,
		ChannelID:   it.Snippet.ChannelID,
		Channel:     it.Snippet.ChannelTitle,
		PublishedAt: it.Snippet.PublishedAt,
		Thumbnails:  make(map[string]types.Thumbnail, len(it.Snippet.Thumbnails)),
	}
	for name, th := range it.Snippet.Thumbnails {
		meta.Thumbnails[name] = types.Thumbnail{URL: th.URL, Width: th.Width, Height: th.Height}
	}
	return meta, nil
}

// Playlist returns playlist metadata; Title is the localized title.
func (c *Client) Playlist(ctx context.Context, playlistID string) (types.PlaylistMeta, error) {
	var out playlistList
	if err := c.get(ctx, "playlists", url.Values{"part": {"snippet,contentDetails"}, "id": {playlistID}}, &out); err != nil {
		return types.PlaylistMeta{}, err
	}
	if len(out.Items) == 0 {
		return types.PlaylistMeta{}, fmt.Errorf("playlist %s: %w", playlistID, errs.ErrDataUnavailable)
	}
	it := out.Items[0]
	title := it.Snippet.Localized.Title
	if title == "" {
		title = it.Snippet.Title
	}
	return types.PlaylistMeta{
		ID:          it.ID,
		Title:       title,
		Description: it.Snippet.Description,
		Channel:     it.Snippet.ChannelTitle,
		ItemCount:   it.ContentDetails.ItemCount,
	}, nil
}

// PlaylistItems lists every member of playlistID in playlist order,
// following page tokens.
func (c *Client) PlaylistItems(ctx context.Context, playlistID string) ([]types.PlaylistItem, error) {
	var (
		items []types.PlaylistItem
		token string
	)
	for page := 0; page < maxPages; page++ {
		q := url.Values{
			"part":       {"snippet,contentDetails"},
			"playlistId": {playlistID},
			"maxResults": {fmt.Sprint(maxPageSize)},
		}
		if token != "" {
			q.Set("pageToken", token)
		}
		var out playlistItemList
		if err := c.get(ctx, "playlistItems", q, &out); err != nil {
			return nil, err
		}
		for _, it := range out.Items {
			id := it.ContentDetails.VideoID
			if id == "" {
				id = it.Snippet.ResourceID.VideoID
			}
			if id == "" {
				continue
			}
			items = append(items, types.PlaylistItem{VideoID: id, Title: it.Snippet.Title, Index: len(items)})
		}
		c.log.Debug("Playlist page fetched", logger.Fields{"playlist_id": playlistID, "page": page, "items": len(out.Items)})
		if out.NextPageToken == "" || out.NextPageToken == token {
			return items, nil
		}
		token = out.NextPageToken
	}
	c.log.Warn("Playlist page limit reached", logger.Fields{"playlist_id": playlistID, "items": len(items)})
	return items, nil
}

func (c *Client) get(ctx context.Context, resource string, q url.Values, dst any) error {
	if c.key == "" {
		return errs.ErrMissingAPIKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/"+resource+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	// The key travels as a header so transport errors, which quote the URL,
	// never carry it.
	req.Header.Set(keyHeader, c.key)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("data api %s: %w", resource, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("data api %s: read body: %w", resource, err)
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := parseError(resp.StatusCode, body)
		c.log.Warn("Data API request failed", logger.Fields{"resource": resource, "status": resp.StatusCode, "reason": apiErr.Reason})
		return apiErr
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("data api %s: decode: %w", resource, err)
	}
	return nil
}

func parseError(status int, body []byte) *APIError {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Errors  []struct {
				Reason string `json:"reason"`
			} `json:"errors"`
		} `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	if json.Unmarshal(body, &env) == nil {
		apiErr.Message = env.Error.Message
		if len(env.Error.Errors) > 0 {
			apiErr.Reason = env.Error.Errors[0].Reason
		}
	}
	return apiErr
}

// IsAPIError reports whether err carries an *APIError with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
