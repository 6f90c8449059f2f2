package innertube

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/logger"
)

const playerPath = "/youtubei/v1/player"

// Format is one entry of streamingData.formats or adaptiveFormats.
type Format struct {
	Itag            int    `json:"itag"`
	URL             string `json:"url"`
	MimeType        string `json:"mimeType"`
	Bitrate         int    `json:"bitrate"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	ContentLength   string `json:"contentLength"`
	Quality         string `json:"quality"`
	QualityLabel    string `json:"qualityLabel"`
	AudioQuality    string `json:"audioQuality"`
	SignatureCipher string `json:"signatureCipher"`
	Cipher          string `json:"cipher"`
}

// PlayerResponse is the subset of the /player response the catalog uses.
// Formats carry audio and video muxed together; AdaptiveFormats carry one
// or the other.
type PlayerResponse struct {
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
	StreamingData struct {
		Formats         []Format `json:"formats"`
		AdaptiveFormats []Format `json:"adaptiveFormats"`
	} `json:"streamingData"`
	VideoDetails struct {
		VideoID          string `json:"videoId"`
		Title            string `json:"title"`
		Author           string `json:"author"`
		ChannelID        string `json:"channelId"`
		ShortDescription string `json:"shortDescription"`
		LengthSeconds    string `json:"lengthSeconds"`
	} `json:"videoDetails"`
}

// Err maps a non-OK playability status to an errs sentinel.
func (p *PlayerResponse) Err() error {
	status := strings.ToUpper(p.PlayabilityStatus.Status)
	reason := strings.ToLower(p.PlayabilityStatus.Reason)
	mentions := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(reason, w) {
				return true
			}
		}
		return false
	}
	unavailable := fmt.Errorf("%w: %s", errs.ErrVideoUnavailable, p.PlayabilityStatus.Reason)

	switch {
	case status == "" || status == "OK":
		return nil
	case status == "LOGIN_REQUIRED" && mentions("private"):
		return errs.ErrPrivate
	case status == "LOGIN_REQUIRED":
		return errs.ErrAgeRestricted
	case status == "ERROR" && mentions("geograph", "available in your country"):
		return errs.ErrGeoBlocked
	case status == "ERROR" && mentions("rate limit", "quota"):
		return errs.ErrRateLimited
	case status == "UNPLAYABLE" && mentions("private"):
		return errs.ErrPrivate
	case status == "UNPLAYABLE" && mentions("country"):
		return errs.ErrGeoBlocked
	case status == "ERROR" || status == "UNPLAYABLE":
		return unavailable
	}
	return fmt.Errorf("%w: status %s", errs.ErrVideoUnavailable, status)
}

type clientContext struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	HL                string `json:"hl"`
	AndroidSDKVersion int    `json:"androidSdkVersion,omitempty"`
	OSName            string `json:"osName,omitempty"`
	OSVersion         string `json:"osVersion,omitempty"`
	UserAgent         string `json:"userAgent,omitempty"`
}

type playerRequest struct {
	Context struct {
		Client clientContext `json:"client"`
	} `json:"context"`
	VideoID string `json:"videoId"`
}

// newPlayerRequest builds the request body and the User-Agent to send with it.
func (c *Client) newPlayerRequest(videoID, version string) (playerRequest, string) {
	var body playerRequest
	body.VideoID = videoID
	body.Context.Client = clientContext{ClientName: c.clientName, ClientVersion: version, HL: "en"}
	if !c.profile().android {
		return body, browserUA
	}
	ua := "com.google.android.youtube/" + version + " (Linux; U; Android 11) gzip"
	cc := &body.Context.Client
	cc.AndroidSDKVersion, cc.OSName, cc.OSVersion, cc.UserAgent = 30, "Android", "11", ua
	return body, ua
}

// Player fetches the player response for videoID. A non-playable video
// yields the matching errs error alongside the response.
func (c *Client) Player(ctx context.Context, videoID string) (*PlayerResponse, error) {
	key, version, err := c.credentials(ctx, videoID)
	if err != nil {
		return nil, err
	}
	body, ua := c.newPlayerRequest(videoID, version)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+playerPath+"?key="+key, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	// Attestation may resend the request.
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(payload)), nil }
	setHeaders(req, map[string]string{
		"Content-Type":             "application/json",
		"User-Agent":               ua,
		"Accept":                   "*/*",
		"Accept-Language":          "en-US,en;q=0.9",
		"Accept-Encoding":          "gzip, br",
		"Origin":                   c.base,
		"Referer":                  c.base + "/",
		"X-YouTube-Client-Version": version,
	})
	if code := c.profile().code; code != "" {
		req.Header.Set("X-YouTube-Client-Name", code)
	}
	if vid, err := c.visitorID(ctx); err != nil {
		c.log.Debug("Visitor ID unavailable", logger.Fields{"error": err.Error()})
	} else if vid != "" {
		req.Header.Set("X-Goog-Visitor-Id", vid)
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, fmt.Errorf("innertube: player request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests:
		return nil, errs.ErrRateLimited
	default:
		return nil, fmt.Errorf("innertube: player request: HTTP %d", resp.StatusCode)
	}

	var pr PlayerResponse
	if err := decodeBody(resp, &pr); err != nil {
		return nil, err
	}
	c.log.Debug("Player response received", logger.Fields{
		"video_id": videoID,
		"status":   pr.PlayabilityStatus.Status,
		"formats":  len(pr.StreamingData.Formats),
		"adaptive": len(pr.StreamingData.AdaptiveFormats),
	})
	return &pr, pr.Err()
}

// decodeBody unwraps gzip or brotli per Content-Encoding and decodes JSON.
func decodeBody(resp *http.Response, v any) error {
	r := io.Reader(resp.Body)
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return fmt.Errorf("innertube: gzip body: %w", err)
		}
		defer gz.Close()
		r = gz
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("innertube: decode player response: %w", err)
	}
	return nil
}
