// Package youtube ties the InnerTube player client, stream parsing and the
// cipher together into a stream catalog for a single video.
package youtube

import (
	"context"
	"fmt"

	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/types"
	"github.com/yamihome/yami/youtube/cipher"
	"github.com/yamihome/yami/youtube/formats"
	"github.com/yamihome/yami/youtube/innertube"
)

// Catalog lists and resolves the streams of a video.
type Catalog struct {
	Player *innertube.Client
	Cipher *cipher.Resolver

	log *logger.ComponentLogger
}

// NewCatalog creates a Catalog. resolver may be nil, in which case ciphered
// streams cannot be resolved and n parameters are left untouched.
func NewCatalog(player *innertube.Client, resolver *cipher.Resolver) *Catalog {
	return &Catalog{
		Player: player,
		Cipher: resolver,
		log:    logger.WithComponent(logger.ComponentFormat),
	}
}

// Streams returns the video title and its streams in API order.
func (c *Catalog) Streams(ctx context.Context, videoURL string) (string, []types.Stream, error) {
	id, err := ParseVideoID(videoURL)
	if err != nil {
		return "", nil, err
	}
	pr, err := c.Player.Player(ctx, id)
	if err != nil {
		return "", nil, fmt.Errorf("player response for %s: %w", id, err)
	}
	streams := formats.ParseStreams(pr)
	c.log.Debug("Stream catalog parsed", logger.Fields{
		"video_id":    id,
		"streams":     len(streams),
		"progressive": len(formats.Filter(streams, formats.Progressive())),
	})
	return pr.VideoDetails.Title, streams, nil
}

// ResolveURL returns the downloadable URL of s, a stream of videoURL.
func (c *Catalog) ResolveURL(ctx context.Context, videoURL string, s types.Stream) (string, error) {
	if !formats.NeedsPlayer(s) || c.Cipher == nil {
		return formats.ResolveURL(ctx, s, nil, "")
	}
	id, err := ParseVideoID(videoURL)
	if err != nil {
		return "", err
	}
	playerURL, err := c.Cipher.PlayerURL(ctx, id)
	if err != nil {
		if s.URL == "" {
			return "", err
		}
		c.log.Warn("Player script unavailable, using stream url as is", logger.Fields{"video_id": id, "error": err.Error()})
		return formats.ResolveURL(ctx, s, nil, "")
	}
	return formats.ResolveURL(ctx, s, c.Cipher, playerURL)
}
