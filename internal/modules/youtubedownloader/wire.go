package youtubedownloader

import (
	"fmt"
	"io"
	"net/http"

	"github.com/yamihome/yami/downloader"
	"github.com/yamihome/yami/fetcher"
	"github.com/yamihome/yami/internal/botguard"
	"github.com/yamihome/yami/internal/config"
	"github.com/yamihome/yami/internal/httpclient"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/youtube"
	"github.com/yamihome/yami/youtube/cipher"
	"github.com/yamihome/yami/youtube/dataapi"
	"github.com/yamihome/yami/youtube/innertube"
)

// Build assembles a Fetcher from cfg: the Data API client for metadata, the
// InnerTube catalog for streams and the downloader for bytes.
func Build(cfg *config.Config, apiKey string, out io.Writer) (*fetcher.Fetcher, error) {
	fc := cfg.Fetcher
	hc, err := httpclient.New(httpclient.Config{Timeout: fc.HTTPTimeout, ProxyURL: fc.ProxyURL})
	if err != nil {
		return nil, err
	}

	meta := dataapi.New(hc, apiKey).WithBaseURL(fc.DataAPIURL)

	base := cfg.InnerTube.BaseURL
	if base == "" {
		base = innertube.DefaultBaseURL
	}
	player := innertube.New(hc.HTTPClient).
		WithBaseURL(base).
		WithClient(cfg.InnerTube.ClientName, cfg.InnerTube.ClientVersion)
	if err := attachBotguard(player, cfg.InnerTube); err != nil {
		return nil, err
	}
	catalog := youtube.NewCatalog(player, cipher.NewResolver(hc.HTTPClient, base))

	// Media bodies outlive the per-request timeout.
	media := &http.Client{Transport: hc.HTTPClient.Transport}
	dl := downloader.New(media, nil, downloader.RetryPolicy{
		MaxRetries: fc.Retry.MaxRetries,
		Backoff:    fc.Retry.Backoff,
		MaxBackoff: fc.Retry.MaxBackoff,
	})

	return fetcher.New(meta, catalog, dl, fetcher.Options{
		DefaultResolution:  fc.DefaultResolution,
		FallbackResolution: fc.FallbackResolution,
		Container:          fc.Container,
		Concurrency:        fc.Concurrency,
		Out:                out,
	}), nil
}

// attachBotguard enables attestation when a solver script is configured.
func attachBotguard(player *innertube.Client, it config.InnerTube) error {
	mode, err := botguard.ParseMode(it.BotguardMode)
	if err != nil {
		return err
	}
	if mode == botguard.Off || it.BotguardScript == "" {
		return nil
	}
	solver, err := botguard.NewScriptSolver(it.BotguardScript)
	if err != nil {
		return err
	}

	var cache botguard.Cache = botguard.NewMemoryCache()
	if it.BotguardCacheDir != "" {
		dc, err := botguard.NewDirCache(it.BotguardCacheDir)
		if err != nil {
			return fmt.Errorf("botguard cache: %w", err)
		}
		cache = dc
	}
	player.WithBotguard(solver, mode, cache).WithBotguardTTL(it.BotguardTTL)
	logger.WithComponent(logger.ComponentBotGuard).Debug("Botguard enabled", logger.Fields{
		"mode":   mode.String(),
		"script": it.BotguardScript,
	})
	return nil
}
