//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/yamihome/yami/fetcher"
	"github.com/yamihome/yami/internal/config"
	"github.com/yamihome/yami/internal/modules/youtubedownloader"
)

func TestE2E_Download(t *testing.T) {
	if os.Getenv("YAMI_E2E") == "" {
		t.Skip("YAMI_E2E not set")
	}
	cfg := config.Default()
	key := os.Getenv(cfg.Fetcher.APIKeyEnv)
	if key == "" {
		t.Skipf("%s not set", cfg.Fetcher.APIKeyEnv)
	}
	url := os.Getenv("YAMI_E2E_URL")
	if url == "" {
		url = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	}

	f, err := youtubedownloader.Build(cfg, key, os.Stdout)
	if err != nil {
		t.Fatalf("build fetcher: %v", err)
	}
	report, err := f.Process(context.Background(), fetcher.Request{URLs: url, Folder: t.TempDir(), Resolution: "720p", Plex: true})
	if err != nil {
		t.Fatalf("e2e download failed: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("e2e download failed: %+v", report.Failed)
	}
}
