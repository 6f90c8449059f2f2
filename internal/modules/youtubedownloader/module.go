// Package youtubedownloader is the interactive YouTube downloader module.
package youtubedownloader

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/fetcher"
	"github.com/yamihome/yami/internal/config"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/registry"
)

// Name is the identifier the module is registered and installed under.
const Name = "youtubedownloader"

const (
	promptURLs       = "Enter YouTube URL(s) separated by commas: "
	promptFolder     = "Enter folder name (leave blank for default): "
	promptResolution = "Enter resolution (leave blank for default): "
	promptPlex       = "Use Plex format? (y/n): "
	promptFolderOnce = "Enter folder name: "
)

// Processor runs a batch of URLs; *fetcher.Fetcher implements it.
type Processor interface {
	Process(ctx context.Context, req fetcher.Request) (fetcher.Report, error)
}

// Module prompts for URLs and options and hands them to the fetcher.
type Module struct {
	Getenv func(string) string
	Build  func(cfg *config.Config, apiKey string, out io.Writer) (Processor, error)
}

// New returns the module wired to the real YouTube services.
func New() *Module {
	return &Module{
		Getenv: os.Getenv,
		Build: func(cfg *config.Config, apiKey string, out io.Writer) (Processor, error) {
			return Build(cfg, apiKey, out)
		},
	}
}

func (m *Module) Info() registry.Info {
	return registry.Info{
		Name:         "YouTube Downloader",
		Description:  "Download YouTube videos.",
		Author:       "Yami",
		Version:      "1.0.0",
		Dependencies: []string{"env:YOUTUBE_API_KEY"},
	}
}

// Run asks for the batch and processes it. Per-URL failures are reported
// and skipped; a missing API key ends the run with errs.ErrMissingAPIKey.
func (m *Module) Run(ctx context.Context, s *registry.Session) error {
	log := logger.WithComponent(logger.ComponentApp).With(logger.Fields{"module": Name})
	cfg := s.Config

	envName := cfg.Fetcher.APIKeyEnv
	apiKey := strings.TrimSpace(m.Getenv(envName))
	if apiKey == "" {
		s.Printf("YouTube API Key not found. Please set the environment variable '%s'.\n", envName)
		return errs.ErrMissingAPIKey
	}

	urls, err := ask(s, promptURLs)
	if err != nil {
		return err
	}
	folder, err := ask(s, promptFolder)
	if err != nil {
		return err
	}
	res, err := ask(s, promptResolution)
	if err != nil {
		return err
	}
	plex, err := ask(s, promptPlex)
	if err != nil {
		return err
	}

	if res == "" {
		res = cfg.Fetcher.DefaultResolution
	}
	if folder == "" {
		folder = cfg.Fetcher.DefaultFolder
	}
	if folder == "" {
		if folder, err = ask(s, promptFolderOnce); err != nil {
			return err
		}
	}

	req := fetcher.Request{URLs: urls, Folder: folder, Resolution: res, Plex: strings.EqualFold(plex, "y")}
	if len(fetcher.SplitURLs(req.URLs)) == 0 {
		s.Println("No URLs given.")
		return nil
	}

	p, err := m.Build(cfg, apiKey, s.Out())
	if err != nil {
		return err
	}
	log.Info("Starting batch", logger.Fields{"folder": req.Folder, "resolution": req.Resolution, "plex": req.Plex})
	report, err := p.Process(ctx, req)
	s.Printf("Finished: %d of %d downloaded.\n", report.Succeeded, report.Total)
	for _, f := range report.Failed {
		s.Printf(" - %s: %v\n", f.URL, f.Err)
	}
	return err
}

// ask reads one answer; running out of input counts as a blank answer.
func ask(s *registry.Session, prompt string) (string, error) {
	v, err := s.Ask(prompt)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return v, err
}
