// Package config loads config.yml: the application version, where module
// manifests live, logging, and the fetcher's download policy. Keys the
// application does not know about are kept and reachable through Get.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yamihome/yami/internal/botguard"
	"github.com/yamihome/yami/internal/logger"
)

// FileName is the configuration file looked up next to the executable.
const FileName = "config.yml"

var (
	ErrInvalidRetries     = errors.New("invalid retry policy: values must be non-negative")
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be at least 1")
	ErrInvalidResolution  = errors.New("invalid resolution: must look like 720p")
)

// Config is the parsed configuration file.
type Config struct {
	Version     string            `yaml:"version"`
	ModulesDir  string            `yaml:"modules_dir"`
	ManifestExt string            `yaml:"manifest_ext"`
	Log         *logger.LogConfig `yaml:"log"`
	Fetcher     Fetcher           `yaml:"fetcher"`
	InnerTube   InnerTube         `yaml:"innertube"`

	// Extra holds every top-level key not mapped above.
	Extra map[string]any `yaml:",inline"`

	path string
}

// Fetcher configures the YouTube downloader module.
type Fetcher struct {
	DefaultResolution  string        `yaml:"default_resolution"`
	FallbackResolution string        `yaml:"fallback_resolution"`
	Container          string        `yaml:"container"`
	DefaultFolder      string        `yaml:"default_folder"`
	APIKeyEnv          string        `yaml:"api_key_env"`
	HTTPTimeout        time.Duration `yaml:"http_timeout"`
	Concurrency        int           `yaml:"concurrency"`
	Retry              Retry         `yaml:"retry"`
	ProxyURL           string        `yaml:"proxy_url"`
	// DataAPIURL overrides the Data API root.
	DataAPIURL string `yaml:"data_api_url"`
}

// Retry is the bounded retry policy for transient transfer errors.
type Retry struct {
	MaxRetries int           `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// InnerTube shapes the player client used to list streams.
type InnerTube struct {
	ClientName     string `yaml:"client_name"`
	ClientVersion  string `yaml:"client_version"`
	BaseURL        string `yaml:"base_url"`
	BotguardScript string `yaml:"botguard_script"`
	// BotguardMode is off, auto or force.
	BotguardMode     string        `yaml:"botguard_mode"`
	BotguardTTL      time.Duration `yaml:"botguard_ttl"`
	BotguardCacheDir string        `yaml:"botguard_cache_dir"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:     "dev",
		ModulesDir:  "modules",
		ManifestExt: ".yml",
		Log:         logger.DefaultLogConfig(),
		Fetcher: Fetcher{
			DefaultResolution:  "1080p",
			FallbackResolution: "720p",
			Container:          "mp4",
			APIKeyEnv:          "YOUTUBE_API_KEY",
			HTTPTimeout:        10 * time.Second,
			Concurrency:        1,
			Retry: Retry{
				MaxRetries: 3,
				Backoff:    500 * time.Millisecond,
				MaxBackoff: 5 * time.Second,
			},
		},
		InnerTube: InnerTube{
			ClientName:    "ANDROID",
			ClientVersion: "20.10.38",
			BotguardMode:  "auto",
			BotguardTTL:   30 * time.Minute,
		},
		Extra: map[string]any{},
	}
}

// Load reads path. A missing file yields Default(); relative directories in
// the file are resolved against the file's own directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	cfg.mergeWithDefaults()

	if cfg.ModulesDir != "" && !filepath.IsAbs(cfg.ModulesDir) {
		cfg.ModulesDir = filepath.Join(filepath.Dir(path), cfg.ModulesDir)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultPath returns config.yml next to the running executable, falling
// back to the working directory.
func DefaultPath() string {
	if exe, err := os.Executable(); err == nil {
		p := filepath.Join(filepath.Dir(exe), FileName)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return FileName
}

// Path is the file the configuration was loaded from.
func (c *Config) Path() string { return c.path }

// Get returns an arbitrary top-level key, like the version lookup does for
// the well-known ones.
func (c *Config) Get(key string) (any, bool) {
	switch key {
	case "version":
		return c.Version, true
	case "modules_dir":
		return c.ModulesDir, true
	}
	v, ok := c.Extra[key]
	return v, ok
}

// GetString is Get for string values.
func (c *Config) GetString(key string) string {
	v, ok := c.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// mergeWithDefaults fills zero values left by a partial file.
func (c *Config) mergeWithDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.ModulesDir == "" {
		c.ModulesDir = d.ModulesDir
	}
	if c.ManifestExt == "" {
		c.ManifestExt = d.ManifestExt
	}
	if !strings.HasPrefix(c.ManifestExt, ".") {
		c.ManifestExt = "." + c.ManifestExt
	}
	if c.Log == nil {
		c.Log = d.Log
	}

	f := &c.Fetcher
	if f.DefaultResolution == "" {
		f.DefaultResolution = d.Fetcher.DefaultResolution
	}
	if f.FallbackResolution == "" {
		f.FallbackResolution = d.Fetcher.FallbackResolution
	}
	if f.Container == "" {
		f.Container = d.Fetcher.Container
	}
	if f.APIKeyEnv == "" {
		f.APIKeyEnv = d.Fetcher.APIKeyEnv
	}
	if f.HTTPTimeout == 0 {
		f.HTTPTimeout = d.Fetcher.HTTPTimeout
	}
	if f.Concurrency == 0 {
		f.Concurrency = d.Fetcher.Concurrency
	}
	if f.Retry == (Retry{}) {
		f.Retry = d.Fetcher.Retry
	}

	if c.InnerTube.ClientName == "" {
		c.InnerTube.ClientName = d.InnerTube.ClientName
		c.InnerTube.ClientVersion = d.InnerTube.ClientVersion
	}
	if c.InnerTube.BotguardMode == "" {
		c.InnerTube.BotguardMode = d.InnerTube.BotguardMode
	}
	if c.InnerTube.BotguardTTL == 0 {
		c.InnerTube.BotguardTTL = d.InnerTube.BotguardTTL
	}
	if c.Extra == nil {
		c.Extra = map[string]any{}
	}
}

// Validate checks the configuration for values the fetcher cannot work with.
func Validate(c *Config) error {
	r := c.Fetcher.Retry
	if r.MaxRetries < 0 || r.Backoff < 0 || r.MaxBackoff < 0 {
		return ErrInvalidRetries
	}
	if c.Fetcher.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	for _, res := range []string{c.Fetcher.DefaultResolution, c.Fetcher.FallbackResolution} {
		if !strings.HasSuffix(res, "p") || len(res) < 4 {
			return fmt.Errorf("%w: %q", ErrInvalidResolution, res)
		}
	}
	if _, err := botguard.ParseMode(c.InnerTube.BotguardMode); err != nil {
		return fmt.Errorf("innertube: %w", err)
	}
	if c.Log != nil {
		if err := c.Log.Validate(); err != nil {
			return fmt.Errorf("log: %w", err)
		}
	}
	return nil
}
