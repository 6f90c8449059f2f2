package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	envPrefix   = "YAMI_LOG_"
	filePrefix  = "file:"
	defaultFile = "yami.log"
)

// LogConfig is the `log:` section of the configuration file.
type LogConfig struct {
	Level      string          `yaml:"level"`
	Format     string          `yaml:"format"`
	Output     string          `yaml:"output"`
	Components map[string]bool `yaml:"components"`
	ShowCaller bool            `yaml:"show_caller"`
	Timestamp  bool            `yaml:"timestamp"`
	Rotation   *RotationConfig `yaml:"rotation,omitempty"`
}

// RotationConfig applies to file outputs only.
type RotationConfig struct {
	MaxSize    string `yaml:"max_size"`    // e.g. "10MB"
	MaxAge     string `yaml:"max_age"`     // e.g. "7d", "24h"
	MaxBackups int    `yaml:"max_backups"` // rotated files kept
	Compress   bool   `yaml:"compress"`    // gzip rotated files
}

// DefaultLogConfig returns default logging configuration
func DefaultLogConfig() *LogConfig {
	components := make(map[string]bool)
	for c, on := range DefaultConfig().Components {
		components[string(c)] = on
	}
	return &LogConfig{
		Level:      "INFO",
		Format:     "text",
		Output:     "stderr",
		Components: components,
	}
}

// ApplyEnvironment overrides fields from YAMI_LOG_* variables.
func (c *LogConfig) ApplyEnvironment() {
	if level := os.Getenv(envPrefix + "LEVEL"); level != "" {
		c.Level = level
	}
	if format := os.Getenv(envPrefix + "FORMAT"); format != "" {
		c.Format = format
	}
	if output := os.Getenv(envPrefix + "OUTPUT"); output != "" {
		c.Output = output
	}
	if caller := os.Getenv(envPrefix + "CALLER"); caller != "" {
		c.ShowCaller = caller == "true" || caller == "1"
	}
	if timestamp := os.Getenv(envPrefix + "TIMESTAMP"); timestamp != "" {
		c.Timestamp = timestamp == "true" || timestamp == "1"
	}
	// YAMI_LOG_COMPONENTS=fetcher,innertube enables exactly the listed components.
	if components := os.Getenv(envPrefix + "COMPONENTS"); components != "" {
		c.Components = make(map[string]bool)
		for _, comp := range strings.Split(components, ",") {
			if comp = strings.TrimSpace(comp); comp != "" {
				c.Components[comp] = true
			}
		}
	}
}

// Validate checks every field that Build would parse.
func (c *LogConfig) Validate() error {
	if _, err := parseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid level: %w", err)
	}
	if _, err := parseFormat(c.Format); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}
	if o := strings.ToLower(strings.TrimSpace(c.Output)); o != "" && o != "stdout" && o != "stderr" && o != "null" && o != "none" && !strings.HasPrefix(o, filePrefix) {
		return fmt.Errorf("unknown output: %s", c.Output)
	}
	if c.Rotation != nil {
		if err := c.Rotation.Validate(); err != nil {
			return fmt.Errorf("invalid rotation config: %w", err)
		}
	}
	return nil
}

// Validate validates rotation configuration
func (r *RotationConfig) Validate() error {
	if _, err := parseSize(r.MaxSize); err != nil {
		return fmt.Errorf("invalid max_size: %w", err)
	}
	if _, err := parseDuration(r.MaxAge); err != nil {
		return fmt.Errorf("invalid max_age: %w", err)
	}
	if r.MaxBackups < 0 {
		return fmt.Errorf("max_backups must be non-negative")
	}
	return nil
}

// Build creates a Logger. File outputs get a RotatingWriter when rotation
// is configured. The returned closer releases the output (no-op for std streams).
func (c *LogConfig) Build() (*Logger, io.Closer, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := parseLevel(c.Level)
	format, _ := parseFormat(c.Format)

	output, closer, err := c.openOutput()
	if err != nil {
		return nil, nil, err
	}

	components := make(map[Component]bool, len(c.Components))
	for name, enabled := range c.Components {
		components[Component(name)] = enabled
	}

	return New(&Config{
		Level:      level,
		Format:     format,
		Output:     output,
		Components: components,
		ShowCaller: c.ShowCaller,
		Timestamp:  c.Timestamp,
	}), closer, nil
}

func (c *LogConfig) openOutput() (io.Writer, io.Closer, error) {
	out := strings.TrimSpace(c.Output)
	switch strings.ToLower(out) {
	case "", "stderr":
		return os.Stderr, nopCloser{}, nil
	case "stdout":
		return os.Stdout, nopCloser{}, nil
	case "null", "none":
		return io.Discard, nopCloser{}, nil
	}

	filename := strings.TrimPrefix(out, filePrefix)
	if filename == "" {
		filename = defaultFile
	}
	if c.Rotation != nil {
		maxSize, _ := parseSize(c.Rotation.MaxSize)
		maxAge, _ := parseDuration(c.Rotation.MaxAge)
		rw, err := NewRotatingWriter(filename, maxSize, maxAge, c.Rotation.MaxBackups, c.Rotation.Compress)
		if err != nil {
			return nil, nil, err
		}
		return rw, rw, nil
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func parseLevel(levelStr string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO", "":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	default:
		return INFO, fmt.Errorf("unknown level: %s", levelStr)
	}
}

func parseFormat(formatStr string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(formatStr)) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "color", "colored":
		return FormatColor, nil
	default:
		return FormatText, fmt.Errorf("unknown format: %s", formatStr)
	}
}

// splitNumber separates a leading integer from its unit suffix.
func splitNumber(s string) (int64, string, error) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("no number found in %q", s)
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		return 0, "", err
	}
	return n, strings.TrimSpace(s[i:]), nil
}

// parseSize parses "100MB", "1GB" etc. Empty means unlimited.
func parseSize(sizeStr string) (int64, error) {
	sizeStr = strings.TrimSpace(sizeStr)
	if sizeStr == "" {
		return 0, nil
	}
	num, unit, err := splitNumber(sizeStr)
	if err != nil {
		return 0, err
	}
	switch strings.ToUpper(unit) {
	case "B", "":
		return num, nil
	case "KB":
		return num << 10, nil
	case "MB":
		return num << 20, nil
	case "GB":
		return num << 30, nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}

// parseDuration accepts day suffixes on top of time.ParseDuration.
func parseDuration(durationStr string) (time.Duration, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return 0, nil
	}
	if strings.HasSuffix(durationStr, "d") {
		num, _, err := splitNumber(strings.TrimSuffix(durationStr, "d"))
		if err != nil {
			return 0, err
		}
		return time.Duration(num) * 24 * time.Hour, nil
	}
	return time.ParseDuration(durationStr)
}
