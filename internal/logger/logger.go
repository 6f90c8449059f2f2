package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Level orders entries by severity.
type Level int

const (
	TRACE Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// MarshalJSON encodes the level by name.
func (l Level) MarshalJSON() ([]byte, error) {
	return []byte(`"` + l.String() + `"`), nil
}

// Component names the subsystem an entry comes from; each can be switched
// on or off.
type Component string

const (
	ComponentApp        Component = "app"
	ComponentRegistry   Component = "registry"
	ComponentShell      Component = "shell"
	ComponentFetcher    Component = "fetcher"
	ComponentDownloader Component = "downloader"
	ComponentDataAPI    Component = "dataapi"
	ComponentInnerTube  Component = "innertube"
	ComponentFormat     Component = "format"
	ComponentCipher     Component = "cipher"
	ComponentBotGuard   Component = "botguard"
)

// Format selects the line encoding.
type Format int

const (
	FormatText Format = iota
	FormatJSON
	FormatColor
)

// Fields carries structured key/value pairs attached to an entry.
type Fields map[string]interface{}

// Config holds logger configuration.
type Config struct {
	Level      Level
	Format     Format
	Output     io.Writer
	Components map[Component]bool
	ShowCaller bool
	Timestamp  bool
}

// DefaultConfig logs INFO and up as text to stderr. Components used by the
// interactive flow are on; the network layers stay quiet unless enabled.
func DefaultConfig() *Config {
	on := []Component{ComponentApp, ComponentRegistry, ComponentShell, ComponentFetcher, ComponentDownloader}
	off := []Component{ComponentDataAPI, ComponentInnerTube, ComponentFormat, ComponentCipher, ComponentBotGuard}
	components := make(map[Component]bool, len(on)+len(off))
	for _, c := range on {
		components[c] = true
	}
	for _, c := range off {
		components[c] = false
	}
	return &Config{Level: INFO, Format: FormatText, Output: os.Stderr, Components: components}
}

// Entry is one log record.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	Component Component `json:"component"`
	Message   string    `json:"message"`
	Fields    Fields    `json:"fields,omitempty"`
	Caller    string    `json:"caller,omitempty"`
}

// Logger writes entries for enabled components. It is safe for concurrent use.
type Logger struct {
	mu         sync.RWMutex
	level      Level
	encode     encoder
	out        io.Writer
	components map[Component]bool
	caller     bool
	timestamp  bool
}

// New creates a logger; a nil config means DefaultConfig.
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Logger{
		level:      config.Level,
		encode:     encoderFor(config.Format),
		out:        config.Output,
		components: make(map[Component]bool, len(config.Components)),
		caller:     config.ShowCaller,
		timestamp:  config.Timestamp,
	}
	if l.out == nil {
		l.out = os.Stderr
	}
	for c, on := range config.Components {
		l.components[c] = on
	}
	return l
}

// WithComponent returns a logger tagging entries with component.
func (l *Logger) WithComponent(component Component) *ComponentLogger {
	return &ComponentLogger{logger: l, component: component}
}

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

// SetOutput redirects entries to w.
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = w
	l.mu.Unlock()
}

// EnableComponent turns component on.
func (l *Logger) EnableComponent(component Component) { l.setComponent(component, true) }

// DisableComponent turns component off.
func (l *Logger) DisableComponent(component Component) { l.setComponent(component, false) }

func (l *Logger) setComponent(component Component, on bool) {
	l.mu.Lock()
	l.components[component] = on
	l.mu.Unlock()
}

// Enabled reports whether an entry at level for component would be written.
func (l *Logger) Enabled(level Level, component Component) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return level >= l.level && l.components[component]
}

// write is called from ComponentLogger.emit; callerSkip counts the frames
// between the user's call and here.
const callerSkip = 3

func (l *Logger) write(level Level, component Component, message string, fields Fields) {
	if !l.Enabled(level, component) {
		return
	}
	e := Entry{Timestamp: time.Now(), Level: level, Component: component, Message: message, Fields: fields}

	l.mu.RLock()
	withCaller := l.caller
	l.mu.RUnlock()
	if withCaller {
		if _, file, line, ok := runtime.Caller(callerSkip); ok {
			e.Caller = filepath.Base(file) + ":" + fmt.Sprint(line)
		}
	}

	var buf bytes.Buffer
	l.mu.Lock()
	defer l.mu.Unlock()
	l.encode(&buf, e, l.timestamp)
	buf.WriteByte('\n')
	_, _ = l.out.Write(buf.Bytes())
}

var (
	globalMu     sync.RWMutex
	globalLogger = New(DefaultConfig())
)

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	globalLogger = logger
	globalMu.Unlock()
}

// GetGlobalLogger returns the process-wide logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

// WithComponent returns a component logger on the global logger. Packages
// capture it at construction time, so SetGlobalLogger should run first.
func WithComponent(component Component) *ComponentLogger {
	return GetGlobalLogger().WithComponent(component)
}
