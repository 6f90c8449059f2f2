package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/deps"
	"github.com/yamihome/yami/internal/logger"
)

// DefaultExt is the manifest extension used when none is configured.
const DefaultExt = ".yml"

// Entry is a module resolved by Load, with its manifest applied.
type Entry struct {
	Name   string
	Info   Info
	Module Module
}

// MissingDependenciesError lists the requirements a module declared that
// are not present.
type MissingDependenciesError struct {
	Module  string
	Missing []string
}

func (e *MissingDependenciesError) Error() string {
	return fmt.Sprintf("module %s: missing dependencies: %s", e.Module, strings.Join(e.Missing, ", "))
}

func (e *MissingDependenciesError) Unwrap() error { return errs.ErrMissingDependencies }

// Options configures a Registry.
type Options struct {
	// Dir is the modules directory scanned by Discover.
	Dir string
	// Ext is the manifest extension, ".yml" by default.
	Ext string
	// Checker resolves declared dependencies; the process environment by default.
	Checker *deps.Checker
}

// Registry maps module identifiers to compiled-in entry points.
type Registry struct {
	dir     string
	ext     string
	checker *deps.Checker
	log     *logger.ComponentLogger

	mu      sync.RWMutex
	modules map[string]Module
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	ext := strings.TrimSpace(opts.Ext)
	if ext == "" {
		ext = DefaultExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	checker := opts.Checker
	if checker == nil {
		checker = deps.NewChecker()
	}
	return &Registry{
		dir:     opts.Dir,
		ext:     ext,
		checker: checker,
		log:     logger.WithComponent(logger.ComponentRegistry),
		modules: make(map[string]Module),
	}
}

// Dir is the scanned modules directory.
func (r *Registry) Dir() string { return r.dir }

// Register binds an entry point to an identifier.
func (r *Registry) Register(name string, m Module) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("module name must not be empty")
	}
	if m == nil {
		return fmt.Errorf("module %q: nil entry point", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.modules[name]; ok {
		return fmt.Errorf("module %q already registered", name)
	}
	r.modules[name] = m
	return nil
}

// Registered returns the identifiers with an entry point, sorted.
func (r *Registry) Registered() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Discover lists the installed modules: the base names of the files in the
// modules directory carrying the manifest extension. File contents are not
// inspected here.
func (r *Registry) Discover() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return []string{}, fmt.Errorf("failed to read modules directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fn := e.Name()
		if !strings.HasSuffix(fn, r.ext) {
			continue
		}
		if base := strings.TrimSuffix(fn, r.ext); base != "" {
			names = append(names, base)
		}
	}
	sort.Strings(names)
	r.log.Debug("Discovered modules", logger.Fields{"dir": r.dir, "count": len(names)})
	return names, nil
}

// Contains reports whether name is among the discovered modules.
func (r *Registry) Contains(name string) bool {
	names, _ := r.Discover()
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Load resolves an installed module and applies its manifest.
func (r *Registry) Load(name string) (*Entry, error) {
	if !r.Contains(name) {
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidModule, name)
	}

	r.mu.RLock()
	m, ok := r.modules[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrNoEntryPoint, name)
	}

	info := m.Info()
	// Only YAML manifests carry a descriptor; other extensions just mark
	// the module as installed.
	if isYAMLExt(r.ext) {
		manifest, err := ReadManifest(filepath.Join(r.dir, name+r.ext))
		if err != nil {
			return nil, fmt.Errorf("module %q: %w", name, err)
		}
		info = info.merge(manifest)
	}
	if info.Name == "" {
		info.Name = name
	}
	r.log.Info("Module loaded", logger.Fields{"module": name, "version": info.Version})
	return &Entry{Name: name, Info: info, Module: m}, nil
}

// CheckDependencies reports every declared requirement that is absent.
// It never installs anything.
func (r *Registry) CheckDependencies(info Info) error {
	missing := r.checker.Missing(info.Dependencies)
	if len(missing) == 0 {
		return nil
	}
	r.log.Warn("Missing dependencies", logger.Fields{"module": info.Name, "missing": strings.Join(missing, ",")})
	return &MissingDependenciesError{Module: info.Name, Missing: missing}
}

// ReadManifest parses a YAML manifest. An empty file yields a zero Info.
func ReadManifest(path string) (Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	var info Info
	if err := yaml.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return info, nil
}

func isYAMLExt(ext string) bool {
	ext = strings.ToLower(ext)
	return ext == ".yml" || ext == ".yaml"
}
