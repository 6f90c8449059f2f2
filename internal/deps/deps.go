// Package deps checks that the requirements declared by a module are
// present on this machine. Nothing is ever installed.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Kind says how a requirement is satisfied.
type Kind string

const (
	KindBinary Kind = "bin"
	KindEnv    Kind = "env"
)

// Requirement is one parsed dependency entry.
type Requirement struct {
	Kind Kind
	Name string
}

func (r Requirement) String() string {
	return string(r.Kind) + ":" + r.Name
}

// Parse reads "env:NAME", "bin:NAME" or a bare executable name.
func Parse(raw string) (Requirement, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Requirement{}, fmt.Errorf("empty dependency")
	}
	kind, name, found := strings.Cut(raw, ":")
	if !found {
		return Requirement{Kind: KindBinary, Name: raw}, nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Requirement{}, fmt.Errorf("dependency %q has no name", raw)
	}
	switch Kind(strings.ToLower(strings.TrimSpace(kind))) {
	case KindBinary:
		return Requirement{Kind: KindBinary, Name: name}, nil
	case KindEnv:
		return Requirement{Kind: KindEnv, Name: name}, nil
	default:
		return Requirement{}, fmt.Errorf("dependency %q: unknown kind %q", raw, kind)
	}
}

// Checker looks requirements up. The lookups are swappable for tests.
type Checker struct {
	LookPath func(file string) (string, error)
	Getenv   func(key string) string
}

// NewChecker returns a Checker backed by the process environment.
func NewChecker() *Checker {
	return &Checker{LookPath: exec.LookPath, Getenv: os.Getenv}
}

// Satisfied reports whether r is present.
func (c *Checker) Satisfied(r Requirement) bool {
	switch r.Kind {
	case KindEnv:
		return strings.TrimSpace(c.Getenv(r.Name)) != ""
	default:
		_, err := c.LookPath(r.Name)
		return err == nil
	}
}

// Missing returns every requirement in entries that is absent or malformed, in
// declaration order.
func (c *Checker) Missing(entries []string) []string {
	var missing []string
	for _, s := range entries {
		r, err := Parse(s)
		if err != nil {
			missing = append(missing, s)
			continue
		}
		if !c.Satisfied(r) {
			missing = append(missing, r.String())
		}
	}
	return missing
}
