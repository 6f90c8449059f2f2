// Package registry discovers the modules installed in the modules directory
// and binds them to the entry points compiled into the binary.
//
// A module is installed when a manifest file named after it exists in the
// modules directory (youtubedownloader.yml installs "youtubedownloader").
// The manifest may override the descriptor the module reports itself.
package registry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/config"
)

// Info describes a module to the user before it runs.
type Info struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Author       string   `yaml:"author"`
	Version      string   `yaml:"version"`
	Dependencies []string `yaml:"dependencies"`
}

// merge returns i with every non-empty field of o applied on top.
func (i Info) merge(o Info) Info {
	if o.Name != "" {
		i.Name = o.Name
	}
	if o.Description != "" {
		i.Description = o.Description
	}
	if o.Author != "" {
		i.Author = o.Author
	}
	if o.Version != "" {
		i.Version = o.Version
	}
	if o.Dependencies != nil {
		i.Dependencies = append([]string(nil), o.Dependencies...)
	}
	return i
}

// Module is an entry point the shell can run.
type Module interface {
	Info() Info
	Run(ctx context.Context, s *Session) error
}

// Func adapts a plain function into a Module.
type Func struct {
	Descriptor Info
	Fn         func(ctx context.Context, s *Session) error
}

func (f Func) Info() Info { return f.Descriptor }

func (f Func) Run(ctx context.Context, s *Session) error {
	if f.Fn == nil {
		return fmt.Errorf("%w: %s", errs.ErrNoEntryPoint, f.Descriptor.Name)
	}
	return f.Fn(ctx, s)
}

// Session is what a running module sees of the terminal and configuration.
// It shares the shell's buffered reader so no typed-ahead input is lost.
type Session struct {
	Config *config.Config

	in  *bufio.Reader
	out io.Writer
}

// NewSession wraps in and out. A nil cfg means defaults.
func NewSession(in *bufio.Reader, out io.Writer, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Session{Config: cfg, in: in, out: out}
}

// Out is the terminal writer.
func (s *Session) Out() io.Writer { return s.out }

// Printf writes to the terminal.
func (s *Session) Printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// Println writes a line to the terminal.
func (s *Session) Println(args ...any) {
	fmt.Fprintln(s.out, args...)
}

// Ask prints prompt and returns the next input line, trimmed. io.EOF is
// returned only when the input is exhausted before any text was read.
func (s *Session) Ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	return ReadLine(s.in)
}

// ReadLine reads one line from r without its line terminator.
func ReadLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}
