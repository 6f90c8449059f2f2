// Package shell is the interactive front end: it lists the installed
// modules, asks which one to run, confirms, checks the module's
// dependencies and hands the terminal over to it.
package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/yamihome/yami/internal/config"
	"github.com/yamihome/yami/internal/logger"
	"github.com/yamihome/yami/registry"
)

const (
	msgInvalidModule = "Invalid module name."
	msgNoModules     = "No modules found."
	promptModule     = "Which module would you like to use? "
)

// DefaultPause is how long messages stay visible before the screen clears.
const DefaultPause = time.Second

// Options configures a Shell. Zero values select the process terminal.
type Options struct {
	In  io.Reader
	Out io.Writer
	// Module is the identifier passed with -m; it is tried once before
	// the interactive prompt.
	Module string
	Pause  time.Duration
	Clear  func(w io.Writer)
}

// Shell drives one interactive session.
type Shell struct {
	reg    *registry.Registry
	cfg    *config.Config
	in     *bufio.Reader
	out    io.Writer
	module string
	pause  time.Duration
	clear  func(w io.Writer)
	log    *logger.ComponentLogger
}

// New creates a Shell over reg.
func New(reg *registry.Registry, cfg *config.Config, opts Options) *Shell {
	if cfg == nil {
		cfg = config.Default()
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	clear := opts.Clear
	if clear == nil {
		clear = ClearScreen
	}
	pause := opts.Pause
	if pause < 0 {
		pause = 0
	}
	return &Shell{
		reg:    reg,
		cfg:    cfg,
		in:     bufio.NewReader(in),
		out:    out,
		module: strings.TrimSpace(opts.Module),
		pause:  pause,
		clear:  clear,
		log:    logger.WithComponent(logger.ComponentShell),
	}
}

// Run loops until a module has run, no module is installed, the user quits
// or input ends. The error is the module's own, or a load failure.
func (s *Shell) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.module != "" {
			name := s.module
			if s.reg.Contains(name) {
				entry, err := s.reg.Load(name)
				if err != nil {
					return err
				}
				return s.runEntry(ctx, entry)
			}
			s.log.Warn("Unknown module requested", logger.Fields{"module": name})
			s.println(msgInvalidModule)
			s.sleep()
			s.module = ""
			continue
		}

		s.clear(s.out)
		s.printf("Yami Home Server [Version %s] is running on [%s]\n", s.cfg.Version, OSLabel(runtime.GOOS))

		names, err := s.reg.Discover()
		if err != nil {
			s.log.Warn("Module discovery failed", logger.Fields{"error": err.Error()})
		}
		if len(names) == 0 {
			s.println(msgNoModules)
			s.sleep()
			return nil
		}

		s.println("Available modules: ")
		for _, n := range names {
			s.printf(" - %s\n", n)
		}

		choice, err := s.ask(promptModule)
		if err != nil {
			return nil
		}
		if isQuit(choice) {
			return nil
		}
		if !contains(names, choice) {
			s.println(msgInvalidModule)
			s.sleep()
			continue
		}

		entry, err := s.reg.Load(choice)
		if err != nil {
			s.log.Error("Failed to load module", logger.Fields{"module": choice, "error": err.Error()})
			s.printf("Error: %v\n", err)
			s.sleep()
			continue
		}

		s.clear(s.out)
		answer, err := s.ask(fmt.Sprintf("Are you sure you want to use the %s module? (y/n) ", entry.Info.Name))
		if err != nil {
			return nil
		}
		if !strings.EqualFold(answer, "y") {
			continue
		}

		s.printf("Module: %s\n", entry.Info.Name)
		s.printf("Description: %s\n", entry.Info.Description)
		s.printf("Author: %s\n", entry.Info.Author)
		s.printf("Version: %s\n", entry.Info.Version)
		return s.runEntry(ctx, entry)
	}
}

func (s *Shell) runEntry(ctx context.Context, entry *registry.Entry) error {
	if err := s.reg.CheckDependencies(entry.Info); err != nil {
		var missing *registry.MissingDependenciesError
		if errors.As(err, &missing) {
			for _, m := range missing.Missing {
				s.printf("Missing dependency: %s\n", m)
			}
		}
		return err
	}

	s.log.Info("Running module", logger.Fields{"module": entry.Name})
	sess := registry.NewSession(s.in, s.out, s.cfg)
	if err := entry.Module.Run(ctx, sess); err != nil {
		return fmt.Errorf("module %s: %w", entry.Name, err)
	}
	return nil
}

func (s *Shell) ask(prompt string) (string, error) {
	fmt.Fprint(s.out, prompt)
	return registry.ReadLine(s.in)
}

func (s *Shell) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }

func (s *Shell) println(msg string) { fmt.Fprintln(s.out, msg) }

func (s *Shell) sleep() {
	if s.pause > 0 {
		time.Sleep(s.pause)
	}
}

// OSLabel names the host platform for the banner.
func OSLabel(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "darwin":
		return "macOS"
	default:
		return "Unknown"
	}
}

// ClearScreen clears the terminal when w is one.
func ClearScreen(w io.Writer) {
	f, ok := w.(*os.File)
	if !ok {
		return
	}
	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.Command("cmd", "/c", "cls")
	} else {
		cmd = exec.Command("clear")
	}
	cmd.Stdout = f
	_ = cmd.Run()
}

func isQuit(s string) bool {
	switch strings.ToLower(s) {
	case "q", "quit", "exit":
		return true
	}
	return false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
