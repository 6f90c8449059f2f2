package registry

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yamihome/yami/errs"
	"github.com/yamihome/yami/internal/deps"
)

func touch(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func noopModule(info Info) Module {
	return Func{Descriptor: info, Fn: func(context.Context, *Session) error { return nil }}
}

func TestDiscover_FiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.py", "")
	touch(t, dir, "a.py", "")
	touch(t, dir, "readme.md", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "c.py"), 0o755))

	r := New(Options{Dir: dir, Ext: ".py"})
	names, err := r.Discover()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestDiscover_MissingDirectory(t *testing.T) {
	r := New(Options{Dir: filepath.Join(t.TempDir(), "absent")})
	names, err := r.Discover()
	assert.Error(t, err)
	assert.Empty(t, names)
}

func TestNew_NormalizesExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "x.yml", "")
	r := New(Options{Dir: dir, Ext: "yml"})
	assert.True(t, r.Contains("x"))
	assert.False(t, r.Contains("x.yml"))
	assert.Equal(t, dir, r.Dir())
}

func TestRegister(t *testing.T) {
	r := New(Options{Dir: t.TempDir()})
	require.NoError(t, r.Register("a", noopModule(Info{})))
	assert.Error(t, r.Register("a", noopModule(Info{})))
	assert.Error(t, r.Register("", noopModule(Info{})))
	assert.Error(t, r.Register("b", nil))
	assert.Equal(t, []string{"a"}, r.Registered())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "youtube.yml", `
name: YouTube Downloader
version: 2.0.0
dependencies:
  - env:YOUTUBE_API_KEY
`)
	touch(t, dir, "orphan.yml", "")
	touch(t, dir, "broken.yml", "name: [oops")

	r := New(Options{Dir: dir})
	compiled := Info{Name: "yt", Description: "downloads videos", Author: "yami", Version: "1.0.0"}
	require.NoError(t, r.Register("youtube", noopModule(compiled)))
	require.NoError(t, r.Register("broken", noopModule(Info{})))

	t.Run("manifest overrides compiled info", func(t *testing.T) {
		e, err := r.Load("youtube")
		require.NoError(t, err)
		assert.Equal(t, "youtube", e.Name)
		assert.Equal(t, Info{
			Name:         "YouTube Downloader",
			Description:  "downloads videos",
			Author:       "yami",
			Version:      "2.0.0",
			Dependencies: []string{"env:YOUTUBE_API_KEY"},
		}, e.Info)
	})

	t.Run("not installed", func(t *testing.T) {
		_, err := r.Load("nope")
		assert.True(t, errors.Is(err, errs.ErrInvalidModule))
	})

	t.Run("installed without entry point", func(t *testing.T) {
		_, err := r.Load("orphan")
		assert.True(t, errors.Is(err, errs.ErrNoEntryPoint))
	})

	t.Run("malformed manifest", func(t *testing.T) {
		_, err := r.Load("broken")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse manifest")
	})
}

func TestLoad_NonYAMLManifestUsesCompiledInfo(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a.py", "def main():\n    pass\n")
	r := New(Options{Dir: dir, Ext: ".py"})
	require.NoError(t, r.Register("a", noopModule(Info{})))

	e, err := r.Load("a")
	require.NoError(t, err)
	assert.Equal(t, "a", e.Info.Name)
}

func TestCheckDependencies(t *testing.T) {
	checker := &deps.Checker{
		LookPath: func(string) (string, error) { return "", errors.New("missing") },
		Getenv:   func(string) string { return "" },
	}
	r := New(Options{Dir: t.TempDir(), Checker: checker})

	assert.NoError(t, r.CheckDependencies(Info{Name: "none"}))

	err := r.CheckDependencies(Info{Name: "yt", Dependencies: []string{"env:YOUTUBE_API_KEY", "ffmpeg"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrMissingDependencies))

	var missing *MissingDependenciesError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"env:YOUTUBE_API_KEY", "bin:ffmpeg"}, missing.Missing)
}

func TestSession_Ask(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(bufio.NewReader(strings.NewReader("  first  \nlast")), &out, nil)

	got, err := s.Ask("one? ")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	got, err = s.Ask("two? ")
	require.NoError(t, err)
	assert.Equal(t, "last", got)

	_, err = s.Ask("three? ")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "one? two? three? ", out.String())
	assert.NotNil(t, s.Config)
}

func TestFunc_NilEntryPoint(t *testing.T) {
	err := Func{Descriptor: Info{Name: "x"}}.Run(context.Background(), nil)
	assert.ErrorIs(t, err, errs.ErrNoEntryPoint)
}
