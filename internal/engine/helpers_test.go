package engine

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/bjoernricks/python-quilt/internal/config"
	"github.com/bjoernricks/python-quilt/internal/diffcmd"
	"github.com/bjoernricks/python-quilt/internal/editor"
	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/series"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// fakePatcher records every run. Runs for a patch file are handled by the
// func registered under its base name; unregistered patches succeed
// without touching anything.
type fakePatcher struct {
	calls    []patchcmd.Options
	handlers map[string]func(opts patchcmd.Options) error
}

func newFakePatcher() *fakePatcher {
	return &fakePatcher{handlers: make(map[string]func(patchcmd.Options) error)}
}

func (f *fakePatcher) on(name string, fn func(opts patchcmd.Options) error) {
	f.handlers[name] = fn
}

func (f *fakePatcher) Apply(_ context.Context, opts patchcmd.Options) error {
	f.calls = append(f.calls, opts)
	if fn, ok := f.handlers[filepath.Base(opts.PatchFile)]; ok {
		return fn(opts)
	}
	return nil
}

func (f *fakePatcher) realRuns() []patchcmd.Options {
	var runs []patchcmd.Options
	for _, c := range f.calls {
		if !c.DryRun {
			runs = append(runs, c)
		}
	}
	return runs
}

var errConflict = &patchcmd.RunError{Command: "patch", ExitCode: 1, Output: "1 out of 1 hunk FAILED"}

// fakeEditor replaces the content of the edited files.
type fakeEditor struct {
	content string
	opened  []string
}

func (e *fakeEditor) Edit(_ context.Context, files ...string) error {
	e.opened = append(e.opened, files...)
	for _, f := range files {
		if err := os.WriteFile(f, []byte(e.content), 0644); err != nil {
			return err
		}
	}
	return nil
}

var _ editor.Editor = (*fakeEditor)(nil)

type fixture struct {
	t      *testing.T
	ctx    context.Context
	paths  config.Paths
	engine *Engine
	events []Event
}

func newFixture(t *testing.T, patcher patchcmd.Patcher, ed editor.Editor) *fixture {
	t.Helper()
	paths := config.NewPaths(t.TempDir(), "", "")
	f := &fixture{
		t:      t,
		ctx:    zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background()),
		paths:  paths,
		engine: New(paths, fsops.NewRealFS(), patcher, diffcmd.NewBuiltin(), ed),
	}
	f.engine.Subscribe(func(ev Event) { f.events = append(f.events, ev) })
	return f
}

func (f *fixture) write(rel, content string) {
	f.t.Helper()
	path := f.paths.WorkFile(rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) read(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.paths.WorkFile(rel))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) exists(rel string) bool {
	_, err := os.Lstat(f.paths.WorkFile(rel))
	return err == nil
}

func (f *fixture) pcExists(rel string) bool {
	_, err := os.Lstat(filepath.Join(f.paths.PC, filepath.FromSlash(rel)))
	return err == nil
}

func (f *fixture) writeSeries(lines ...string) {
	f.t.Helper()
	path := filepath.Join(f.paths.Patches, series.FileName)
	require.NoError(f.t, os.MkdirAll(f.paths.Patches, 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
}

func (f *fixture) writePatch(name, content string) {
	f.t.Helper()
	path := f.paths.PatchFile(name)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) readPatch(name string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.paths.PatchFile(name))
	require.NoError(f.t, err)
	return string(data)
}

func (f *fixture) seriesNames() []string {
	f.t.Helper()
	s, err := series.Open(fsops.NewRealFS(), f.paths.Patches)
	require.NoError(f.t, err)
	names := []string{}
	for _, p := range s.Patches() {
		names = append(names, p.Name)
	}
	return names
}

func (f *fixture) appliedNames() []string {
	f.t.Helper()
	db, err := state.Open(fsops.NewRealFS(), f.paths.PC)
	require.NoError(f.t, err)
	names := []string{}
	for _, p := range db.AppliedPatches() {
		names = append(names, p.Name)
	}
	return names
}

func (f *fixture) kinds() []EventKind {
	kinds := make([]EventKind, 0, len(f.events))
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (f *fixture) reset() {
	f.events = nil
}

// snapshot captures every regular file below the root, outside the
// metadata and patches directories.
func (f *fixture) snapshot() map[string]string {
	f.t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(f.paths.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path == f.paths.PC || path == f.paths.Patches {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(f.paths.Root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(f.t, err)
	return files
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

// Patches used across tests. They apply with the default strip level.
const (
	createF1 = `--- /dev/null
+++ b/f1
@@ -0,0 +1 @@
+one
`
	createF2 = `--- /dev/null
+++ b/f2
@@ -0,0 +1 @@
+two
`
	modifyBase = `--- a/base.txt
+++ b/base.txt
@@ -1,3 +1,3 @@
 a
-b
+B
 c
`
	deleteGone = `--- a/gone.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`
	conflictBase = `--- a/base.txt
+++ b/base.txt
@@ -1,3 +1,3 @@
 x
-y
+Y
 z
`
)
