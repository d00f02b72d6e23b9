package engine

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/planner"
)

// modifyingPatcher makes base.patch behave like modifyBase.
func modifyingPatcher(f func() *fixture) *fakePatcher {
	p := newFakePatcher()
	p.on("base.patch", func(opts patchcmd.Options) error {
		if opts.DryRun {
			return nil
		}
		fx := f()
		if opts.Reverse {
			fx.write("base.txt", "a\nb\nc\n")
		} else {
			fx.write("base.txt", "a\nB\nc\n")
		}
		return nil
	})
	return p
}

func TestPush_EmptyAndMissingPatches(t *testing.T) {
	f := newFixture(t, newFakePatcher(), nil)
	f.writeSeries("empty.patch", "missing.patch")
	f.writePatch("empty.patch", "")

	result, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.All})
	require.NoError(t, err)
	assert.Len(t, result.Applied, 2)
	assert.Equal(t, "missing.patch", result.Top.Name)
	assert.Equal(t, []string{"empty.patch", "missing.patch"}, f.appliedNames())

	assert.Equal(t, []EventKind{Applying, AppliedEmpty, Applying, AppliedEmpty, NowAt}, f.kinds())
	assert.True(t, f.events[1].Existed)
	assert.False(t, f.events[3].Existed)
	assert.True(t, f.pcExists("empty.patch/.timestamp"))
	assert.True(t, f.pcExists(".version"))
}

func TestPush_BacksUpTouchedFiles(t *testing.T) {
	var f *fixture
	f = newFixture(t, modifyingPatcher(func() *fixture { return f }), nil)
	f.writeSeries("base.patch")
	f.writePatch("base.patch", modifyBase)
	f.write("base.txt", "a\nb\nc\n")

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next})
	require.NoError(t, err)

	assert.Equal(t, "a\nB\nc\n", f.read("base.txt"))
	backup, err := os.ReadFile(f.engine.backups.Path("base.patch", "base.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(backup))
	assert.Equal(t, []EventKind{Applying, Applied, NowAt}, f.kinds())

	runs := f.engine.patcher.(*fakePatcher).realRuns()
	require.Len(t, runs, 1)
	assert.True(t, runs[0].Backup)
	assert.True(t, runs[0].RemoveEmptyFiles)
	assert.Equal(t, f.engine.backups.Dir("base.patch"), runs[0].Prefix)
	assert.Equal(t, f.paths.Root, runs[0].Dir)
}

func TestPush_ConflictRollsBack(t *testing.T) {
	patcher := newFakePatcher()
	patcher.on("bad.patch", func(opts patchcmd.Options) error { return errConflict })

	f := newFixture(t, patcher, nil)
	f.writeSeries("bad.patch")
	f.writePatch("bad.patch", conflictBase)
	f.write("base.txt", "a\nb\nc\n")
	before := f.snapshot()

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoesNotApply), "got %v", err)

	assert.Equal(t, before, f.snapshot())
	assert.Empty(t, f.appliedNames())
	assert.False(t, f.pcExists("bad.patch"))
	assert.False(t, f.pcExists("bad.patch~refresh"))
	assert.Empty(t, patcher.realRuns(), "a failing check must not run the patch for real")
}

func TestPush_ForcedConflict(t *testing.T) {
	patcher := newFakePatcher()
	patcher.on("bad.patch", func(opts patchcmd.Options) error { return errConflict })

	f := newFixture(t, patcher, nil)
	f.writeSeries("bad.patch", "next.patch")
	f.writePatch("bad.patch", conflictBase)
	f.write("base.txt", "a\nb\nc\n")

	result, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.All, Force: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForcedApply), "got %v", err)
	assert.True(t, result.Forced)
	assert.Equal(t, []string{"bad.patch"}, f.appliedNames(), "a forced patch stops the batch")
	assert.True(t, f.pcExists("bad.patch~refresh"))
	assert.Equal(t, []EventKind{Applying, AppliedForced, NowAt}, f.kinds())

	st, err := f.engine.Status(f.ctx, "bad.patch")
	require.NoError(t, err)
	assert.Equal(t, "applied (needs refresh)", st.Status().String())
}

func TestPush_HardFailureAlwaysRollsBack(t *testing.T) {
	patcher := newFakePatcher()
	var f *fixture
	patcher.on("base.patch", func(opts patchcmd.Options) error {
		if opts.DryRun {
			return nil
		}
		f.write("base.txt", "garbage\n")
		return &patchcmd.RunError{Command: "patch", ExitCode: 2, Output: "malformed patch"}
	})

	f = newFixture(t, patcher, nil)
	f.writeSeries("base.patch")
	f.writePatch("base.patch", modifyBase)
	f.write("base.txt", "a\nb\nc\n")

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next, Force: true})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrForcedApply))
	assert.Equal(t, "a\nb\nc\n", f.read("base.txt"))
	assert.Empty(t, f.appliedNames())
	assert.False(t, f.pcExists("base.patch~refresh"))
}

func TestPush_RefreshGate(t *testing.T) {
	patcher := newFakePatcher()
	f := newFixture(t, patcher, nil)
	f.writeSeries("p1.patch")
	f.writePatch("p1.patch", createF1)
	require.NoError(t, f.engine.backups.MarkNeedsRefresh("p1.patch"))
	before := f.snapshot()

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNeedsRefresh))
	assert.Empty(t, patcher.calls)
	assert.Empty(t, f.events)
	assert.Equal(t, before, f.snapshot())

	_, err = f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next, Force: true})
	require.NoError(t, err)
	assert.False(t, f.pcExists("p1.patch~refresh"), "a clean apply clears the flag")
}

func TestPush_FailurePersistsSuccessfulPrefix(t *testing.T) {
	patcher := newFakePatcher()
	patcher.on("bad.patch", func(opts patchcmd.Options) error { return errConflict })

	f := newFixture(t, patcher, nil)
	f.writeSeries("ok.patch", "bad.patch", "later.patch")
	f.writePatch("ok.patch", createF1)
	f.writePatch("bad.patch", conflictBase)
	f.writePatch("later.patch", createF2)

	result, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.All})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoesNotApply))
	require.Len(t, result.Applied, 1)
	assert.Equal(t, []string{"ok.patch"}, f.appliedNames())
}

func TestPush_NothingToDo(t *testing.T) {
	f := newFixture(t, newFakePatcher(), nil)
	f.writeSeries("p1.patch")

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.All})
	require.NoError(t, err)

	_, err = f.engine.Push(f.ctx, &PushRequest{Mode: planner.All})
	assert.True(t, errors.Is(err, ErrAllPatchesApplied))
	assert.True(t, IsNoop(err))
}

func TestPush_EmptySeries(t *testing.T) {
	f := newFixture(t, newFakePatcher(), nil)
	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next})
	assert.True(t, errors.Is(err, ErrNoPatchesInSeries))
	assert.False(t, IsNoop(err))
}

func TestPush_DryRunChangesNothing(t *testing.T) {
	patcher := newFakePatcher()
	f := newFixture(t, patcher, nil)
	f.writeSeries("p1.patch", "p2.patch")
	f.writePatch("p1.patch", createF1)
	f.writePatch("p2.patch", createF2)

	result, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.All, DryRun: true})
	require.NoError(t, err)
	assert.Len(t, result.Applied, 2)
	assert.Empty(t, f.appliedNames())
	assert.Empty(t, patcher.realRuns())
	assert.Len(t, patcher.calls, 2)
	assert.False(t, f.pcExists("p1.patch"))
}

func TestPush_SeriesOptionsReachPatchTool(t *testing.T) {
	patcher := newFakePatcher()
	f := newFixture(t, patcher, nil)
	f.writeSeries("p1.patch -p0 -R")
	f.writePatch("p1.patch", "--- f1\n+++ f1\n@@ -1 +0,0 @@\n-one\n")

	_, err := f.engine.Push(f.ctx, &PushRequest{Mode: planner.Next})
	require.NoError(t, err)

	runs := patcher.realRuns()
	require.Len(t, runs, 1)
	assert.Equal(t, 0, runs[0].Strip)
	assert.True(t, runs[0].Reverse)
}
