package state

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/series"
)

func TestOpen_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".pc")

	db, err := Open(fsops.NewRealFS(), dir)
	require.NoError(t, err)
	assert.Empty(t, db.AppliedPatches())
	assert.Nil(t, db.TopPatch())

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "open must not create the directory")
}

func TestDB_SaveCreatesVersionMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".pc")
	fs := fsops.NewRealFS()

	db, err := Open(fs, dir)
	require.NoError(t, err)
	require.NoError(t, db.AddPatch(patch.New("p1")))
	require.NoError(t, db.AddPatch(patch.New("p2")))
	require.NoError(t, db.Save())

	version, err := os.ReadFile(filepath.Join(dir, VersionFile))
	require.NoError(t, err)
	assert.Equal(t, "2\n", string(version))

	applied, err := os.ReadFile(filepath.Join(dir, AppliedFile))
	require.NoError(t, err)
	assert.Equal(t, "p1\np2\n", string(applied))

	reopened, err := Open(fs, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, patch.Names(reopened.AppliedPatches()))
	assert.Equal(t, "p2", reopened.TopPatch().Name)
}

func TestOpen_VersionGate(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{name: "supported", content: "2"},
		{name: "supported with newline", content: "2\n"},
		{name: "older", content: "1\n", wantErr: true},
		{name: "newer", content: "3", wantErr: true},
		{name: "garbage", content: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, VersionFile), []byte(tt.content), 0644))

			_, err := Open(fsops.NewRealFS(), dir)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedVersion))
				assert.False(t, errors.Is(err, series.ErrUnknownPatch))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPatchState_Status(t *testing.T) {
	p := patch.New("p")
	tests := []struct {
		name  string
		state PatchState
		want  Status
	}{
		{name: "unapplied", state: PatchState{Patch: p}, want: Unapplied},
		{name: "applied", state: PatchState{Patch: p, Applied: true}, want: Applied},
		{name: "forced", state: PatchState{Patch: p, Applied: true, NeedsRefresh: true}, want: AppliedNeedsRefresh},
		{name: "stale flag", state: PatchState{Patch: p, NeedsRefresh: true}, want: NeedsRefresh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Status())
			assert.Equal(t, tt.state.NeedsRefresh, tt.state.Blocked())
			assert.NotEqual(t, "unknown", tt.want.String())
		})
	}
}

func TestLock(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".pc")

	lock, err := Acquire(dir)
	require.NoError(t, err)

	_, err = Acquire(dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	require.NoError(t, lock.Release())

	again, err := Acquire(dir)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
