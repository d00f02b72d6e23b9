package series

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patch"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantPatch   *patch.Patch
		wantComment string
		wantErr     bool
	}{
		{name: "blank", text: "   "},
		{name: "comment", text: "# a comment", wantComment: "# a comment"},
		{name: "indented comment", text: "  # x", wantComment: "  # x"},
		{name: "plain", text: "fix.patch", wantPatch: &patch.Patch{Name: "fix.patch", Strip: 1}},
		{name: "short strip", text: "fix.patch -p0", wantPatch: &patch.Patch{Name: "fix.patch", Strip: 0}},
		{name: "separate strip", text: "fix.patch -p 2", wantPatch: &patch.Patch{Name: "fix.patch", Strip: 2}},
		{name: "long strip", text: "fix.patch --strip=3", wantPatch: &patch.Patch{Name: "fix.patch", Strip: 3}},
		{name: "reverse", text: "fix.patch -R", wantPatch: &patch.Patch{Name: "fix.patch", Strip: 1, Reverse: true}},
		{
			name:      "strip and long reverse",
			text:      "patch1 -p0 --reverse",
			wantPatch: &patch.Patch{Name: "patch1", Strip: 0, Reverse: true},
		},
		{
			name:        "trailing comment",
			text:        "fix.patch -p0 # upstream",
			wantPatch:   &patch.Patch{Name: "fix.patch", Strip: 0},
			wantComment: " upstream",
		},
		{
			name:      "unknown option keeps patch",
			text:      "fix.patch --fuzz=3",
			wantPatch: &patch.Patch{Name: "fix.patch", Strip: 1},
			wantErr:   true,
		},
		{
			name:      "stray argument",
			text:      "fix.patch extra",
			wantPatch: &patch.Patch{Name: "fix.patch", Strip: 1},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := ParseLine(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			require.NotNil(t, line)
			assert.Equal(t, tt.wantPatch, line.Patch())
			assert.Equal(t, tt.wantComment, line.Comment())
			assert.Equal(t, tt.text, line.String())
		})
	}
}

func writeSeries(t *testing.T, content string) (string, *Series) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644))
	s, err := Open(fsops.NewRealFS(), dir)
	require.NoError(t, err)
	return dir, s
}

func TestSeries_RoundTrip(t *testing.T) {
	content := "# header comment\n\npatch1 -p0 --reverse\npatch2 # keep me\n  \npatch3\n"
	dir, s := writeSeries(t, content)

	assert.Equal(t, []string{"patch1", "patch2", "patch3"}, patch.Names(s.Patches()))
	p1, err := s.Lookup("patch1")
	require.NoError(t, err)
	assert.Equal(t, 0, p1.Strip)
	assert.True(t, p1.Reverse)

	require.NoError(t, s.Save())
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestSeries_MissingFileIsEmpty(t *testing.T) {
	s, err := Open(fsops.NewRealFS(), filepath.Join(t.TempDir(), "patches"))
	require.NoError(t, err)

	exists, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, s.IsEmpty())
	assert.Nil(t, s.TopPatch())
	assert.Nil(t, s.FirstPatch())
}

func TestSeries_ReadCollectsWarnings(t *testing.T) {
	_, s := writeSeries(t, "a --bogus\nb\nb\n")

	assert.Equal(t, []string{"a", "b"}, patch.Names(s.Patches()))
	assert.Len(t, s.Warnings(), 2)
	assert.True(t, errors.Is(s.Warnings()[1], ErrPatchAlreadyExists))
}

func TestSeries_ReadIsIdempotent(t *testing.T) {
	_, s := writeSeries(t, "a\nb\n")
	require.NoError(t, s.AddPatch(patch.New("c")))
	require.NoError(t, s.Read())
	require.NoError(t, s.Read())
	assert.Equal(t, []string{"a", "b"}, patch.Names(s.Patches()))
}

func TestSeries_Insertion(t *testing.T) {
	_, s := writeSeries(t, "a\nb\nc\n")

	require.NoError(t, s.AddPatches([]patch.Patch{patch.New("x"), patch.New("y")}, &patch.Patch{Name: "a"}))
	assert.Equal(t, []string{"a", "x", "y", "b", "c"}, patch.Names(s.Patches()))

	require.NoError(t, s.AddPatches([]patch.Patch{patch.New("z")}, nil))
	assert.Equal(t, "z", s.TopPatch().Name)

	require.NoError(t, s.InsertPatches([]patch.Patch{patch.New("first")}))
	assert.Equal(t, "first", s.FirstPatch().Name)

	err := s.AddPatch(patch.Patch{Name: "b", Strip: 0})
	assert.True(t, errors.Is(err, ErrPatchAlreadyExists))

	err = s.AddPatches([]patch.Patch{patch.New("q")}, &patch.Patch{Name: "missing"})
	assert.True(t, errors.Is(err, ErrUnknownPatch))
	assert.False(t, s.IsPatch(patch.New("q")))

	err = s.InsertPatches([]patch.Patch{patch.New("dup"), patch.New("dup")})
	assert.True(t, errors.Is(err, ErrPatchAlreadyExists))
	assert.False(t, s.IsPatch(patch.New("dup")))
}

func TestSeries_NewLinesCarryOptions(t *testing.T) {
	dir, s := writeSeries(t, "")
	require.NoError(t, s.AddPatch(patch.Patch{Name: "r.patch", Strip: 0, Reverse: true}))
	require.NoError(t, s.AddPatch(patch.New("d.patch")))
	require.NoError(t, s.Save())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, "r.patch -p0 -R\nd.patch\n", string(data))
}

func TestSeries_RemoveAndReplace(t *testing.T) {
	_, s := writeSeries(t, "a\nb # note\nc\n")

	require.NoError(t, s.Replace(patch.New("b"), patch.Patch{Name: "b2", Strip: 0}))
	assert.Equal(t, []string{"a", "b2", "c"}, patch.Names(s.Patches()))
	assert.False(t, s.IsPatch(patch.New("b")))
	assert.Equal(t, "b2 -p0 # note", s.Lines()[1].String())
	assert.Equal(t, " note", s.Lines()[1].Comment())

	require.NoError(t, s.RemovePatch(patch.New("a")))
	assert.Equal(t, []string{"b2", "c"}, patch.Names(s.Patches()))

	err := s.RemovePatch(patch.New("a"))
	assert.True(t, errors.Is(err, ErrUnknownPatch))

	err = s.Replace(patch.New("c"), patch.New("b2"))
	assert.True(t, errors.Is(err, ErrPatchAlreadyExists))
}

func TestSeries_PositionalQueries(t *testing.T) {
	_, s := writeSeries(t, "# c\na\n\nb\nc\n")
	a, b, c := patch.New("a"), patch.New("b"), patch.New("c")

	after, err := s.PatchesAfter(a)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, patch.Names(after))

	after, err = s.PatchesAfter(c)
	require.NoError(t, err)
	assert.Empty(t, after)

	before, err := s.PatchesBefore(a)
	require.NoError(t, err)
	assert.Empty(t, before)

	until, err := s.PatchesUntil(b)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, patch.Names(until))

	next, err := s.PatchAfter(c)
	require.NoError(t, err)
	assert.Nil(t, next)

	prev, err := s.PatchBefore(c)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "b", prev.Name)

	prev, err = s.PatchBefore(a)
	require.NoError(t, err)
	assert.Nil(t, prev)

	for _, query := range []func(patch.Patch) ([]patch.Patch, error){s.PatchesAfter, s.PatchesBefore, s.PatchesUntil} {
		_, err := query(patch.New("missing"))
		assert.True(t, errors.Is(err, ErrUnknownPatch))
	}
	_, err = s.PatchAfter(patch.New("missing"))
	assert.True(t, errors.Is(err, ErrUnknownPatch))
	_, err = s.PatchBefore(patch.New("missing"))
	assert.True(t, errors.Is(err, ErrUnknownPatch))
}

func TestSeries_PositionalLaws(t *testing.T) {
	_, s := writeSeries(t, "p1\np2\n# gap\np3\np4\n")
	all := s.Patches()

	for _, p := range all {
		next, err := s.PatchAfter(p)
		require.NoError(t, err)
		if next != nil {
			back, err := s.PatchBefore(*next)
			require.NoError(t, err)
			require.NotNil(t, back)
			assert.True(t, back.Equal(p), "patch_before(patch_after(%s))", p)
		}

		before, err := s.PatchesBefore(p)
		require.NoError(t, err)
		after, err := s.PatchesAfter(p)
		require.NoError(t, err)

		partition := append(append(before, p), after...)
		assert.Equal(t, patch.Names(all), patch.Names(partition))
	}
}

func TestSeries_LookupIgnoresOptions(t *testing.T) {
	_, s := writeSeries(t, "a -p0\n")

	got, err := s.Get(patch.Patch{Name: "a", Strip: 5})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Strip)
	assert.True(t, s.IsPatch(patch.New("a")))
}
