package patch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatch_EqualityByName(t *testing.T) {
	a := Patch{Name: "fix.patch", Strip: 0, Reverse: true}
	b := New("fix.patch")

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(New("other.patch")))
	assert.Equal(t, "fix.patch", a.String())
}

func TestPatch_Options(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  string
	}{
		{name: "defaults", patch: New("a"), want: ""},
		{name: "strip zero", patch: Patch{Name: "a", Strip: 0}, want: " -p0"},
		{name: "reverse", patch: Patch{Name: "a", Strip: 1, Reverse: true}, want: " -R"},
		{name: "both", patch: Patch{Name: "a", Strip: 2, Reverse: true}, want: " -p2 -R"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.patch.Options())
		})
	}
}

func TestHeader(t *testing.T) {
	content := "Description: fix the build\nAuthor: someone\n\nIndex: a/f.c\n===\n--- a/f.c\n+++ b/f.c\n"
	assert.Equal(t, "Description: fix the build\nAuthor: someone\n\n", string(Header([]byte(content))))

	assert.Empty(t, Header([]byte("--- a/f\n+++ b/f\n")))
	assert.Equal(t, "git header\n", string(Header([]byte("git header\ndiff --git a/x b/x\n"))))
	assert.Equal(t, "only text\n", string(Header([]byte("only text"))))
}

func TestHeader_KeepsFormatPatchSeparator(t *testing.T) {
	content := "Subject: [PATCH] fix\n\n---\n f.c | 2 +-\n 1 file changed\n\ndiff --git a/f.c b/f.c\n--- a/f.c\n+++ b/f.c\n"
	assert.Equal(t, "Subject: [PATCH] fix\n\n---\n f.c | 2 +-\n 1 file changed\n\n", string(Header([]byte(content))))
}

func TestTouchedFiles_AbsoluteNames(t *testing.T) {
	content := "--- /proj/f.txt\n+++ /proj/f.txt\n@@ -1 +1 @@\n-a\n+b\n"
	files, err := TouchedFiles([]byte(content), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"f.txt"}, files)

	files, err = TouchedFiles([]byte(content), 0)
	require.NoError(t, err)
	assert.Empty(t, files)
}

const multiFile = `Some description

Index: proj/existing.txt
===================================================================
--- proj.orig/existing.txt
+++ proj/existing.txt
@@ -1 +1 @@
-old
+new
Index: proj/created.txt
===================================================================
--- /dev/null
+++ proj/created.txt
@@ -0,0 +1 @@
+hello
Index: proj/gone/deleted.txt
===================================================================
--- proj.orig/gone/deleted.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`

func TestTouchedFiles(t *testing.T) {
	files, err := TouchedFiles([]byte(multiFile), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"created.txt", "existing.txt", "gone/deleted.txt"}, files)
}

func TestTouchedFiles_StripZero(t *testing.T) {
	content := "--- f.txt\n+++ f.txt\n@@ -1 +1 @@\n-a\n+b\n"
	files, err := TouchedFiles([]byte(content), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"f.txt"}, files)
}

func TestStripPath(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		strip  int
		want   string
		wantOK bool
	}{
		{name: "strip one", in: "a/src/main.c", strip: 1, want: "src/main.c", wantOK: true},
		{name: "strip zero", in: "main.c", strip: 0, want: "main.c", wantOK: true},
		{name: "strip two", in: "x/y/z", strip: 2, want: "z", wantOK: true},
		{name: "too few components", in: "main.c", strip: 1},
		{name: "dev null", in: "/dev/null", strip: 1},
		{name: "absolute strip zero", in: "/etc/passwd", strip: 0},
		{name: "absolute strip one", in: "/tmp/x", strip: 1, want: "tmp/x", wantOK: true},
		{name: "absolute strip two", in: "/tmp/x/y", strip: 2, want: "x/y", wantOK: true},
		{name: "escaping", in: "a/../../x", strip: 1},
		{name: "doubled slash", in: "a//b", strip: 1, want: "b", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StripPath(tt.in, tt.strip)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Names([]Patch{New("a"), New("b")}))
	assert.Empty(t, Names(nil))
}
