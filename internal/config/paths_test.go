package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaths(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		paths := NewPaths("/work/proj", "", "")
		assert.Equal(t, "/work/proj", paths.Root)
		assert.Equal(t, filepath.Join("/work/proj", "patches"), paths.Patches)
		assert.Equal(t, filepath.Join("/work/proj", ".pc"), paths.PC)
	})

	t.Run("relative overrides", func(t *testing.T) {
		paths := NewPaths("/work/proj", "debian/patches", ".pc-alt")
		assert.Equal(t, "/work/proj/debian/patches", paths.Patches)
		assert.Equal(t, "/work/proj/.pc-alt", paths.PC)
	})

	t.Run("absolute overrides", func(t *testing.T) {
		paths := NewPaths("/work/proj", "/srv/patches/", "/tmp/pc")
		assert.Equal(t, "/srv/patches", paths.Patches)
		assert.Equal(t, "/tmp/pc", paths.PC)
	})
}

func TestPaths_Files(t *testing.T) {
	paths := NewPaths("/work/proj", "", "")
	assert.Equal(t, "/work/proj/patches/sub/fix.patch", paths.PatchFile("sub/fix.patch"))
	assert.Equal(t, "/work/proj/src/main.c", paths.WorkFile("src/main.c"))
	assert.Equal(t, "proj", paths.RootName())
}
