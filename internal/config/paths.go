// Package config manages pquilt configuration and filesystem paths.
//
// A project is a working tree with a patches directory (the series file and
// the patch files) and a metadata directory (applied patches and backups).
// Their names default to "patches" and ".pc" and can be changed with the
// QUILT_PATCHES and QUILT_PC environment variables or the config file.
package config

import (
	"path/filepath"
)

const (
	// DefaultPatchesDir is the patches directory name.
	DefaultPatchesDir = "patches"

	// DefaultPCDir is the metadata directory name.
	DefaultPCDir = ".pc"
)

// Paths contains all the filesystem paths of a project.
type Paths struct {
	// Root is the working tree patches apply to.
	Root string

	// Patches holds the series file and the patch files.
	Patches string

	// PC is the metadata directory.
	PC string
}

// NewPaths resolves the patches and metadata directories against root.
// Absolute directories are used as given.
func NewPaths(root, patchesDir, pcDir string) Paths {
	if patchesDir == "" {
		patchesDir = DefaultPatchesDir
	}
	if pcDir == "" {
		pcDir = DefaultPCDir
	}
	return Paths{
		Root:    root,
		Patches: resolve(root, patchesDir),
		PC:      resolve(root, pcDir),
	}
}

func resolve(root, dir string) string {
	if filepath.IsAbs(dir) {
		return filepath.Clean(dir)
	}
	return filepath.Join(root, dir)
}

// PatchFile returns the location of a patch file.
func (p Paths) PatchFile(name string) string {
	return filepath.Join(p.Patches, filepath.FromSlash(name))
}

// WorkFile returns the location of a working-tree file.
func (p Paths) WorkFile(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// RootName is the directory name used in diff labels.
func (p Paths) RootName() string {
	return filepath.Base(p.Root)
}
