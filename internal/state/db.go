// Package state manages the metadata directory: the list of applied
// patches, its format version, the per-patch status record and the
// advisory lock held by mutating commands.
package state

import (
	"path/filepath"
	"strconv"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/series"
)

// Version is the supported metadata format version.
const Version = 2

const (
	// AppliedFile lists the applied patches in application order.
	AppliedFile = "applied-patches"

	// VersionFile holds the metadata format version.
	VersionFile = ".version"
)

// ErrUnsupportedVersion indicates metadata written by an incompatible tool.
var ErrUnsupportedVersion = errors.Base("unsupported metadata version")

// DB is the list of applied patches. The last entry is the top patch.
type DB struct {
	*series.Series

	fs  fsops.FS
	dir string
}

// Open reads the applied patches from the metadata directory dir. If a
// version marker exists it must match Version. A missing directory yields
// an empty DB.
func Open(fs fsops.FS, dir string) (*DB, error) {
	db := &DB{
		Series: series.New(fs, dir, AppliedFile),
		fs:     fs,
		dir:    dir,
	}
	if err := db.checkVersion(); err != nil {
		return nil, err
	}
	if err := db.Read(); err != nil {
		return nil, err
	}
	return db, nil
}

// Dir returns the metadata directory.
func (db *DB) Dir() string {
	return db.dir
}

func (db *DB) versionPath() string {
	return filepath.Join(db.dir, VersionFile)
}

func (db *DB) checkVersion() error {
	path := db.versionPath()
	exists, err := db.fs.Exists(path)
	if err != nil {
		return errors.Errorf("failed to check %s: %w", path, err)
	}
	if !exists {
		return nil
	}
	data, err := db.fs.ReadFile(path)
	if err != nil {
		return errors.Errorf("failed to read %s: %w", path, err)
	}
	got := strings.TrimSpace(string(data))
	if got != strconv.Itoa(Version) {
		return errors.Errorf("%w: %s has version %q, only version %d is supported", ErrUnsupportedVersion, db.dir, got, Version)
	}
	return nil
}

// Create creates the metadata directory and its version marker.
func (db *DB) Create() error {
	if err := db.fs.MkdirAll(db.dir, 0755); err != nil {
		return errors.Errorf("failed to create %s: %w", db.dir, err)
	}
	if err := db.fs.AtomicWrite(db.versionPath(), []byte(strconv.Itoa(Version)+"\n"), 0644); err != nil {
		return errors.Errorf("failed to write version marker: %w", err)
	}
	return nil
}

// Save creates the metadata directory if needed and writes the list.
func (db *DB) Save() error {
	if err := db.Create(); err != nil {
		return err
	}
	return db.Series.Save()
}

// AddPatch records p as applied. Only the name is stored; options stay in
// the series.
func (db *DB) AddPatch(p patch.Patch) error {
	return db.Series.AddPatch(patch.New(p.Name))
}

// AppliedPatches returns the applied patches in application order.
func (db *DB) AppliedPatches() []patch.Patch {
	return db.Patches()
}
