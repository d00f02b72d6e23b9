// Package fsops provides filesystem operations with safety guarantees.
//
// All filesystem mutations in pquilt go through the FS interface, which
// provides abstractions for common operations along with path validation
// so that working-tree paths can never escape the project root.
//
// Key features:
//   - Atomic writes using temp file + rename
//   - Mode-preserving copies that create parent directories
//   - Path validation for relative paths and patch names
//   - Testable via the FS interface
package fsops

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
)

// FS provides an abstraction for filesystem operations.
// All filesystem mutations in pquilt must go through this interface.
type FS interface {
	// Lstat returns file info without following symlinks.
	Lstat(path string) (os.FileInfo, error)

	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// Remove removes a file or empty directory.
	Remove(path string) error

	// RemoveAll removes a path and all its contents.
	RemoveAll(path string) error

	// Rename moves oldpath to newpath, creating the parent of newpath.
	Rename(oldpath, newpath string) error

	// Copy copies a regular file from src to dst, preserving its mode.
	Copy(src, dst string) error

	// AtomicWrite writes data to path atomically using temp file + rename.
	AtomicWrite(path string, data []byte, perm os.FileMode) error

	// ReadFile reads the entire contents of a file.
	ReadFile(path string) ([]byte, error)

	// Exists checks if a path exists.
	Exists(path string) (bool, error)

	// Touch creates path if missing, creating parent directories, and sets
	// its modification time to now.
	Touch(path string) error

	// Chmod changes the mode of path.
	Chmod(path string, mode os.FileMode) error

	// ListFiles returns the sorted slash-separated paths of all regular
	// files below dir, relative to dir. A missing dir yields no files.
	ListFiles(dir string) ([]string, error)

	// TempDir creates a new scratch directory inside dir.
	TempDir(dir, pattern string) (string, error)

	// ValidateRelPath validates a relative path for safety.
	ValidateRelPath(relPath string) error

	// ValidateIdentifier validates a patch name for safety.
	ValidateIdentifier(id string) error
}

// RealFS implements FS using actual OS operations.
type RealFS struct{}

// NewRealFS creates a new RealFS.
func NewRealFS() *RealFS {
	return &RealFS{}
}

// Lstat returns file info without following symlinks.
func (fs *RealFS) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

// MkdirAll creates a directory and all parent directories.
func (fs *RealFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// Remove removes a file or empty directory.
func (fs *RealFS) Remove(path string) error {
	return os.Remove(path)
}

// RemoveAll removes a path and all its contents.
func (fs *RealFS) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Rename moves oldpath to newpath.
func (fs *RealFS) Rename(oldpath, newpath string) error {
	if err := os.MkdirAll(filepath.Dir(newpath), 0755); err != nil {
		return errors.Errorf("failed to create parent directory: %w", err)
	}
	return os.Rename(oldpath, newpath)
}

// Copy copies a regular file from src to dst.
// Follows symlinks to copy the target content, not the symlink itself.
func (fs *RealFS) Copy(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return errors.Errorf("failed to stat source: %w", err)
	}
	if srcInfo.IsDir() {
		return errors.Errorf("cannot copy directory %q", src)
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Errorf("failed to open source: %w", err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return errors.Errorf("failed to create parent directory: %w", err)
	}

	// A previous entry may be read-only or a symlink; replace it.
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return errors.Errorf("failed to remove existing destination: %w", err)
		}
	}

	dstFile, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode().Perm())
	if err != nil {
		return errors.Errorf("failed to create destination: %w", err)
	}
	defer func() {
		_ = dstFile.Close()
	}()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Errorf("failed to copy file contents: %w", err)
	}

	// OpenFile applies the umask, restore the exact source mode.
	if err := dstFile.Chmod(srcInfo.Mode().Perm()); err != nil {
		return errors.Errorf("failed to set permissions: %w", err)
	}

	return dstFile.Sync()
}

// AtomicWrite writes data to path atomically using temp file + rename.
func (fs *RealFS) AtomicWrite(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Errorf("failed to create parent directory: %w", err)
	}

	// Create temp file in the same directory as target
	tmpFile, err := os.CreateTemp(dir, ".pquilt-tmp-*")
	if err != nil {
		return errors.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on error
	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return errors.Errorf("failed to write to temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return errors.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return errors.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return errors.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return errors.Errorf("failed to rename temp file: %w", err)
	}

	tmpFile = nil
	return nil
}

// ReadFile reads the entire contents of a file.
func (fs *RealFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Exists checks if a path exists.
func (fs *RealFS) Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Touch creates path if missing and updates its modification time.
func (fs *RealFS) Touch(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("failed to create parent directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Errorf("failed to create %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.Errorf("failed to close %s: %w", path, err)
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// Chmod changes the mode of path.
func (fs *RealFS) Chmod(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}

// ListFiles returns all regular files below dir as sorted relative paths.
func (fs *RealFS) ListFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("failed to list %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

// TempDir creates a new scratch directory inside dir. An empty dir uses the
// system temp directory.
func (fs *RealFS) TempDir(dir, pattern string) (string, error) {
	return os.MkdirTemp(dir, pattern)
}

// ValidateRelPath validates a relative path for safety.
// Returns an error if the path is invalid or unsafe.
func (fs *RealFS) ValidateRelPath(relPath string) error {
	cleaned := filepath.Clean(relPath)

	if cleaned == "" || cleaned == "." {
		return errors.New("invalid path: empty or current directory")
	}

	if filepath.IsAbs(cleaned) {
		return errors.Errorf("invalid path: must be relative, got absolute path %q", cleaned)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return errors.Errorf("invalid path: path traversal not allowed in %q", cleaned)
	}

	return nil
}

// ValidateIdentifier validates a patch name for safety. Patch names may
// contain sub-directories but must stay inside the patches directory.
func (fs *RealFS) ValidateIdentifier(id string) error {
	if id == "" {
		return errors.New("invalid patch name: empty")
	}
	if strings.ContainsAny(id, " \t\n#") {
		return errors.Errorf("invalid patch name %q: must not contain whitespace or '#'", id)
	}
	if err := fs.ValidateRelPath(id); err != nil {
		return errors.Errorf("invalid patch name %q: %w", id, err)
	}
	return nil
}
