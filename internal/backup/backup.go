// Package backup keeps the pristine copies a patch needs to be undone.
//
// Every applied patch owns a directory below the metadata directory that
// mirrors the working-tree paths of the files it touches. An entry holds
// the content the file had before the patch, or is an empty placeholder
// when the file did not exist. Beside the directory lives the refresh flag,
// set when the patch was forced over conflicts.
package backup

import (
	"os"
	"path"
	"path/filepath"
	"sort"

	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/fsops"
)

// Outcome describes what Backup did with a file.
type Outcome int

const (
	// Skipped means nothing was written.
	Skipped Outcome = iota
	// Copied means the content and mode of the file were copied.
	Copied
	// Placeholder means an empty file now records that the source did not
	// exist.
	Placeholder
)

func (o Outcome) String() string {
	switch o {
	case Copied:
		return "copied"
	case Placeholder:
		return "placeholder"
	default:
		return "skipped"
	}
}

// Backup copies src to dest. With copyEmpty an empty or missing src still
// produces an (empty) dest; without it nothing is written for them.
func Backup(fs fsops.FS, src, dest string, copyEmpty bool) (Outcome, error) {
	info, err := fs.Lstat(src)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		if !copyEmpty {
			return Skipped, nil
		}
		if err := fs.AtomicWrite(dest, nil, 0644); err != nil {
			return Skipped, errors.Errorf("failed to create placeholder %s: %w", dest, err)
		}
		return Placeholder, nil
	default:
		return Skipped, errors.Errorf("failed to stat %s: %w", src, err)
	}

	if info.IsDir() {
		return Skipped, errors.Errorf("cannot back up directory %s", src)
	}
	if info.Size() == 0 && !copyEmpty {
		return Skipped, nil
	}
	if err := fs.Copy(src, dest); err != nil {
		return Skipped, errors.Errorf("failed to back up %s: %w", src, err)
	}
	return Copied, nil
}

const (
	// TimestampFile marks when a patch was last applied or refreshed.
	TimestampFile = ".timestamp"

	// RefreshSuffix names the sentinel of a patch that needs a refresh.
	RefreshSuffix = "~refresh"
)

// Store manages the per-patch backup directories below a metadata
// directory.
type Store struct {
	fs  fsops.FS
	dir string
}

// NewStore returns a Store rooted at the metadata directory dir.
func NewStore(fs fsops.FS, dir string) *Store {
	return &Store{fs: fs, dir: dir}
}

// Dir returns the backup directory of a patch.
func (s *Store) Dir(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name))
}

// Path returns the backup entry of file within a patch.
func (s *Store) Path(name, file string) string {
	return filepath.Join(s.Dir(name), filepath.FromSlash(file))
}

func (s *Store) refreshPath(name string) string {
	return filepath.Join(s.dir, filepath.FromSlash(name)+RefreshSuffix)
}

// Exists reports whether the patch has a backup directory.
func (s *Store) Exists(name string) (bool, error) {
	return s.fs.Exists(s.Dir(name))
}

// Files returns the backed-up files of a patch, sorted, without the
// timestamp marker.
func (s *Store) Files(name string) ([]string, error) {
	all, err := s.fs.ListFiles(s.Dir(name))
	if err != nil {
		return nil, err
	}
	files := make([]string, 0, len(all))
	for _, f := range all {
		if f == TimestampFile {
			continue
		}
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// IsEmpty reports whether the patch has no backed-up files. A missing
// directory counts as empty.
func (s *Store) IsEmpty(name string) (bool, error) {
	files, err := s.Files(name)
	if err != nil {
		return false, err
	}
	return len(files) == 0, nil
}

// Has reports whether the patch has a backup entry for file.
func (s *Store) Has(name, file string) (bool, error) {
	return s.fs.Exists(s.Path(name, file))
}

// IsPlaceholder reports whether the entry for file records that the file
// did not exist before the patch.
func (s *Store) IsPlaceholder(name, file string) (bool, error) {
	info, err := s.fs.Lstat(s.Path(name, file))
	if err != nil {
		return false, errors.Errorf("failed to stat backup of %s: %w", file, err)
	}
	return info.Size() == 0, nil
}

// Snapshot records the current state of root/file in the backup of a
// patch. An existing entry is kept, as it already holds the pre-patch
// state.
func (s *Store) Snapshot(name, root, file string) (Outcome, error) {
	dest := s.Path(name, file)
	exists, err := s.fs.Exists(dest)
	if err != nil {
		return Skipped, errors.Errorf("failed to check backup of %s: %w", file, err)
	}
	if exists {
		return Skipped, nil
	}
	return Backup(s.fs, filepath.Join(root, filepath.FromSlash(file)), dest, true)
}

// Restore copies every backed-up file of a patch back into root. Files the
// patch created are deleted from root unless keep is set.
func (s *Store) Restore(name, root string, keep bool) error {
	files, err := s.Files(name)
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := s.RestoreFile(name, root, file, keep); err != nil {
			return err
		}
	}
	return nil
}

// RestoreFile restores a single backed-up file into root.
func (s *Store) RestoreFile(name, root, file string, keep bool) error {
	src := s.Path(name, file)
	dest := filepath.Join(root, filepath.FromSlash(file))

	if !keep {
		if err := s.fs.RemoveAll(dest); err != nil {
			return errors.Errorf("failed to remove %s: %w", file, err)
		}
	}

	info, err := s.fs.Lstat(src)
	if err != nil {
		return errors.Errorf("failed to stat backup of %s: %w", file, err)
	}
	if info.Size() == 0 {
		if keep {
			return nil
		}
		return s.pruneParents(root, file)
	}
	if err := s.fs.Copy(src, dest); err != nil {
		return errors.Errorf("failed to restore %s: %w", file, err)
	}
	return nil
}

// pruneParents removes the directories above file that became empty once
// file was removed, stopping below root.
func (s *Store) pruneParents(root, file string) error {
	for dir := path.Dir(filepath.ToSlash(file)); dir != "." && dir != "/"; dir = path.Dir(dir) {
		err := s.fs.Remove(filepath.Join(root, filepath.FromSlash(dir)))
		if err == nil || os.IsNotExist(err) {
			continue
		}
		// Not empty, so nothing above it is either.
		return nil
	}
	return nil
}

// RemoveFile drops the entry for file from the backup of a patch.
func (s *Store) RemoveFile(name, file string) error {
	if err := s.fs.Remove(s.Path(name, file)); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("failed to remove backup of %s: %w", file, err)
	}
	return nil
}

// Create makes sure the backup directory of a patch exists.
func (s *Store) Create(name string) error {
	if err := s.fs.MkdirAll(s.Dir(name), 0755); err != nil {
		return errors.Errorf("failed to create backup directory for %s: %w", name, err)
	}
	return nil
}

// Reset replaces the backup directory of a patch with an empty one.
func (s *Store) Reset(name string) error {
	if err := s.Remove(name); err != nil {
		return err
	}
	return s.Create(name)
}

// Remove deletes the backup directory of a patch.
func (s *Store) Remove(name string) error {
	if err := s.fs.RemoveAll(s.Dir(name)); err != nil {
		return errors.Errorf("failed to remove backup directory for %s: %w", name, err)
	}
	return nil
}

// Touch updates the timestamp marker of a patch.
func (s *Store) Touch(name string) error {
	if err := s.fs.Touch(filepath.Join(s.Dir(name), TimestampFile)); err != nil {
		return errors.Errorf("failed to touch timestamp of %s: %w", name, err)
	}
	return nil
}

// ClearTimestamp removes the timestamp marker of a patch.
func (s *Store) ClearTimestamp(name string) error {
	err := s.fs.Remove(filepath.Join(s.Dir(name), TimestampFile))
	if err != nil && !os.IsNotExist(err) {
		return errors.Errorf("failed to remove timestamp of %s: %w", name, err)
	}
	return nil
}

// NeedsRefresh reports whether the refresh flag of a patch is set.
func (s *Store) NeedsRefresh(name string) (bool, error) {
	return s.fs.Exists(s.refreshPath(name))
}

// MarkNeedsRefresh sets the refresh flag of a patch.
func (s *Store) MarkNeedsRefresh(name string) error {
	if err := s.fs.Touch(s.refreshPath(name)); err != nil {
		return errors.Errorf("failed to mark %s for refresh: %w", name, err)
	}
	return nil
}

// ClearNeedsRefresh clears the refresh flag of a patch.
func (s *Store) ClearNeedsRefresh(name string) error {
	err := s.fs.Remove(s.refreshPath(name))
	if err != nil && !os.IsNotExist(err) {
		return errors.Errorf("failed to clear refresh flag of %s: %w", name, err)
	}
	return nil
}
