// Package series implements the ordered patch list kept in a text file.
//
// The same structure backs both the series file of the patches directory
// and the list of applied patches in the metadata directory. Lines that are
// not patch entries (blank lines, comments) are kept in place and written
// back verbatim.
package series

import (
	"bufio"
	"bytes"
	"path/filepath"

	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patch"
)

// FileName is the name of the series file inside the patches directory.
const FileName = "series"

var (
	// ErrUnknownPatch indicates a patch that is not in the list.
	ErrUnknownPatch = errors.Base("unknown patch")

	// ErrPatchAlreadyExists indicates a patch name that is already listed.
	ErrPatchAlreadyExists = errors.Base("patch already exists")
)

// Series is an ordered list of patches backed by a file.
type Series struct {
	fs       fsops.FS
	path     string
	lines    []*Line
	index    map[string]*Line
	warnings []error
}

// New returns an empty list backed by dir/name. Nothing is read.
func New(fs fsops.FS, dir, name string) *Series {
	return &Series{
		fs:    fs,
		path:  filepath.Join(dir, name),
		index: make(map[string]*Line),
	}
}

// Open reads the series file of a patches directory. A missing file yields
// an empty series.
func Open(fs fsops.FS, patchesDir string) (*Series, error) {
	s := New(fs, patchesDir, FileName)
	if err := s.Read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file.
func (s *Series) Path() string {
	return s.path
}

// Dir returns the directory that holds the backing file.
func (s *Series) Dir() string {
	return filepath.Dir(s.path)
}

// Exists reports whether the backing file exists.
func (s *Series) Exists() (bool, error) {
	return s.fs.Exists(s.path)
}

// Read replaces the in-memory list with the content of the backing file.
// Malformed entries do not fail the read; they are collected in Warnings.
func (s *Series) Read() error {
	s.lines = nil
	s.index = make(map[string]*Line)
	s.warnings = nil

	exists, err := s.Exists()
	if err != nil {
		return errors.Errorf("failed to check %s: %w", s.path, err)
	}
	if !exists {
		return nil
	}

	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		return errors.Errorf("failed to read %s: %w", s.path, err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line, err := ParseLine(scanner.Text())
		if err != nil {
			s.warnings = append(s.warnings, errors.Errorf("%s: %w", s.path, err))
		}
		if p := line.patch; p != nil {
			if _, dup := s.index[p.Key()]; dup {
				s.warnings = append(s.warnings, errors.Errorf("%s: %s: %w", s.path, p.Name, ErrPatchAlreadyExists))
				line.patch = nil
			} else {
				s.index[p.Key()] = line
			}
		}
		s.lines = append(s.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return errors.Errorf("failed to read %s: %w", s.path, err)
	}
	return nil
}

// Warnings returns the non-fatal problems found by the last Read.
func (s *Series) Warnings() []error {
	return s.warnings
}

// Save rewrites the backing file with the current list.
func (s *Series) Save() error {
	var buf bytes.Buffer
	for _, line := range s.lines {
		buf.WriteString(line.String())
		buf.WriteByte('\n')
	}
	if err := s.fs.AtomicWrite(s.path, buf.Bytes(), 0644); err != nil {
		return errors.Errorf("failed to save %s: %w", s.path, err)
	}
	return nil
}

// Lines returns all lines, including blank and comment lines.
func (s *Series) Lines() []*Line {
	return append([]*Line(nil), s.lines...)
}

// AddPatch appends p at the end.
func (s *Series) AddPatch(p patch.Patch) error {
	return s.AddPatches([]patch.Patch{p}, nil)
}

// AddPatches inserts ps right after the patch after, or at the end when
// after is nil. Either all of ps are added or none.
func (s *Series) AddPatches(ps []patch.Patch, after *patch.Patch) error {
	pos := len(s.lines)
	if after != nil {
		idx, err := s.position(*after)
		if err != nil {
			return err
		}
		pos = idx + 1
	}
	return s.insertAt(pos, ps)
}

// InsertPatches inserts ps at the front of the list.
func (s *Series) InsertPatches(ps []patch.Patch) error {
	return s.insertAt(0, ps)
}

func (s *Series) insertAt(pos int, ps []patch.Patch) error {
	seen := make(map[string]struct{}, len(ps))
	lines := make([]*Line, 0, len(ps))
	for _, p := range ps {
		if _, ok := s.index[p.Key()]; ok {
			return errors.Errorf("%s: %w", p.Name, ErrPatchAlreadyExists)
		}
		if _, ok := seen[p.Key()]; ok {
			return errors.Errorf("%s: %w", p.Name, ErrPatchAlreadyExists)
		}
		seen[p.Key()] = struct{}{}
		lines = append(lines, NewLine(p))
	}

	merged := make([]*Line, 0, len(s.lines)+len(lines))
	merged = append(merged, s.lines[:pos]...)
	merged = append(merged, lines...)
	merged = append(merged, s.lines[pos:]...)
	s.lines = merged
	for _, line := range lines {
		s.index[line.patch.Key()] = line
	}
	return nil
}

// RemovePatch removes p from the list.
func (s *Series) RemovePatch(p patch.Patch) error {
	idx, err := s.position(p)
	if err != nil {
		return err
	}
	s.lines = append(s.lines[:idx], s.lines[idx+1:]...)
	delete(s.index, p.Key())
	return nil
}

// Replace swaps old for new in place, keeping the comment of the old line.
func (s *Series) Replace(old, new patch.Patch) error {
	idx, err := s.position(old)
	if err != nil {
		return err
	}
	if !old.Equal(new) {
		if _, ok := s.index[new.Key()]; ok {
			return errors.Errorf("%s: %w", new.Name, ErrPatchAlreadyExists)
		}
	}
	line := s.lines[idx].withPatch(new)
	s.lines[idx] = line
	delete(s.index, old.Key())
	s.index[new.Key()] = line
	return nil
}

// Get returns the listed patch named like p, with its options.
func (s *Series) Get(p patch.Patch) (patch.Patch, error) {
	line, ok := s.index[p.Key()]
	if !ok {
		return patch.Patch{}, errors.Errorf("%s: %w", p.Name, ErrUnknownPatch)
	}
	return *line.patch, nil
}

// Lookup returns the listed patch called name.
func (s *Series) Lookup(name string) (patch.Patch, error) {
	return s.Get(patch.New(name))
}

// Patches returns all patches in order.
func (s *Series) Patches() []patch.Patch {
	return collect(s.lines)
}

// Len returns the number of patches.
func (s *Series) Len() int {
	return len(s.index)
}

// IsEmpty reports whether the list holds no patches.
func (s *Series) IsEmpty() bool {
	return len(s.index) == 0
}

// IsPatch reports whether p is listed.
func (s *Series) IsPatch(p patch.Patch) bool {
	_, ok := s.index[p.Key()]
	return ok
}

// TopPatch returns the last patch, or nil if there is none.
func (s *Series) TopPatch() *patch.Patch {
	ps := s.Patches()
	if len(ps) == 0 {
		return nil
	}
	return &ps[len(ps)-1]
}

// FirstPatch returns the first patch, or nil if there is none.
func (s *Series) FirstPatch() *patch.Patch {
	ps := s.Patches()
	if len(ps) == 0 {
		return nil
	}
	return &ps[0]
}

// PatchesAfter returns the patches following p.
func (s *Series) PatchesAfter(p patch.Patch) ([]patch.Patch, error) {
	idx, err := s.position(p)
	if err != nil {
		return nil, err
	}
	return collect(s.lines[idx+1:]), nil
}

// PatchesBefore returns the patches preceding p.
func (s *Series) PatchesBefore(p patch.Patch) ([]patch.Patch, error) {
	idx, err := s.position(p)
	if err != nil {
		return nil, err
	}
	return collect(s.lines[:idx]), nil
}

// PatchesUntil returns the patches preceding p followed by p itself.
func (s *Series) PatchesUntil(p patch.Patch) ([]patch.Patch, error) {
	idx, err := s.position(p)
	if err != nil {
		return nil, err
	}
	return collect(s.lines[:idx+1]), nil
}

// PatchAfter returns the patch directly following p, or nil if p is last.
func (s *Series) PatchAfter(p patch.Patch) (*patch.Patch, error) {
	after, err := s.PatchesAfter(p)
	if err != nil {
		return nil, err
	}
	if len(after) == 0 {
		return nil, nil
	}
	return &after[0], nil
}

// PatchBefore returns the patch directly preceding p, or nil if p is first.
func (s *Series) PatchBefore(p patch.Patch) (*patch.Patch, error) {
	before, err := s.PatchesBefore(p)
	if err != nil {
		return nil, err
	}
	if len(before) == 0 {
		return nil, nil
	}
	return &before[len(before)-1], nil
}

func (s *Series) position(p patch.Patch) (int, error) {
	line, ok := s.index[p.Key()]
	if !ok {
		return -1, errors.Errorf("%s: %w", p.Name, ErrUnknownPatch)
	}
	for i, l := range s.lines {
		if l == line {
			return i, nil
		}
	}
	return -1, errors.Errorf("%s: %w", p.Name, ErrUnknownPatch)
}

func collect(lines []*Line) []patch.Patch {
	ps := make([]patch.Patch, 0, len(lines))
	for _, line := range lines {
		if line.patch != nil {
			ps = append(ps, *line.patch)
		}
	}
	return ps
}
