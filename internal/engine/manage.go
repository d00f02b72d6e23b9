package engine

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/backup"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/series"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// NewPatch creates an empty patch after the top patch and applies it.
func (e *Engine) NewPatch(ctx context.Context, req *NewRequest) (*patch.Patch, error) {
	if err := e.validateName(req.Name); err != nil {
		return nil, err
	}

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	p := patch.New(req.Name)
	if q.series.IsPatch(p) {
		return nil, errors.Errorf("%s: %w", p.Name, ErrPatchAlreadyExists)
	}

	if err := e.insertAfterTop(q, []patch.Patch{p}); err != nil {
		return nil, err
	}

	file := e.paths.PatchFile(p.Name)
	if err := e.fs.MkdirAll(filepath.Dir(file), 0755); err != nil {
		return nil, errors.Errorf("failed to create patches directory: %w", err)
	}
	if err := e.fs.Touch(file); err != nil {
		return nil, errors.Errorf("failed to create patch file: %w", err)
	}

	if err := e.backups.Reset(p.Name); err != nil {
		return nil, err
	}
	if err := e.backups.ClearNeedsRefresh(p.Name); err != nil {
		return nil, err
	}
	if err := e.recordApplied(q, p); err != nil {
		return nil, err
	}

	if err := q.series.Save(); err != nil {
		return nil, err
	}
	if err := q.db.Save(); err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().Str("patch", p.Name).Msg("created patch")
	e.emit(Event{Kind: PatchCreated, Patch: p})
	return &p, nil
}

// validateName checks that a new patch name is usable as a path below both
// the patches directory and the metadata directory.
func (e *Engine) validateName(name string) error {
	if err := e.fs.ValidateIdentifier(name); err != nil {
		return errors.Errorf("invalid patch name: %w", err)
	}

	clean := path.Clean(filepath.ToSlash(name))
	first, _, _ := strings.Cut(clean, "/")
	switch {
	case clean == series.FileName,
		first == state.AppliedFile, first == state.VersionFile, first == state.LockFile,
		path.Base(clean) == backup.TimestampFile,
		strings.HasSuffix(clean, backup.RefreshSuffix):
		return errors.Errorf("%s: %w", name, ErrReservedName)
	}
	return nil
}

// insertAfterTop inserts ps into the series after the top patch, or at the
// start when nothing is applied.
func (e *Engine) insertAfterTop(q *queue, ps []patch.Patch) error {
	if top := q.top(); top != nil {
		return q.series.AddPatches(ps, top)
	}
	return q.series.InsertPatches(ps)
}

// Delete removes a patch from the series, popping it first if it is the
// top patch.
func (e *Engine) Delete(ctx context.Context, req *DeleteRequest) (*DeleteResult, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	if q.series.IsEmpty() {
		return nil, errors.WithStack(ErrNoPatchesInSeries)
	}

	target, err := e.deleteTarget(q, req)
	if err != nil {
		return nil, err
	}

	wasApplied := q.db.IsPatch(target)
	if wasApplied {
		if top := q.top(); !top.Equal(target) {
			return nil, errors.Errorf("%s: %w", target.Name, ErrPatchApplied)
		}
		if err := e.checkRefreshGate(q, target, req.Force); err != nil {
			return nil, err
		}
	}

	e.emit(Event{Kind: Deleting, Patch: target, WasApplied: wasApplied})

	if wasApplied {
		if err := e.unapplyOne(ctx, q, target, req.Force); err != nil {
			return nil, err
		}
		if err := q.db.Save(); err != nil {
			return nil, err
		}
		e.emitUnapplied(q.top())
	}

	if err := q.series.RemovePatch(target); err != nil {
		return nil, err
	}
	if err := q.series.Save(); err != nil {
		return nil, err
	}

	result := &DeleteResult{Patch: target, WasApplied: wasApplied}
	if req.Remove {
		kept, err := e.removePatchFile(target, req.Backup)
		if err != nil {
			return result, err
		}
		result.Backup = kept
	}

	zerolog.Ctx(ctx).Debug().Str("patch", target.Name).Bool("was_applied", wasApplied).Msg("deleted patch")
	e.emit(Event{Kind: Deleted, Patch: target})
	return result, nil
}

func (e *Engine) deleteTarget(q *queue, req *DeleteRequest) (patch.Patch, error) {
	switch {
	case req.Name != "":
		return q.series.Lookup(req.Name)
	case req.Next:
		top := q.top()
		if top == nil {
			return *q.series.FirstPatch(), nil
		}
		next, err := q.series.PatchAfter(*top)
		if err != nil {
			return patch.Patch{}, err
		}
		if next == nil {
			return patch.Patch{}, errors.Errorf("%s: %w", top.Name, ErrNoNextPatch)
		}
		return *next, nil
	default:
		top := q.top()
		if top == nil {
			return patch.Patch{}, errors.WithStack(ErrNoAppliedPatch)
		}
		return seriesPatch(q, *top), nil
	}
}

// removePatchFile deletes the file of p, or renames it to <file>~ when
// keepBackup is set. It returns the backup path.
func (e *Engine) removePatchFile(p patch.Patch, keepBackup bool) (string, error) {
	file := e.paths.PatchFile(p.Name)
	exists, err := e.fs.Exists(file)
	if err != nil || !exists {
		return "", err
	}
	if keepBackup {
		kept := file + "~"
		if err := e.fs.Rename(file, kept); err != nil {
			return "", errors.Errorf("failed to back up patch file: %w", err)
		}
		return kept, nil
	}
	if err := e.fs.Remove(file); err != nil {
		return "", errors.Errorf("failed to remove patch file: %w", err)
	}
	return "", nil
}

// Import copies patch files into the patches directory and lists them in
// the series after the top patch. Nothing is applied.
func (e *Engine) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	sources, err := expandPatterns(req.Files)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, errors.New("no patch files to import")
	}
	if req.Name != "" && len(sources) > 1 {
		return nil, errors.Errorf("a new name can only be given for a single patch, got %d", len(sources))
	}

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	patches := make([]patch.Patch, 0, len(sources))
	seen := make(map[string]bool, len(sources))
	for _, src := range sources {
		name := filepath.Base(src)
		if req.Name != "" {
			name = filepath.ToSlash(req.Name)
		}
		if err := e.validateName(name); err != nil {
			return nil, err
		}
		p := patch.Patch{Name: name, Strip: req.Strip, Reverse: req.Reverse}
		if q.series.IsPatch(p) || seen[name] {
			return nil, errors.Errorf("%s: %w", name, ErrPatchAlreadyExists)
		}
		seen[name] = true
		patches = append(patches, p)
	}

	for i, src := range sources {
		dest := e.paths.PatchFile(patches[i].Name)
		if err := e.fs.Copy(src, dest); err != nil {
			return nil, errors.Errorf("failed to import %s: %w", src, err)
		}
	}

	if err := e.insertAfterTop(q, patches); err != nil {
		return nil, err
	}
	if err := q.series.Save(); err != nil {
		return nil, err
	}

	for _, p := range patches {
		zerolog.Ctx(ctx).Debug().Str("patch", p.Name).Msg("imported patch")
		e.emit(Event{Kind: Imported, Patch: p})
	}
	return &ImportResult{Patches: patches}, nil
}

// expandPatterns resolves doublestar patterns. Arguments without
// metacharacters are kept as is so that missing files surface as errors.
func expandPatterns(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if !hasMeta(arg) {
			files = append(files, arg)
			continue
		}
		base, pattern := doublestar.SplitPattern(filepath.ToSlash(arg))
		matches, err := doublestar.Glob(os.DirFS(base), pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.Errorf("invalid pattern %q: %w", arg, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			files = append(files, filepath.FromSlash(path.Join(base, m)))
		}
	}
	return files, nil
}

func hasMeta(s string) bool {
	for _, c := range s {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
