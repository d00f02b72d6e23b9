package engine

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/backup"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
)

// Add starts tracking files in a patch by backing up their current state.
// Changed is false for files skipped because the patch already tracks them.
func (e *Engine) Add(ctx context.Context, req *AddRequest) ([]FileResult, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	target, err := e.addTarget(q, req.Patch)
	if err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(req.Files))
	for _, file := range req.Files {
		added, err := e.addFile(ctx, q, target, file, req.IgnoreTracked)
		if err != nil {
			return results, err
		}
		results = append(results, FileResult{File: file, Changed: added})
	}
	return results, nil
}

// addTarget picks the named patch, else the top patch, else the first
// patch of the series.
func (e *Engine) addTarget(q *queue, name string) (patch.Patch, error) {
	if name != "" {
		return q.series.Lookup(name)
	}
	if top := q.top(); top != nil {
		return seriesPatch(q, *top), nil
	}
	if first := q.series.FirstPatch(); first != nil {
		return *first, nil
	}
	return patch.Patch{}, errors.Errorf("%w: create a new patch before adding files", ErrNoPatchAvailable)
}

func (e *Engine) addFile(ctx context.Context, q *queue, p patch.Patch, file string, ignoreTracked bool) (bool, error) {
	if err := e.fs.ValidateRelPath(file); err != nil {
		return false, err
	}

	tracked, err := e.backups.Has(p.Name, file)
	if err != nil {
		return false, err
	}
	if tracked {
		if ignoreTracked {
			return false, nil
		}
		return false, errors.Errorf("%s: %w %s", file, ErrFileInPatch, p.Name)
	}

	owner, err := e.laterOwner(q, p, file)
	if err != nil {
		return false, err
	}
	if owner != nil {
		return false, errors.Errorf("%s: %w %s", file, ErrModifiedByLaterPatch, owner.Name)
	}

	work := e.paths.WorkFile(file)
	info, err := e.fs.Lstat(work)
	exists := err == nil
	if err != nil && !os.IsNotExist(err) {
		return false, errors.Errorf("failed to stat %s: %w", file, err)
	}
	if exists && info.Mode()&os.ModeSymlink != 0 {
		return false, errors.Errorf("%s: %w", file, ErrSymlink)
	}

	outcome, err := e.backups.Snapshot(p.Name, e.paths.Root, file)
	if err != nil {
		return false, err
	}

	if exists {
		if err := e.fs.Chmod(work, info.Mode().Perm()|0200); err != nil {
			return false, errors.Errorf("failed to make %s writable: %w", file, err)
		}
	}

	zerolog.Ctx(ctx).Debug().Str("patch", p.Name).Str("file", file).Stringer("backup", outcome).Msg("added file")
	e.emit(Event{Kind: FileAdded, Patch: p, File: file})
	return true, nil
}

// Edit adds files to the top patch, skipping tracked ones, and opens them
// in the editor.
func (e *Engine) Edit(ctx context.Context, req *AddRequest) ([]FileResult, error) {
	if e.editor == nil {
		return nil, errors.New("no editor configured")
	}
	added := *req
	added.IgnoreTracked = true
	results, err := e.Add(ctx, &added)
	if err != nil {
		return results, err
	}

	paths := make([]string, 0, len(req.Files))
	for _, file := range req.Files {
		paths = append(paths, e.paths.WorkFile(file))
	}
	if err := e.editor.Edit(ctx, paths...); err != nil {
		return results, errors.Errorf("editor failed: %w", err)
	}
	return results, nil
}

// Revert drops the changes made to files since their patch was last
// applied or refreshed. Changed is false for files that already matched.
func (e *Engine) Revert(ctx context.Context, req *RevertRequest) ([]FileResult, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	var target patch.Patch
	switch {
	case req.Patch != "":
		target, err = q.series.Lookup(req.Patch)
		if err != nil {
			return nil, err
		}
	case q.top() != nil:
		target = seriesPatch(q, *q.top())
	default:
		return nil, errors.Errorf("%w: nothing to revert", ErrNoPatchAvailable)
	}

	if err := e.checkRefreshGate(q, target, req.Force); err != nil {
		return nil, err
	}

	results := make([]FileResult, 0, len(req.Files))
	for _, file := range req.Files {
		changed, err := e.revertFile(ctx, q, target, file)
		if err != nil {
			return results, err
		}
		results = append(results, FileResult{File: file, Changed: changed})
	}
	return results, nil
}

func (e *Engine) revertFile(ctx context.Context, q *queue, p patch.Patch, file string) (bool, error) {
	if err := e.fs.ValidateRelPath(file); err != nil {
		return false, err
	}

	tracked, err := e.backups.Has(p.Name, file)
	if err != nil {
		return false, err
	}
	if !tracked {
		return false, errors.Errorf("%s: %w %s", file, ErrFileNotInPatch, p.Name)
	}

	owner, err := e.laterOwner(q, p, file)
	if err != nil {
		return false, err
	}
	if owner != nil {
		return false, errors.Errorf("%s: %w %s", file, ErrModifiedByLaterPatch, owner.Name)
	}

	work := e.paths.WorkFile(file)
	workExists, err := e.fs.Exists(work)
	if err != nil {
		return false, err
	}
	created, err := e.backups.IsPlaceholder(p.Name, file)
	if err != nil {
		return false, err
	}

	// The patch created the file and it is gone again.
	if !workExists && created {
		if err := e.backups.RemoveFile(p.Name, file); err != nil {
			return false, err
		}
		e.emit(Event{Kind: FileReverted, Patch: p, File: file})
		return true, nil
	}

	rebuilt, cleanup, err := e.reconstruct(ctx, p, file)
	defer cleanup()
	if err != nil {
		return false, err
	}

	rebuiltExists, err := e.fs.Exists(rebuilt)
	if err != nil {
		return false, err
	}

	switch {
	case rebuiltExists && workExists:
		equal, err := e.differ.Equal(ctx, work, rebuilt)
		if err != nil {
			return false, err
		}
		if equal {
			e.emit(Event{Kind: FileUnchanged, Patch: p, File: file})
			return false, nil
		}
		fallthrough
	case rebuiltExists:
		if err := e.fs.Copy(rebuilt, work); err != nil {
			return false, errors.Errorf("failed to revert %s: %w", file, err)
		}
	case workExists:
		if err := e.fs.Remove(work); err != nil {
			return false, errors.Errorf("failed to revert %s: %w", file, err)
		}
	default:
		e.emit(Event{Kind: FileUnchanged, Patch: p, File: file})
		return false, nil
	}

	e.emit(Event{Kind: FileReverted, Patch: p, File: file})
	return true, nil
}

// reconstruct rebuilds file as the patch produces it, in a scratch
// directory seeded with the backup of file only. It returns the rebuilt
// path, which may not exist when the patch deletes the file.
func (e *Engine) reconstruct(ctx context.Context, p patch.Patch, file string) (string, func(), error) {
	tmp, err := e.fs.TempDir("", "pquilt-")
	if err != nil {
		return "", func() {}, errors.Errorf("failed to create scratch directory: %w", err)
	}
	cleanup := func() {
		if err := e.fs.RemoveAll(tmp); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("dir", tmp).Msg("failed to remove scratch directory")
		}
	}

	rebuilt := filepath.Join(tmp, filepath.FromSlash(file))
	if _, err := backup.Backup(e.fs, e.backups.Path(p.Name, file), rebuilt, false); err != nil {
		return rebuilt, cleanup, err
	}

	content, _, err := e.readPatch(p)
	if err != nil {
		return rebuilt, cleanup, err
	}
	if len(content) == 0 {
		return rebuilt, cleanup, nil
	}

	runErr := e.patcher.Apply(ctx, patchcmd.Options{
		PatchFile:          e.paths.PatchFile(p.Name),
		Dir:                e.paths.Root,
		WorkDir:            tmp,
		Strip:              p.Strip,
		Reverse:            p.Reverse,
		Force:              true,
		Quiet:              true,
		NoBackupIfMismatch: true,
		RemoveEmptyFiles:   true,
	})
	return rebuilt, cleanup, ignoreReconstructFailure(ctx, runErr)
}

// ignoreReconstructFailure drops exit-status failures of the patch tool
// while a single file is rebuilt. The scratch tree holds nothing but that
// file, so hunks for every other file of the patch are bound to fail.
// Failures to run the tool at all are returned.
func ignoreReconstructFailure(ctx context.Context, err error) error {
	var runErr *patchcmd.RunError
	if errors.As(err, &runErr) {
		zerolog.Ctx(ctx).Debug().Int("exit_code", runErr.ExitCode).Msg("ignoring partial failure while rebuilding file")
		return nil
	}
	return err
}
