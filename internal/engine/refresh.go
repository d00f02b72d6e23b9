package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/diffcmd"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
)

// indexSeparator follows every Index: line of a refreshed patch.
var indexSeparator = strings.Repeat("=", 67)

// Refresh regenerates a patch file from the differences between the
// backed-up files of the patch and the working tree.
func (e *Engine) Refresh(ctx context.Context, req *RefreshRequest) (*RefreshResult, error) {
	logger := zerolog.Ctx(ctx)

	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	var p patch.Patch
	if req.Name != "" {
		p = seriesPatch(q, patch.New(req.Name))
		if !q.db.IsPatch(p) {
			return nil, errors.Errorf("%s: %w", p.Name, ErrPatchNotApplied)
		}
	} else {
		top := q.top()
		if top == nil {
			return nil, errors.Errorf("%w: nothing to refresh", ErrNoAppliedPatch)
		}
		p = seriesPatch(q, *top)
	}

	files, err := e.backups.Files(p.Name)
	if err != nil {
		return nil, err
	}

	if !req.Force {
		for _, file := range files {
			owner, err := e.laterOwner(q, p, file)
			if err != nil {
				return nil, err
			}
			if owner != nil {
				return nil, errors.Errorf("%s: %w %s (enforce refresh with -f)", file, ErrModifiedByLaterPatch, owner.Name)
			}
		}
	}

	existing, existed, err := e.readPatch(p)
	if err != nil {
		return nil, err
	}

	tmp, err := e.fs.TempDir("", "pquilt-")
	if err != nil {
		return nil, errors.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		if err := e.fs.RemoveAll(tmp); err != nil {
			logger.Warn().Err(err).Str("dir", tmp).Msg("failed to remove scratch directory")
		}
	}()

	var draft bytes.Buffer
	draft.Write(patch.Header(existing))
	changed, err := e.writeDiffs(ctx, p, files, &draft)
	if err != nil {
		return nil, err
	}
	if len(changed) == 0 {
		return nil, errors.Errorf("%s: %w", p.Name, ErrNothingToRefresh)
	}

	draftPath := filepath.Join(tmp, filepath.Base(p.Name))
	if err := e.fs.AtomicWrite(draftPath, draft.Bytes(), 0644); err != nil {
		return nil, errors.Errorf("failed to write draft: %w", err)
	}

	content := draft.Bytes()
	if req.Edit {
		content, err = e.editDraft(ctx, p, draftPath)
		if err != nil {
			return nil, err
		}
	}

	if existed && bytes.Equal(content, existing) {
		return nil, errors.Errorf("%s is unchanged: %w", p.Name, ErrNothingToRefresh)
	}

	if err := e.fs.AtomicWrite(e.paths.PatchFile(p.Name), content, 0644); err != nil {
		return nil, errors.Errorf("failed to write patch %s: %w", p.Name, err)
	}
	if err := e.backups.Touch(p.Name); err != nil {
		return nil, err
	}
	if err := e.backups.ClearNeedsRefresh(p.Name); err != nil {
		return nil, err
	}

	logger.Debug().Str("patch", p.Name).Strs("files", changed).Msg("refreshed patch")
	e.emit(Event{Kind: Refreshed, Patch: p})
	return &RefreshResult{Patch: p, Files: changed}, nil
}

// writeDiffs appends the diff of every backed-up file that changed to w
// and returns those files.
func (e *Engine) writeDiffs(ctx context.Context, p patch.Patch, files []string, w *bytes.Buffer) ([]string, error) {
	// Labels carry one leading component for the default strip level.
	origPrefix, workPrefix := e.paths.RootName()+".orig/", e.paths.RootName()+"/"
	if p.Strip == 0 {
		origPrefix, workPrefix = "", ""
	}

	var changed []string
	for _, file := range files {
		left, err := e.origSide(p, file)
		if err != nil {
			return nil, err
		}
		right, err := e.workSide(file)
		if err != nil {
			return nil, err
		}
		if left == diffcmd.DevNull && right == diffcmd.DevNull {
			continue
		}

		leftLabel, rightLabel := origPrefix+file, workPrefix+file
		if left == diffcmd.DevNull {
			leftLabel = diffcmd.DevNull
		}
		if right == diffcmd.DevNull {
			rightLabel = diffcmd.DevNull
		}

		var diff bytes.Buffer
		if err := e.differ.Diff(ctx, left, right, leftLabel, rightLabel, &diff); err != nil {
			return nil, errors.Errorf("failed to diff %s: %w", file, err)
		}
		if diff.Len() == 0 {
			continue
		}

		fmt.Fprintf(w, "Index: %s%s\n%s\n", workPrefix, file, indexSeparator)
		w.Write(diff.Bytes())
		changed = append(changed, file)
	}
	return changed, nil
}

// origSide is the backup of file, or /dev/null when the patch created it.
func (e *Engine) origSide(p patch.Patch, file string) (string, error) {
	created, err := e.backups.IsPlaceholder(p.Name, file)
	if err != nil {
		return "", err
	}
	if created {
		return diffcmd.DevNull, nil
	}
	return e.backups.Path(p.Name, file), nil
}

// workSide is the working file, or /dev/null when it is absent or empty.
func (e *Engine) workSide(file string) (string, error) {
	work := e.paths.WorkFile(file)
	info, err := e.fs.Lstat(work)
	if os.IsNotExist(err) {
		return diffcmd.DevNull, nil
	}
	if err != nil {
		return "", errors.Errorf("failed to stat %s: %w", file, err)
	}
	if info.Size() == 0 {
		return diffcmd.DevNull, nil
	}
	return work, nil
}

// editDraft lets the user change the draft and checks that the result
// still applies to the backed-up files.
func (e *Engine) editDraft(ctx context.Context, p patch.Patch, draftPath string) ([]byte, error) {
	if e.editor == nil {
		return nil, errors.New("no editor configured")
	}
	if err := e.editor.Edit(ctx, draftPath); err != nil {
		return nil, errors.Errorf("editor failed: %w", err)
	}

	content, err := e.fs.ReadFile(draftPath)
	if err != nil {
		return nil, errors.Errorf("failed to read draft: %w", err)
	}

	err = e.patcher.Apply(ctx, patchcmd.Options{
		PatchFile: draftPath,
		Dir:       e.backups.Dir(p.Name),
		Strip:     p.Strip,
		Reverse:   p.Reverse,
		Force:     true,
		Quiet:     true,
		DryRun:    true,
	})
	if err != nil {
		var runErr *patchcmd.RunError
		if errors.As(err, &runErr) {
			return nil, errors.Errorf("%s: %w: %s", p.Name, ErrInvalidPatch, strings.TrimSpace(runErr.Output))
		}
		return nil, err
	}
	return content, nil
}
