package engine

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/planner"
)

// Pop removes applied patches, most recent first, restoring the files
// from their backups.
func (e *Engine) Pop(ctx context.Context, req *PopRequest) (*PopResult, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPopPlan(
		planner.Queue{Series: q.series, Applied: q.db.AppliedPatches()},
		planner.Request{Mode: req.Mode, Target: req.Target},
	)
	if err != nil {
		return nil, err
	}

	// Every gate is checked before the first patch is touched.
	for _, p := range plan.Patches {
		if err := e.checkRefreshGate(q, p, req.Force); err != nil {
			return nil, err
		}
	}

	result := &PopResult{}
	for _, p := range plan.Patches {
		if err := e.unapplyOne(ctx, q, p, req.Force); err != nil {
			if len(result.Removed) > 0 {
				err = saveAfterFailure(ctx, q, err)
			}
			result.Top = q.top()
			return result, err
		}
		result.Removed = append(result.Removed, p)
	}

	if err := q.db.Save(); err != nil {
		return result, err
	}
	result.Top = q.top()
	e.emitUnapplied(result.Top)
	return result, nil
}

func (e *Engine) emitUnapplied(top *patch.Patch) {
	ev := Event{Kind: Unapplied}
	if top != nil {
		ev.Patch = *top
	}
	e.emit(ev)
}

// unapplyOne removes p, which must be the top patch, from the tree and
// from the applied list in memory.
func (e *Engine) unapplyOne(ctx context.Context, q *queue, p patch.Patch, force bool) error {
	logger := zerolog.Ctx(ctx).With().Str("patch", p.Name).Logger()

	empty, err := e.backups.IsEmpty(p.Name)
	if err != nil {
		return err
	}

	if !force && !empty {
		if err := e.checkRemoval(ctx, p); err != nil {
			return err
		}
	}

	e.emit(Event{Kind: Unapplying, Patch: p})

	if err := e.backups.ClearTimestamp(p.Name); err != nil {
		return err
	}

	if empty {
		if err := e.backups.Remove(p.Name); err != nil {
			return err
		}
		e.emit(Event{Kind: EmptyPatch, Patch: p})
	} else {
		forced, err := e.backups.NeedsRefresh(p.Name)
		if err != nil {
			return err
		}
		files, err := e.backups.Files(p.Name)
		if err != nil {
			return err
		}
		if err := e.backups.Restore(p.Name, e.paths.Root, false); err != nil {
			return errors.Errorf("failed to restore files of %s: %w", p.Name, err)
		}
		if forced {
			if err := e.removeRejects(ctx, files); err != nil {
				return err
			}
		}
		if err := e.backups.Remove(p.Name); err != nil {
			return err
		}
	}

	if err := q.db.RemovePatch(p); err != nil {
		return err
	}
	if err := e.backups.ClearNeedsRefresh(p.Name); err != nil {
		return err
	}

	logger.Debug().Bool("empty", empty).Msg("removed patch")
	e.emit(Event{Kind: UnappliedPatch, Patch: p})
	return nil
}

// removeRejects deletes the reject files a forced apply left next to files.
func (e *Engine) removeRejects(ctx context.Context, files []string) error {
	for _, file := range files {
		rej := e.paths.WorkFile(file) + ".rej"
		err := e.fs.Remove(rej)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Errorf("failed to remove %s.rej: %w", file, err)
		}
		zerolog.Ctx(ctx).Debug().Str("file", file).Msg("removed reject file")
	}
	return nil
}

// checkRemoval verifies that the tree still matches what p produced, by a
// reverse dry run of the patch tool.
func (e *Engine) checkRemoval(ctx context.Context, p patch.Patch) error {
	content, _, err := e.readPatch(p)
	if err != nil {
		return err
	}
	if len(content) == 0 {
		return nil
	}

	err = e.patcher.Apply(ctx, dryRun(e.applyOptions(p, true)))
	if err == nil {
		return nil
	}
	if patchcmd.IsConflict(err) {
		zerolog.Ctx(ctx).Debug().Err(err).Str("patch", p.Name).Msg("reverse dry run failed")
		return errors.Errorf("%s: %w", p.Name, ErrDoesNotRemoveCleanly)
	}
	return err
}
