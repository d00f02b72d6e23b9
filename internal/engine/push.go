package engine

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/planner"
)

// Push applies patches from the series on top of the applied ones.
//
// Algorithm steps:
// 1. Plan the patches to apply (next, all, or up to a target)
// 2. For each patch: gate, back up touched files, run the patch tool
// 3. On failure roll the patch back, unless forced over conflicts
// 4. Persist the applied list once, reflecting the successful prefix
func (e *Engine) Push(ctx context.Context, req *PushRequest) (*PushResult, error) {
	unlock, err := e.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := planner.BuildPushPlan(
		planner.Queue{Series: q.series, Applied: q.db.AppliedPatches()},
		planner.Request{Mode: req.Mode, Target: req.Target},
	)
	if err != nil {
		return nil, err
	}

	if req.DryRun {
		return e.checkPush(ctx, q, plan, req)
	}

	result := &PushResult{}
	for _, p := range plan.Patches {
		forced, err := e.applyOne(ctx, q, p, req)
		if err != nil {
			if len(result.Applied) > 0 {
				err = saveAfterFailure(ctx, q, err)
			}
			return result, err
		}

		result.Applied = append(result.Applied, p)
		result.Top = q.top()

		if forced {
			result.Forced = true
			if err := q.db.Save(); err != nil {
				return result, err
			}
			e.emit(Event{Kind: NowAt, Patch: p})
			return result, errors.Errorf("%s: %w", p.Name, ErrForcedApply)
		}
	}

	if err := q.db.Save(); err != nil {
		return result, err
	}
	e.emit(Event{Kind: NowAt, Patch: *result.Top})
	return result, nil
}

// checkPush runs the patch tool in dry-run mode for every planned patch.
// Later patches are checked against the current tree, so a patch that
// depends on an earlier one of the same plan may be reported as failing.
func (e *Engine) checkPush(ctx context.Context, q *queue, plan *planner.Plan, req *PushRequest) (*PushResult, error) {
	result := &PushResult{}
	for _, p := range plan.Patches {
		if err := e.checkRefreshGate(q, p, req.Force); err != nil {
			return result, err
		}
		e.emit(Event{Kind: Applying, Patch: p})

		content, existed, err := e.readPatch(p)
		if err != nil {
			return result, err
		}
		if len(content) > 0 {
			if err := e.patcher.Apply(ctx, dryRun(e.applyOptions(p, false))); err != nil {
				if patchcmd.IsConflict(err) {
					zerolog.Ctx(ctx).Debug().Err(err).Str("patch", p.Name).Msg("dry run failed")
					return result, doesNotApply(p, err)
				}
				return result, err
			}
			e.emit(Event{Kind: Applied, Patch: p})
		} else {
			e.emit(Event{Kind: AppliedEmpty, Patch: p, Existed: existed})
		}
		result.Applied = append(result.Applied, p)
	}
	return result, nil
}

// applyOptions returns the patch tool options for p against the working
// tree. reverse undoes the patch; it is combined with the reverse option
// the series lists for p.
func (e *Engine) applyOptions(p patch.Patch, reverse bool) patchcmd.Options {
	return patchcmd.Options{
		PatchFile:        e.paths.PatchFile(p.Name),
		Dir:              e.paths.Root,
		Strip:            p.Strip,
		Backup:           true,
		Prefix:           e.backups.Dir(p.Name),
		Reverse:          reverse != p.Reverse,
		Force:            true,
		RemoveEmptyFiles: true,
	}
}

// dryRun turns opts into a silent check that writes nothing.
func dryRun(opts patchcmd.Options) patchcmd.Options {
	opts.DryRun = true
	opts.Quiet = true
	opts.Backup = false
	opts.Prefix = ""
	return opts
}

// applyOne applies a single patch and records it in the applied list in
// memory. forced reports a patch kept applied over conflicts.
func (e *Engine) applyOne(ctx context.Context, q *queue, p patch.Patch, req *PushRequest) (forced bool, err error) {
	logger := zerolog.Ctx(ctx).With().Str("patch", p.Name).Logger()

	if err := e.checkRefreshGate(q, p, req.Force); err != nil {
		return false, err
	}
	e.emit(Event{Kind: Applying, Patch: p})

	content, existed, err := e.readPatch(p)
	if err != nil {
		return false, err
	}
	if len(content) == 0 {
		if err := e.recordApplied(q, p); err != nil {
			return false, err
		}
		logger.Debug().Bool("existed", existed).Msg("applied empty patch")
		e.emit(Event{Kind: AppliedEmpty, Patch: p, Existed: existed})
		return false, nil
	}

	opts := e.applyOptions(p, false)
	opts.Quiet = req.Quiet

	// A clean check first keeps the tree untouched by rejects when the
	// patch is not forced.
	if !req.Force {
		if err := e.patcher.Apply(ctx, dryRun(opts)); err != nil {
			if patchcmd.IsConflict(err) {
				logger.Debug().Err(err).Msg("patch does not apply")
				return false, doesNotApply(p, err)
			}
			return false, err
		}
	}

	if err := e.backups.Create(p.Name); err != nil {
		return false, err
	}
	files, err := patch.TouchedFiles(content, p.Strip)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot list files of patch, relying on the patch tool for backups")
	}
	for _, file := range files {
		if _, err := e.backups.Snapshot(p.Name, e.paths.Root, file); err != nil {
			return false, e.rollback(ctx, p, err)
		}
	}

	runErr := e.patcher.Apply(ctx, opts)
	switch {
	case runErr == nil:
		if err := e.backups.ClearNeedsRefresh(p.Name); err != nil {
			return false, err
		}
	case patchcmd.IsConflict(runErr) && req.Force:
		logger.Debug().Err(runErr).Msg("patch applied over conflicts")
		if err := e.backups.MarkNeedsRefresh(p.Name); err != nil {
			return false, err
		}
		forced = true
	case patchcmd.IsConflict(runErr):
		return false, e.rollback(ctx, p, doesNotApply(p, nil))
	default:
		return false, e.rollback(ctx, p, errors.Errorf("failed to apply %s: %w", p.Name, runErr))
	}

	if err := e.recordApplied(q, p); err != nil {
		return forced, err
	}

	empty, err := e.backups.IsEmpty(p.Name)
	if err != nil {
		return forced, err
	}
	switch {
	case forced:
		e.emit(Event{Kind: AppliedForced, Patch: p})
	case empty:
		e.emit(Event{Kind: AppliedEmpty, Patch: p, Existed: true})
	default:
		e.emit(Event{Kind: Applied, Patch: p})
	}
	logger.Debug().Bool("forced", forced).Msg("applied patch")
	return forced, nil
}

// doesNotApply wraps ErrDoesNotApply with what a dry run of the tool
// reported.
func doesNotApply(p patch.Patch, err error) error {
	var runErr *patchcmd.RunError
	if errors.As(err, &runErr) {
		if out := strings.TrimSpace(runErr.Output); out != "" {
			return errors.Errorf("%s: %w (enforce with -f)\n%s", p.Name, ErrDoesNotApply, out)
		}
	}
	return errors.Errorf("%s: %w (enforce with -f)", p.Name, ErrDoesNotApply)
}

func (e *Engine) recordApplied(q *queue, p patch.Patch) error {
	if err := q.db.AddPatch(p); err != nil {
		return err
	}
	if err := e.backups.Create(p.Name); err != nil {
		return err
	}
	return e.backups.Touch(p.Name)
}

// rollback restores the tree as it was before p was applied, drops the
// backup of p and returns cause.
func (e *Engine) rollback(ctx context.Context, p patch.Patch, cause error) error {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("patch", p.Name).Err(cause).Msg("rolling back")

	if err := e.backups.Restore(p.Name, e.paths.Root, false); err != nil {
		return errors.Join(cause, errors.Errorf("rollback of %s failed: %w", p.Name, err))
	}
	if err := e.backups.Remove(p.Name); err != nil {
		return errors.Join(cause, err)
	}
	if err := e.backups.ClearNeedsRefresh(p.Name); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}
