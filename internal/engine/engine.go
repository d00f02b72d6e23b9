// Package engine implements the patch queue operations.
//
// The engine is the layer between the CLI and the on-disk queue. Each
// operation loads the series and the applied list, plans the transition,
// runs the patch tool against the working tree with the backup store as
// its safety net, persists the applied list and reports every step to the
// registered listeners.
//
// Key components:
//   - Push/Pop: apply and remove patches, with rollback on failure
//   - New/Delete/Import: series management
//   - Add/Revert/Refresh: file tracking and patch regeneration
//   - Queries: top, next, previous and the status of every patch
package engine

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/backup"
	"github.com/bjoernricks/python-quilt/internal/config"
	"github.com/bjoernricks/python-quilt/internal/diffcmd"
	"github.com/bjoernricks/python-quilt/internal/editor"
	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/series"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// Engine orchestrates all queue operations.
// It is the main API surface called by the CLI.
type Engine struct {
	paths   config.Paths
	fs      fsops.FS
	patcher patchcmd.Patcher
	differ  diffcmd.Differ
	editor  editor.Editor
	backups *backup.Store

	listeners []Listener
}

// New creates a new Engine with the given dependencies. The editor may be
// nil when refresh is never asked to edit.
func New(
	paths config.Paths,
	fs fsops.FS,
	patcher patchcmd.Patcher,
	differ diffcmd.Differ,
	ed editor.Editor,
) *Engine {
	return &Engine{
		paths:   paths,
		fs:      fs,
		patcher: patcher,
		differ:  differ,
		editor:  ed,
		backups: backup.NewStore(fs, paths.PC),
	}
}

// Paths returns the project paths the engine works on.
func (e *Engine) Paths() config.Paths {
	return e.paths
}

// Subscribe registers l for all subsequent events.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

func (e *Engine) emit(ev Event) {
	for _, l := range e.listeners {
		l(ev)
	}
}

// queue is the state loaded at the start of every operation.
type queue struct {
	series *series.Series
	db     *state.DB
}

func (q *queue) top() *patch.Patch {
	return q.db.TopPatch()
}

func (e *Engine) load(ctx context.Context) (*queue, error) {
	logger := zerolog.Ctx(ctx)

	s, err := series.Open(e.fs, e.paths.Patches)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings() {
		logger.Warn().Err(w).Str("file", s.Path()).Msg("ignoring series entry")
	}

	db, err := state.Open(e.fs, e.paths.PC)
	if err != nil {
		return nil, err
	}
	return &queue{series: s, db: db}, nil
}

// lock takes the metadata lock. The returned func releases it.
func (e *Engine) lock(ctx context.Context) (func(), error) {
	l, err := state.Acquire(e.paths.PC)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to release lock")
		}
	}, nil
}

func (e *Engine) patchState(q *queue, p patch.Patch) (state.PatchState, error) {
	flagged, err := e.backups.NeedsRefresh(p.Name)
	if err != nil {
		return state.PatchState{}, errors.Errorf("failed to read status of %s: %w", p.Name, err)
	}
	return state.PatchState{Patch: p, Applied: q.db.IsPatch(p), NeedsRefresh: flagged}, nil
}

// checkRefreshGate fails for a flagged patch unless force is set.
func (e *Engine) checkRefreshGate(q *queue, p patch.Patch, force bool) error {
	if force {
		return nil
	}
	ps, err := e.patchState(q, p)
	if err != nil {
		return err
	}
	if ps.Blocked() {
		return errors.Errorf("%s: %w", p.Name, ErrNeedsRefresh)
	}
	return nil
}

// readPatch returns the content of a patch file. A missing file reads as
// empty with existed set to false.
func (e *Engine) readPatch(p patch.Patch) (content []byte, existed bool, err error) {
	path := e.paths.PatchFile(p.Name)
	existed, err = e.fs.Exists(path)
	if err != nil || !existed {
		return nil, existed, err
	}
	content, err = e.fs.ReadFile(path)
	if err != nil {
		return nil, true, errors.Errorf("failed to read patch %s: %w", p.Name, err)
	}
	return content, true, nil
}

// laterOwner returns the first patch applied after p that tracks file.
func (e *Engine) laterOwner(q *queue, p patch.Patch, file string) (*patch.Patch, error) {
	if !q.db.IsPatch(p) {
		return nil, nil
	}
	later, err := q.db.PatchesAfter(p)
	if err != nil {
		return nil, err
	}
	for _, lp := range later {
		has, err := e.backups.Has(lp.Name, file)
		if err != nil {
			return nil, err
		}
		if has {
			owner := lp
			return &owner, nil
		}
	}
	return nil, nil
}

// seriesPatch returns p with the options listed for it in the series.
func seriesPatch(q *queue, p patch.Patch) patch.Patch {
	if listed, err := q.series.Get(p); err == nil {
		return listed
	}
	return p
}

// saveAfterFailure persists the applied list after a failed step so that
// disk holds the successful prefix. cause is returned, joined with any
// save error.
func saveAfterFailure(ctx context.Context, q *queue, cause error) error {
	if err := q.db.Save(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to save applied patches")
		return errors.Join(cause, err)
	}
	return cause
}
