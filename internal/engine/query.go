package engine

import (
	"context"

	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// Top returns the top patch.
func (e *Engine) Top(ctx context.Context) (patch.Patch, error) {
	q, err := e.load(ctx)
	if err != nil {
		return patch.Patch{}, err
	}
	top := q.top()
	if top == nil {
		return patch.Patch{}, errors.WithStack(ErrNoAppliedPatch)
	}
	return seriesPatch(q, *top), nil
}

// Next returns the patch after name, or after the top patch when name is
// empty. With nothing applied it is the first patch of the series.
func (e *Engine) Next(ctx context.Context, name string) (patch.Patch, error) {
	q, err := e.load(ctx)
	if err != nil {
		return patch.Patch{}, err
	}
	if q.series.IsEmpty() {
		return patch.Patch{}, errors.WithStack(ErrNoPatchesInSeries)
	}

	ref := q.top()
	if name != "" {
		p, err := q.series.Lookup(name)
		if err != nil {
			return patch.Patch{}, err
		}
		ref = &p
	}
	if ref == nil {
		return *q.series.FirstPatch(), nil
	}

	next, err := q.series.PatchAfter(*ref)
	if err != nil {
		return patch.Patch{}, err
	}
	if next == nil {
		return patch.Patch{}, errors.Errorf("%s: %w", ref.Name, ErrNoNextPatch)
	}
	return *next, nil
}

// Previous returns the patch before name in the series, or the patch
// applied below the top patch when name is empty.
func (e *Engine) Previous(ctx context.Context, name string) (patch.Patch, error) {
	q, err := e.load(ctx)
	if err != nil {
		return patch.Patch{}, err
	}

	var prev *patch.Patch
	if name != "" {
		p, err := q.series.Lookup(name)
		if err != nil {
			return patch.Patch{}, err
		}
		if prev, err = q.series.PatchBefore(p); err != nil {
			return patch.Patch{}, err
		}
	} else {
		top := q.top()
		if top == nil {
			return patch.Patch{}, errors.WithStack(ErrNoAppliedPatch)
		}
		name = top.Name
		if prev, err = q.db.PatchBefore(*top); err != nil {
			return patch.Patch{}, err
		}
	}

	if prev == nil {
		return patch.Patch{}, errors.Errorf("%s: %w", name, ErrNoPreviousPatch)
	}
	return seriesPatch(q, *prev), nil
}

// Series returns every patch of the series with its status.
func (e *Engine) Series(ctx context.Context) ([]SeriesEntry, error) {
	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	patches := q.series.Patches()
	entries := make([]SeriesEntry, 0, len(patches))
	for _, p := range patches {
		ps, err := e.patchState(q, p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ps)
	}
	return entries, nil
}

// Status returns the status of a single patch.
func (e *Engine) Status(ctx context.Context, name string) (state.PatchState, error) {
	q, err := e.load(ctx)
	if err != nil {
		return state.PatchState{}, err
	}
	p, err := q.series.Lookup(name)
	if err != nil {
		return state.PatchState{}, err
	}
	return e.patchState(q, p)
}

// Applied returns the applied patches in application order.
func (e *Engine) Applied(ctx context.Context) ([]patch.Patch, error) {
	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	applied := q.db.AppliedPatches()
	if len(applied) == 0 {
		return nil, errors.WithStack(ErrNoAppliedPatch)
	}
	for i, p := range applied {
		applied[i] = seriesPatch(q, p)
	}
	return applied, nil
}

// Unapplied returns the patches after name, or after the top patch when
// name is empty.
func (e *Engine) Unapplied(ctx context.Context, name string) ([]patch.Patch, error) {
	q, err := e.load(ctx)
	if err != nil {
		return nil, err
	}
	if q.series.IsEmpty() {
		return nil, errors.WithStack(ErrNoPatchesInSeries)
	}

	ref := q.top()
	if name != "" {
		p, err := q.series.Lookup(name)
		if err != nil {
			return nil, err
		}
		ref = &p
	}
	if ref == nil {
		return q.series.Patches(), nil
	}
	return q.series.PatchesAfter(*ref)
}
