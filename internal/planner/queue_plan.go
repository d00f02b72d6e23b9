package planner

import (
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/series"
)

// Queue is the read-only view of the series and the applied list the
// planner works on.
type Queue struct {
	Series  *series.Series
	Applied []patch.Patch
}

func (q Queue) top() *patch.Patch {
	if len(q.Applied) == 0 {
		return nil
	}
	top := q.Applied[len(q.Applied)-1]
	return &top
}

// BuildPushPlan returns the patches a push applies, in series order. The
// returned patches carry the options written in the series.
func BuildPushPlan(q Queue, req Request) (*Plan, error) {
	if q.Series.IsEmpty() {
		return nil, errors.WithStack(ErrNoPatchesInSeries)
	}
	if err := CheckApplied(q.Series, q.Applied); err != nil {
		return nil, err
	}

	top := q.top()
	remaining := q.Series.Patches()
	if top != nil {
		var err error
		remaining, err = q.Series.PatchesAfter(*top)
		if err != nil {
			return nil, err
		}
	}

	var patches []patch.Patch
	switch req.Mode {
	case Next:
		if len(remaining) > 0 {
			patches = remaining[:1]
		}
	case All:
		patches = remaining
	case To:
		target, err := q.Series.Lookup(req.Target)
		if err != nil {
			return nil, err
		}
		for i, p := range remaining {
			if p.Equal(target) {
				patches = remaining[:i+1]
				break
			}
		}
	default:
		return nil, errors.Errorf("unknown push mode %d", req.Mode)
	}

	if len(patches) == 0 {
		if top == nil {
			return nil, errors.WithStack(ErrAllPatchesApplied)
		}
		return nil, errors.Errorf("%w: series ends at patch %s", ErrAllPatchesApplied, top.Name)
	}

	plan := &Plan{Direction: Push, Patches: patches}
	last := patches[len(patches)-1]
	plan.Top = &last
	return plan, nil
}

// BuildPopPlan returns the patches a pop removes, most recently applied
// first.
func BuildPopPlan(q Queue, req Request) (*Plan, error) {
	if len(q.Applied) == 0 {
		return nil, errors.WithStack(ErrNoAppliedPatch)
	}

	keep := len(q.Applied) - 1
	switch req.Mode {
	case Next:
	case All:
		keep = 0
	case To:
		keep = -1
		for i, p := range q.Applied {
			if p.Name == req.Target {
				keep = i + 1
				break
			}
		}
		if keep < 0 {
			return nil, errors.Errorf("%s: %w", req.Target, ErrPatchNotApplied)
		}
		if keep == len(q.Applied) {
			return nil, errors.Errorf("%w: %s", ErrNothingToPop, req.Target)
		}
	default:
		return nil, errors.Errorf("unknown pop mode %d", req.Mode)
	}

	popped := q.Applied[keep:]
	patches := make([]patch.Patch, 0, len(popped))
	for i := len(popped) - 1; i >= 0; i-- {
		patches = append(patches, withSeriesOptions(q.Series, popped[i]))
	}

	plan := &Plan{Direction: Pop, Patches: patches}
	if keep > 0 {
		top := q.Applied[keep-1]
		plan.Top = &top
	}
	return plan, nil
}

// withSeriesOptions returns p with the options the series lists for it. The
// applied list only records names, and a patch may have left the series
// since it was applied.
func withSeriesOptions(s *series.Series, p patch.Patch) patch.Patch {
	if s == nil {
		return p
	}
	if listed, err := s.Get(p); err == nil {
		return listed
	}
	return p
}
