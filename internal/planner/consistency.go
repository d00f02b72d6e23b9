package planner

import (
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/series"
)

// CheckApplied verifies that every applied patch is listed in the series
// and that they were applied in series order. Pushing on top of a list that
// violates this would apply patches out of order.
func CheckApplied(s *series.Series, applied []patch.Patch) error {
	last := -1
	positions := make(map[string]int, s.Len())
	for i, p := range s.Patches() {
		positions[p.Key()] = i
	}

	for _, p := range applied {
		pos, ok := positions[p.Key()]
		if !ok {
			return errors.Errorf("%w: applied patch %s is not in the series", ErrInconsistentState, p.Name)
		}
		if pos < last {
			return errors.Errorf("%w: patch %s was applied out of series order", ErrInconsistentState, p.Name)
		}
		last = pos
	}
	return nil
}
