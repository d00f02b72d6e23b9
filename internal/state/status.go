package state

import "github.com/bjoernricks/python-quilt/internal/patch"

// Status is the lifecycle state of a patch in the queue.
type Status int

const (
	// Unapplied patches are listed in the series but not applied.
	Unapplied Status = iota

	// Applied patches applied cleanly or were refreshed since.
	Applied

	// AppliedNeedsRefresh patches were force-applied over conflicts. Their
	// diff no longer matches the tree until they are refreshed.
	AppliedNeedsRefresh

	// NeedsRefresh marks an unapplied patch whose refresh flag survived,
	// typically left behind by an interrupted command.
	NeedsRefresh
)

func (s Status) String() string {
	switch s {
	case Unapplied:
		return "unapplied"
	case Applied:
		return "applied"
	case AppliedNeedsRefresh:
		return "applied (needs refresh)"
	case NeedsRefresh:
		return "needs refresh"
	default:
		return "unknown"
	}
}

// PatchState is the status record every operation consults before it acts
// on a patch.
type PatchState struct {
	Patch        patch.Patch
	Applied      bool
	NeedsRefresh bool
}

// Status derives the lifecycle state from the record.
func (ps PatchState) Status() Status {
	switch {
	case ps.Applied && ps.NeedsRefresh:
		return AppliedNeedsRefresh
	case ps.Applied:
		return Applied
	case ps.NeedsRefresh:
		return NeedsRefresh
	default:
		return Unapplied
	}
}

// Blocked reports whether the patch must be refreshed before it can be
// pushed, popped or have files reverted without force.
func (ps PatchState) Blocked() bool {
	return ps.NeedsRefresh
}
