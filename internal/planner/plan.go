package planner

import (
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
)

var (
	// ErrNoPatchesInSeries indicates an empty or missing series.
	ErrNoPatchesInSeries = errors.Base("no patches in series")

	// ErrNoAppliedPatch indicates that no patch is applied.
	ErrNoAppliedPatch = errors.Base("no patches applied")

	// ErrPatchNotApplied indicates a patch that is not in the applied list.
	ErrPatchNotApplied = errors.Base("patch is not applied")

	// ErrNothingToDo is the class of requests that are already satisfied.
	ErrNothingToDo = errors.Base("nothing to do")

	// ErrAllPatchesApplied indicates a push with nothing left to apply.
	ErrAllPatchesApplied = errors.BaseWrap(ErrNothingToDo, "all patches applied")

	// ErrNothingToPop indicates a pop to the patch that is already on top.
	ErrNothingToPop = errors.BaseWrap(ErrNothingToDo, "patch is already on top")

	// ErrInconsistentState indicates an applied list that is not a prefix
	// of the series.
	ErrInconsistentState = errors.Base("applied patches do not match the series")
)

// Direction tells whether a plan applies or removes patches.
type Direction string

// Plan directions.
const (
	Push Direction = "push"
	Pop  Direction = "pop"
)

// Mode selects how far a plan reaches.
type Mode int

const (
	// Next moves a single patch.
	Next Mode = iota
	// To moves patches until a named patch is reached.
	To
	// All moves every remaining patch.
	All
)

// Request describes what the caller wants moved.
type Request struct {
	Mode Mode

	// Target is the patch name for Mode To.
	Target string
}

// Plan is the ordered list of patches a push or pop moves.
type Plan struct {
	Direction Direction

	// Patches are in execution order: series order for a push, reverse
	// series order for a pop.
	Patches []patch.Patch

	// Top is the top patch after the plan ran, nil when nothing remains
	// applied.
	Top *patch.Patch
}

// IsEmpty reports whether the plan moves nothing.
func (p *Plan) IsEmpty() bool {
	return len(p.Patches) == 0
}

// Names returns the names of the planned patches.
func (p *Plan) Names() []string {
	return patch.Names(p.Patches)
}
