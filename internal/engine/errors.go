package engine

import (
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/planner"
	"github.com/bjoernricks/python-quilt/internal/series"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// Errors raised by lower layers, re-exported so callers only import engine.
var (
	ErrNoPatchesInSeries  = planner.ErrNoPatchesInSeries
	ErrNoAppliedPatch     = planner.ErrNoAppliedPatch
	ErrPatchNotApplied    = planner.ErrPatchNotApplied
	ErrInconsistentState  = planner.ErrInconsistentState
	ErrAllPatchesApplied  = planner.ErrAllPatchesApplied
	ErrNothingToPop       = planner.ErrNothingToPop
	ErrNothingToDo        = planner.ErrNothingToDo
	ErrUnknownPatch       = series.ErrUnknownPatch
	ErrPatchAlreadyExists = series.ErrPatchAlreadyExists
	ErrUnsupportedVersion = state.ErrUnsupportedVersion
	ErrLocked             = state.ErrLocked
)

var (
	// ErrNeedsRefresh indicates a patch carrying the refresh flag.
	ErrNeedsRefresh = errors.Base("patch needs to be refreshed first")

	// ErrDoesNotApply indicates a patch whose hunks failed against the tree.
	ErrDoesNotApply = errors.Base("patch does not apply")

	// ErrDoesNotRemoveCleanly indicates a patch that cannot be reversed
	// against the tree, usually because of unrefreshed edits.
	ErrDoesNotRemoveCleanly = errors.Base("patch does not remove cleanly (refresh it or enforce with -f)")

	// ErrForcedApply indicates a patch applied over conflicts. The patch is
	// applied but must be refreshed.
	ErrForcedApply = errors.Base("applied patch forced; needs refresh")

	// ErrInvalidPatch indicates an edited refresh draft that does not apply
	// to the backed-up files.
	ErrInvalidPatch = errors.Base("refreshed patch does not apply")

	// ErrNothingToRefresh indicates a refresh that would not change the
	// patch file.
	ErrNothingToRefresh = errors.BaseWrap(ErrNothingToDo, "nothing to refresh")

	// ErrFileInPatch indicates a file already tracked by the patch.
	ErrFileInPatch = errors.Base("file is already in patch")

	// ErrFileNotInPatch indicates a file the patch does not track.
	ErrFileNotInPatch = errors.Base("file is not in patch")

	// ErrModifiedByLaterPatch indicates a file tracked by a patch applied
	// after the target.
	ErrModifiedByLaterPatch = errors.Base("file is modified by a later patch")

	// ErrSymlink indicates an attempt to track a symbolic link.
	ErrSymlink = errors.Base("cannot add symbolic link")

	// ErrNoPatchAvailable indicates that no patch is applied or listed.
	ErrNoPatchAvailable = errors.Base("no patch available")

	// ErrNoNextPatch indicates that the top patch is the last one.
	ErrNoNextPatch = errors.Base("no next patch")

	// ErrNoPreviousPatch indicates that the patch is the first one.
	ErrNoPreviousPatch = errors.Base("no previous patch")

	// ErrReservedName indicates a patch name that would share a path with
	// the series file or the metadata directory bookkeeping.
	ErrReservedName = errors.Base("patch name is reserved")

	// ErrPatchApplied indicates an applied patch that is not on top.
	ErrPatchApplied = errors.Base("patch is applied but not on top")
)

// IsNoop reports whether err means the request was already satisfied.
func IsNoop(err error) bool {
	return errors.Is(err, ErrNothingToDo)
}
