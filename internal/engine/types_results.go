package engine

import (
	"github.com/bjoernricks/python-quilt/internal/patch"
	"github.com/bjoernricks/python-quilt/internal/state"
)

// PushResult represents the outcome of a push.
type PushResult struct {
	// Applied lists the patches applied, in order
	Applied []patch.Patch

	// Top is the top patch afterwards
	Top *patch.Patch

	// Forced is set when the last patch was applied over conflicts
	Forced bool
}

// PopResult represents the outcome of a pop.
type PopResult struct {
	// Removed lists the patches removed, most recent first
	Removed []patch.Patch

	// Top is the top patch afterwards, nil when none is left
	Top *patch.Patch
}

// DeleteResult represents the outcome of a delete.
type DeleteResult struct {
	Patch      patch.Patch
	WasApplied bool

	// Backup is the renamed patch file, if one was kept
	Backup string
}

// RefreshResult represents the outcome of a refresh.
type RefreshResult struct {
	Patch patch.Patch

	// Files lists the files that differ from their backups
	Files []string
}

// FileResult reports what happened to one file.
type FileResult struct {
	File    string
	Changed bool
}

// ImportResult represents the outcome of an import.
type ImportResult struct {
	Patches []patch.Patch
}

// SeriesEntry pairs a listed patch with its status.
type SeriesEntry = state.PatchState
