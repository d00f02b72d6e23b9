package engine

import "github.com/bjoernricks/python-quilt/internal/planner"

// PushRequest represents a request to apply patches.
type PushRequest struct {
	// Mode selects one patch, all patches or patches up to Target
	Mode planner.Mode

	// Target is the last patch to apply for planner.To
	Target string

	// Force keeps a patch applied over conflicts
	Force bool

	// Quiet suppresses the output of the patch tool
	Quiet bool

	// DryRun only checks whether the patches would apply
	DryRun bool
}

// PopRequest represents a request to remove applied patches.
type PopRequest struct {
	// Mode selects the top patch, all patches or patches above Target
	Mode planner.Mode

	// Target stays applied as the new top for planner.To
	Target string

	// Force skips the refresh gate and the clean-removal check
	Force bool
}

// NewRequest represents a request to create a patch.
type NewRequest struct {
	Name string
}

// DeleteRequest represents a request to remove a patch from the series.
type DeleteRequest struct {
	// Name is the patch to delete. Empty means the top patch.
	Name string

	// Next deletes the patch after the top instead
	Next bool

	// Remove also deletes the patch file
	Remove bool

	// Backup keeps the removed patch file as <file>~
	Backup bool

	// Force pops an applied patch even if it needs a refresh
	Force bool
}

// RefreshRequest represents a request to regenerate a patch file.
type RefreshRequest struct {
	// Name is the patch to refresh. Empty means the top patch.
	Name string

	// Edit opens the draft in the editor before it is committed
	Edit bool

	// Force refreshes a patch whose files are shadowed by later patches
	Force bool
}

// RevertRequest represents a request to drop unrefreshed changes.
type RevertRequest struct {
	// Files are paths relative to the project root
	Files []string

	// Patch owns the files. Empty means the top patch.
	Patch string

	// Force skips the refresh gate
	Force bool
}

// AddRequest represents a request to track files in a patch.
type AddRequest struct {
	// Files are paths relative to the project root
	Files []string

	// Patch receives the files. Empty means the top patch, or the first
	// patch of the series when none is applied.
	Patch string

	// IgnoreTracked silently skips files the patch already tracks
	IgnoreTracked bool
}

// ImportRequest represents a request to copy patch files into the queue.
type ImportRequest struct {
	// Files are patch files or doublestar patterns
	Files []string

	// Name renames a single imported patch
	Name string

	// Strip is written as the patch option in the series
	Strip int

	// Reverse is written as the patch option in the series
	Reverse bool
}
