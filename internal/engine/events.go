package engine

import "github.com/bjoernricks/python-quilt/internal/patch"

// EventKind identifies what happened.
type EventKind int

const (
	Applying EventKind = iota
	Applied
	// AppliedEmpty is sent for patches that changed nothing. Existed tells
	// whether the patch file exists.
	AppliedEmpty
	// AppliedForced is sent for patches applied over conflicts.
	AppliedForced
	// NowAt carries the top patch after a push.
	NowAt
	Unapplying
	UnappliedPatch
	// Unapplied carries the top patch after a pop. The patch name is empty
	// when nothing is applied anymore.
	Unapplied
	EmptyPatch
	// Deleting is sent before a patch is deleted. WasApplied tells whether
	// it had to be popped.
	Deleting
	Deleted
	Refreshed
	FileAdded
	FileReverted
	FileUnchanged
	PatchCreated
	Imported
)

var eventNames = map[EventKind]string{
	Applying:       "applying",
	Applied:        "applied",
	AppliedEmpty:   "applied-empty",
	AppliedForced:  "applied-forced",
	NowAt:          "now-at",
	Unapplying:     "unapplying",
	UnappliedPatch: "unapplied-patch",
	Unapplied:      "unapplied",
	EmptyPatch:     "empty-patch",
	Deleting:       "deleting",
	Deleted:        "deleted",
	Refreshed:      "refreshed",
	FileAdded:      "file-added",
	FileReverted:   "file-reverted",
	FileUnchanged:  "file-unchanged",
	PatchCreated:   "patch-created",
	Imported:       "imported",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return "unknown"
}

// Event describes a step of an operation.
type Event struct {
	Kind  EventKind
	Patch patch.Patch

	// File is the working-tree path for file events.
	File string

	Existed    bool
	WasApplied bool
}

// Listener receives events synchronously, in order.
type Listener func(Event)
