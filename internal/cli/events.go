package cli

import (
	"fmt"
	"io"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

// printer renders engine events in the style of quilt.
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) handle(ev engine.Event) {
	name := ev.Patch.Name
	switch ev.Kind {
	case engine.Applying:
		PrintInfo(p.w, fmt.Sprintf("Applying patch %s", name))
	case engine.AppliedEmpty:
		if ev.Existed {
			PrintDim(p.w, fmt.Sprintf("Patch %s appears to be empty; applied", name))
		} else {
			PrintWarning(p.w, fmt.Sprintf("Patch %s does not exist; applied empty patch", name))
		}
	case engine.AppliedForced:
		PrintWarning(p.w, fmt.Sprintf("Applied patch %s (forced; needs refresh)", name))
	case engine.NowAt:
		PrintSuccess(p.w, fmt.Sprintf("\nNow at patch %s", name))
	case engine.Unapplying:
		PrintInfo(p.w, fmt.Sprintf("Removing patch %s", name))
	case engine.EmptyPatch:
		PrintDim(p.w, fmt.Sprintf("Patch %s appears to be empty, removing", name))
	case engine.Unapplied:
		if name == "" {
			PrintSuccess(p.w, "\nNo patches applied")
		} else {
			PrintSuccess(p.w, fmt.Sprintf("\nNow at patch %s", name))
		}
	case engine.Deleting:
		if ev.WasApplied {
			PrintInfo(p.w, fmt.Sprintf("Removing currently applied patch %s", name))
		}
	case engine.Deleted:
		PrintSuccess(p.w, fmt.Sprintf("Removed patch %s", name))
	case engine.Refreshed:
		PrintSuccess(p.w, fmt.Sprintf("Refreshed patch %s", name))
	case engine.FileAdded:
		PrintInfo(p.w, fmt.Sprintf("File %s added to patch %s", ev.File, name))
	case engine.FileReverted:
		PrintInfo(p.w, fmt.Sprintf("Changes to %s in patch %s reverted", ev.File, name))
	case engine.FileUnchanged:
		PrintDim(p.w, fmt.Sprintf("File %s is unchanged", ev.File))
	case engine.PatchCreated:
		PrintSuccess(p.w, fmt.Sprintf("Patch %s is now on top", name))
	case engine.Imported:
		PrintInfo(p.w, fmt.Sprintf("Importing patch %s", name))
	}
}
