package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
	"github.com/bjoernricks/python-quilt/internal/state"
)

var seriesVerbose bool

// patchJSON is the JSON form of a patch in query output.
type patchJSON struct {
	Name    string `json:"name"`
	Strip   int    `json:"strip"`
	Reverse bool   `json:"reverse,omitempty"`
	Status  string `json:"status,omitempty"`
	Top     bool   `json:"top,omitempty"`
}

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "List the patches in the series",
	Long: `List all patches in the series file. With --verbose, a marker shows the
status of each patch:

  =  the top patch
  +  applied
  !  applied over conflicts, needs a refresh`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		entries, err := s.engine.Series(s.ctx)
		if err != nil {
			return err
		}
		top, err := s.engine.Top(s.ctx)
		if err != nil && !isNoAppliedPatch(err) {
			return err
		}

		if jsonOutput {
			out := make([]patchJSON, 0, len(entries))
			for _, entry := range entries {
				out = append(out, patchJSON{
					Name:    entry.Patch.Name,
					Strip:   entry.Patch.Strip,
					Reverse: entry.Patch.Reverse,
					Status:  entry.Status().String(),
					Top:     entry.Applied && entry.Patch.Equal(top),
				})
			}
			return outputJSON(s.out, out)
		}

		for _, entry := range entries {
			if !seriesVerbose {
				PrintInfo(s.out, entry.Patch.Name)
				continue
			}
			printSeriesEntry(s, entry, entry.Applied && entry.Patch.Equal(top))
		}
		return nil
	},
}

func printSeriesEntry(s *session, entry engine.SeriesEntry, isTop bool) {
	name := entry.Patch.Name
	switch {
	case entry.Status() == state.AppliedNeedsRefresh:
		PrintWarning(s.out, "! "+name)
	case isTop:
		PrintSuccess(s.out, "= "+name)
	case entry.Applied:
		PrintInfo(s.out, "+ "+name)
	default:
		PrintDim(s.out, "  "+name)
	}
}

func init() {
	seriesCmd.Flags().BoolVarP(&seriesVerbose, "verbose", "v", false, "Show the status of each patch")
}
