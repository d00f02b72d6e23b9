package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var addPatch string

var addCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Start tracking files in a patch",
	Long: `Back up files so that later changes to them end up in a patch on refresh.
Files that do not exist yet are recorded as created by the patch.

Files are added to the top patch unless --patch names another one. Files
must be added before they are changed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		files, err := s.relFiles(args)
		if err != nil {
			return err
		}

		_, err = s.engine.Add(s.ctx, &engine.AddRequest{Files: files, Patch: addPatch})
		return err
	},
}

func init() {
	addCmd.Flags().StringVarP(&addPatch, "patch", "P", "", "Patch to add the files to (default: top patch)")
}
