package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var (
	revertPatch string
	revertForce bool
)

var revertCmd = &cobra.Command{
	Use:   "revert <file>...",
	Short: "Drop unrefreshed changes to files",
	Long: `Restore files to the state the patch produces, dropping changes made
since it was applied or last refreshed.`,
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

		_, err = s.engine.Revert(s.ctx, &engine.RevertRequest{
			Files: files,
			Patch: revertPatch,
			Force: revertForce,
		})
		return err
	},
}

func init() {
	revertCmd.Flags().StringVarP(&revertPatch, "patch", "P", "", "Patch the files belong to (default: top patch)")
	revertCmd.Flags().BoolVarP(&revertForce, "force", "f", false, "Revert even if the patch needs a refresh")
}
