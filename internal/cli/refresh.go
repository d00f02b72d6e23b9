package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var (
	refreshEdit  bool
	refreshForce bool
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [patch]",
	Short: "Regenerate a patch from the changes in the working tree",
	Long: `Regenerate the top patch, or the given applied patch, from the
differences between the backed-up files and the working tree. The
description at the top of the patch file is kept.

With --edit, the new patch opens in the editor before it is saved and must
still apply to the backed-up files.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		req := &engine.RefreshRequest{
			Edit:  refreshEdit,
			Force: refreshForce,
		}
		if len(args) > 0 {
			req.Name = args[0]
		}

		_, err = s.engine.Refresh(s.ctx, req)
		return err
	},
}

func init() {
	refreshCmd.Flags().BoolVarP(&refreshEdit, "edit", "e", false, "Edit the patch before saving it")
	refreshCmd.Flags().BoolVarP(&refreshForce, "force", "f", false, "Refresh even if later patches modify the same files")
}
