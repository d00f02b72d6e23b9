package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var (
	popAll   bool
	popForce bool
)

var popCmd = &cobra.Command{
	Use:   "pop [patch]",
	Short: "Remove the top patch, all patches, or patches above a target",
	Long: `Remove the top patch by restoring the files it touched from their backups.

With [patch], remove the patches above it so that it becomes the top patch.
With --all, remove every applied patch. A patch is only removed when it
reverses cleanly against the working tree; refresh it first or use --force
to discard unrefreshed changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		req := &engine.PopRequest{
			Mode:  modeFor(popAll, args),
			Force: popForce,
		}
		if len(args) > 0 {
			req.Target = args[0]
		}

		_, err = s.engine.Pop(s.ctx, req)
		return err
	},
}

func init() {
	popCmd.Flags().BoolVarP(&popAll, "all", "a", false, "Remove all applied patches")
	popCmd.Flags().BoolVarP(&popForce, "force", "f", false, "Force removal, restoring backups without checks")
}
