package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var (
	deleteRemove bool
	deleteBackup bool
	deleteNext   bool
	deleteForce  bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [patch]",
	Short: "Remove a patch from the series",
	Long: `Remove a patch from the series. Without [patch], the top patch is
deleted; with --next, the patch after it.

An applied patch can only be deleted when it is the top patch; it is popped
first. The patch file stays in the patches directory unless --remove is
given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if deleteNext && len(args) > 0 {
			return errors.New("--next cannot be combined with a patch name")
		}

		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		req := &engine.DeleteRequest{
			Next:   deleteNext,
			Remove: deleteRemove,
			Backup: deleteBackup,
			Force:  deleteForce,
		}
		if len(args) > 0 {
			req.Name = args[0]
		}

		result, err := s.engine.Delete(s.ctx, req)
		if err != nil {
			return err
		}
		if result.Backup != "" {
			PrintDim(s.out, fmt.Sprintf("Patch file kept as %s", result.Backup))
		}
		return nil
	},
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteRemove, "remove", "r", false, "Remove the patch file as well")
	deleteCmd.Flags().BoolVar(&deleteBackup, "backup", false, "With --remove, rename the patch file to <patch>~ instead")
	deleteCmd.Flags().BoolVarP(&deleteNext, "next", "n", false, "Delete the patch after the top patch")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Delete the top patch even if it needs a refresh")
}
