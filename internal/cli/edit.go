package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var editCmd = &cobra.Command{
	Use:   "edit <file>...",
	Short: "Add files to the top patch and open them in the editor",
	Long: `Add files to the top patch, skipping those it already tracks, and open
them in the editor configured by the editor key or $EDITOR.`,
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

		_, err = s.engine.Edit(s.ctx, &engine.AddRequest{Files: files})
		return err
	},
}
