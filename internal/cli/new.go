package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
)

var newCmd = &cobra.Command{
	Use:   "new <patch>",
	Short: "Create a new empty patch on top of the applied ones",
	Long: `Create a new empty patch, insert it into the series after the top patch
and apply it. Use add or edit to start tracking files, and refresh to
record changes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		_, err = s.engine.NewPatch(s.ctx, &engine.NewRequest{Name: args[0]})
		return err
	},
}
