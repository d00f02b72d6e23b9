package cli

import (
	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
	"github.com/bjoernricks/python-quilt/internal/patch"
)

var (
	importName    string
	importStrip   int
	importReverse bool
)

var importCmd = &cobra.Command{
	Use:   "import <patchfile>...",
	Short: "Copy patch files into the series after the top patch",
	Long: `Copy patch files into the patches directory and list them in the series
after the top patch. Nothing is applied. Arguments may be glob patterns
such as 'upstream/**/*.patch'.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}

		_, err = s.engine.Import(s.ctx, &engine.ImportRequest{
			Files:   args,
			Name:    importName,
			Strip:   importStrip,
			Reverse: importReverse,
		})
		return err
	},
}

func init() {
	importCmd.Flags().StringVarP(&importName, "name", "P", "", "Import a single patch under a new name")
	importCmd.Flags().IntVarP(&importStrip, "strip", "p", patch.DefaultStrip, "Strip level for the imported patches")
	importCmd.Flags().BoolVarP(&importReverse, "reverse", "R", false, "Apply the imported patches in reverse")
}
