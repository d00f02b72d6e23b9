package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjoernricks/python-quilt/internal/engine"
	"github.com/bjoernricks/python-quilt/internal/planner"
)

var (
	pushAll    bool
	pushForce  bool
	pushQuiet  bool
	pushDryRun bool
)

var pushCmd = &cobra.Command{
	Use:   "push [patch]",
	Short: "Apply the next patch, all patches, or patches up to a target",
	Long: `Apply the next patch in the series on top of the applied ones.

With [patch], apply every patch up to and including it. With --all, apply
the whole series. A patch that does not apply cleanly leaves the tree
unchanged unless --force keeps it applied over its conflicts; it must then
be refreshed before it can be popped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, pushQuiet)
		if err != nil {
			return err
		}

		req := &engine.PushRequest{
			Mode:   modeFor(pushAll, args),
			Force:  pushForce,
			Quiet:  pushQuiet,
			DryRun: pushDryRun,
		}
		if len(args) > 0 {
			req.Target = args[0]
		}

		result, err := s.engine.Push(s.ctx, req)
		if err != nil {
			return err
		}
		if pushDryRun {
			PrintDim(s.out, fmt.Sprintf("Dry run: %s would apply", PrintCount(len(result.Applied), "patch", "patches")))
		}
		return nil
	},
}

// modeFor picks the plan mode from the --all flag and an optional target.
func modeFor(all bool, args []string) planner.Mode {
	switch {
	case all:
		return planner.All
	case len(args) > 0:
		return planner.To
	default:
		return planner.Next
	}
}

func init() {
	pushCmd.Flags().BoolVarP(&pushAll, "all", "a", false, "Apply all patches in the series")
	pushCmd.Flags().BoolVarP(&pushForce, "force", "f", false, "Force apply, keeping patches applied over conflicts")
	pushCmd.Flags().BoolVarP(&pushQuiet, "quiet", "q", false, "Print less output")
	pushCmd.Flags().BoolVar(&pushDryRun, "dry-run", false, "Check whether the patches apply without changing anything")
}
