package cli

import (
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/engine"
	"github.com/bjoernricks/python-quilt/internal/patch"
)

var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Print the name of the top patch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		p, err := s.engine.Top(s.ctx)
		if err != nil {
			return err
		}
		return printPatches(s, []patch.Patch{p})
	},
}

var nextCmd = &cobra.Command{
	Use:   "next [patch]",
	Short: "Print the name of the patch after the top or given patch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		p, err := s.engine.Next(s.ctx, firstArg(args))
		if err != nil {
			return err
		}
		return printPatches(s, []patch.Patch{p})
	},
}

var previousCmd = &cobra.Command{
	Use:   "previous [patch]",
	Short: "Print the name of the patch before the top or given patch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		p, err := s.engine.Previous(s.ctx, firstArg(args))
		if err != nil {
			return err
		}
		return printPatches(s, []patch.Patch{p})
	},
}

var appliedCmd = &cobra.Command{
	Use:   "applied",
	Short: "List the applied patches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		ps, err := s.engine.Applied(s.ctx)
		if err != nil {
			return err
		}
		return printPatches(s, ps)
	},
}

var unappliedCmd = &cobra.Command{
	Use:   "unapplied [patch]",
	Short: "List the patches after the top or given patch",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd, false)
		if err != nil {
			return err
		}
		ps, err := s.engine.Unapplied(s.ctx, firstArg(args))
		if err != nil {
			return err
		}
		return printPatches(s, ps)
	},
}

func printPatches(s *session, ps []patch.Patch) error {
	if jsonOutput {
		out := make([]patchJSON, 0, len(ps))
		for _, p := range ps {
			out = append(out, patchJSON{Name: p.Name, Strip: p.Strip, Reverse: p.Reverse})
		}
		return outputJSON(s.out, out)
	}
	for _, p := range ps {
		PrintInfo(s.out, p.Name)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func isNoAppliedPatch(err error) bool {
	return errors.Is(err, engine.ErrNoAppliedPatch)
}
