package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	jsonOutput bool
	logLevel   string
	configFile string

	// Colors for help output sections
	groupTitleColor   = color.New(color.FgCyan, color.Bold)
	sectionTitleColor = color.New(color.FgBlue, color.Bold)
)

// rootCmd is the root command for pquilt.
var rootCmd = &cobra.Command{
	Use:     "pquilt",
	Version: "dev",
	Short:   "Manage a series of patches on top of a source tree",
	Long: `pquilt manages a stack of patches applied on top of a source tree.

Patches are listed in patches/series and applied in order. pquilt records
what it applied in .pc/ together with backups of every file a patch touches,
so that patches can be removed again and refreshed from the working tree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func SetVersion(v string) {
	if v == "" {
		return
	}
	rootCmd.Version = v
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

// customHelpFunc returns a custom help function that colors group titles
func customHelpFunc(cmd *cobra.Command, args []string) {
	var help strings.Builder

	if cmd.Long != "" {
		help.WriteString(cmd.Long)
		help.WriteString("\n\n")
	} else if cmd.Short != "" {
		help.WriteString(cmd.Short)
		help.WriteString("\n\n")
	}

	help.WriteString(sectionTitleColor.Sprint("Usage:"))
	help.WriteString("\n")
	fmt.Fprintf(&help, "  %s\n\n", cmd.UseLine())

	for _, group := range cmd.Groups() {
		help.WriteString(groupTitleColor.Sprint(group.Title))
		help.WriteString("\n")

		for _, c := range cmd.Commands() {
			if c.GroupID == group.ID && !c.Hidden {
				fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
			}
		}
		help.WriteString("\n")
	}

	// Additional Commands section
	hasUngrouped := false
	for _, c := range cmd.Commands() {
		if c.GroupID == "" && !c.Hidden && c.IsAvailableCommand() {
			if !hasUngrouped {
				help.WriteString(sectionTitleColor.Sprint("Additional Commands:"))
				help.WriteString("\n")
				hasUngrouped = true
			}
			fmt.Fprintf(&help, "  %-11s %s\n", c.Name(), c.Short)
		}
	}
	if hasUngrouped {
		help.WriteString("\n")
	}

	if cmd.HasAvailableLocalFlags() || cmd.HasAvailableInheritedFlags() {
		help.WriteString(sectionTitleColor.Sprint("Flags:"))
		help.WriteString("\n")
		help.WriteString(cmd.LocalFlags().FlagUsages())
		help.WriteString(cmd.InheritedFlags().FlagUsages())
		help.WriteString("\n")
	}

	fmt.Fprintf(&help, "Use \"%s [command] --help\" for more information about a command.\n", cmd.CommandPath())

	fmt.Fprint(cmd.OutOrStdout(), help.String())
}

func init() {
	rootCmd.SetHelpFunc(customHelpFunc)

	// Global flags
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output queries in JSON format")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $PQUILT_CONFIG or ~/.pquiltrc.yaml)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "stack",
		Title: "Patch Stack:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "patch-management",
		Title: "Patch Management:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "files",
		Title: "Working Files:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "queries",
		Title: "Queries:",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cli-tooling",
		Title: "CLI & Tooling:",
	})

	// CLI & Tooling commands
	versionCmd := &cobra.Command{
		Use:     "version",
		Short:   "Print the pquilt CLI version",
		Args:    cobra.NoArgs,
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), rootCmd.Version)
		},
	}
	rootCmd.AddCommand(versionCmd)

	helpCmd := &cobra.Command{
		Use:     "help [command]",
		Short:   "Help about any command",
		GroupID: "cli-tooling",
		Run: func(cmd *cobra.Command, args []string) {
			target, _, err := rootCmd.Find(args)
			if err != nil || target == nil {
				target = rootCmd
			}
			_ = target.Help()
		},
	}
	rootCmd.SetHelpCommand(helpCmd)

	completionCmd := &cobra.Command{
		Use:     "completion",
		Short:   "Generate the autocompletion script for the specified shell",
		GroupID: "cli-tooling",
		Long: `Generate the autocompletion script for pquilt for the specified shell.
See each sub-command's help for details on how to use the generated script.`,
	}
	completionCmd.AddCommand(&cobra.Command{
		Use:                   "bash",
		Short:                 "Generate the autocompletion script for bash",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenBashCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:                   "zsh",
		Short:                 "Generate the autocompletion script for zsh",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenZshCompletion(cmd.OutOrStdout())
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:                   "fish",
		Short:                 "Generate the autocompletion script for fish",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenFishCompletion(cmd.OutOrStdout(), true)
		},
	})
	completionCmd.AddCommand(&cobra.Command{
		Use:                   "powershell",
		Short:                 "Generate the autocompletion script for powershell",
		DisableFlagsInUseLine: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootCmd.GenPowerShellCompletionWithDesc(cmd.OutOrStdout())
		},
	})
	rootCmd.AddCommand(completionCmd)

	// Patch Stack commands
	pushCmd.GroupID = "stack"
	popCmd.GroupID = "stack"
	refreshCmd.GroupID = "stack"
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(popCmd)
	rootCmd.AddCommand(refreshCmd)

	// Patch Management commands
	newCmd.GroupID = "patch-management"
	deleteCmd.GroupID = "patch-management"
	importCmd.GroupID = "patch-management"
	rootCmd.AddCommand(newCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(importCmd)

	// Working Files commands
	addCmd.GroupID = "files"
	editCmd.GroupID = "files"
	revertCmd.GroupID = "files"
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(revertCmd)

	// Queries
	seriesCmd.GroupID = "queries"
	appliedCmd.GroupID = "queries"
	unappliedCmd.GroupID = "queries"
	topCmd.GroupID = "queries"
	nextCmd.GroupID = "queries"
	previousCmd.GroupID = "queries"
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(appliedCmd)
	rootCmd.AddCommand(unappliedCmd)
	rootCmd.AddCommand(topCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(previousCmd)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
