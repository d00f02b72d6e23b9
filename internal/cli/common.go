package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/config"
	"github.com/bjoernricks/python-quilt/internal/diffcmd"
	"github.com/bjoernricks/python-quilt/internal/editor"
	"github.com/bjoernricks/python-quilt/internal/engine"
	"github.com/bjoernricks/python-quilt/internal/fsops"
	"github.com/bjoernricks/python-quilt/internal/logging"
	"github.com/bjoernricks/python-quilt/internal/patchcmd"
	"github.com/bjoernricks/python-quilt/internal/workdir"
)

// Exit codes returned by the binary.
const (
	ExitOK    = 0
	ExitError = 1
	ExitNoop  = 2
)

// session is what a command needs to talk to the engine.
type session struct {
	engine *engine.Engine
	ctx    context.Context
	cwd    string
	out    io.Writer
}

// newSession loads the configuration, finds the project root and creates
// an engine with real implementations of all dependencies. Engine events
// are printed to the command output.
func newSession(cmd *cobra.Command, quiet bool) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger, err := logging.New(level, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	ctx := logging.WithLogger(commandContext(cmd), logger)

	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Errorf("failed to get current directory: %w", err)
	}
	root, err := workdir.Discover(cwd, cfg.PatchesDir, cfg.PCDir)
	if err != nil {
		return nil, err
	}
	paths := config.NewPaths(root, cfg.PatchesDir, cfg.PCDir)
	zerolog.Ctx(ctx).Debug().Str("root", paths.Root).Str("patches", paths.Patches).Str("pc", paths.PC).Msg("resolved project")

	out := cmd.OutOrStdout()
	patcher := patchcmd.NewGNUPatch(cfg.PatchCommand)
	if !quiet {
		patcher.Output = out
	}

	eng := engine.New(paths, fsops.NewRealFS(), patcher, newDiffer(cfg), editor.New(cfg.Editor))
	eng.Subscribe(newPrinter(out).handle)

	return &session{engine: eng, ctx: ctx, cwd: cwd, out: out}, nil
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Resolve(configFile)
	}
	return config.LoadDefault()
}

func newDiffer(cfg *config.Config) diffcmd.Differ {
	if cfg.Diff == config.DiffBuiltin {
		return diffcmd.NewBuiltin()
	}
	return diffcmd.NewExecDiff(cfg.DiffCommand)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// relFiles turns file arguments, relative to the current directory, into
// paths relative to the project root.
func (s *session) relFiles(args []string) ([]string, error) {
	files := make([]string, 0, len(args))
	for _, arg := range args {
		rel, err := workdir.RelPath(s.engine.Paths().Root, s.cwd, arg)
		if err != nil {
			return nil, err
		}
		files = append(files, rel)
	}
	return files, nil
}

// outputJSON outputs a value as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatError formats an error for display. Requests that had nothing to
// do are reported as warnings.
func FormatError(err error) string {
	if engine.IsNoop(err) {
		return warningColor.Sprint(err.Error())
	}
	return errorColor.Sprintf("Error: %v", err)
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case engine.IsNoop(err):
		return ExitNoop
	default:
		return ExitError
	}
}
