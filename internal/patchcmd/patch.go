// Package patchcmd runs the external patch tool.
//
// The tool is a black box: a run either succeeds, fails with exit status 1
// because some hunks did not apply, or fails harder (bad input, missing
// binary).
package patchcmd

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultCommand is the patch binary looked up in PATH.
const DefaultCommand = "patch"

// Options configures one run of the patch tool.
type Options struct {
	// PatchFile is the diff to apply (-i).
	PatchFile string

	// Dir is the directory the tool runs in.
	Dir string

	// WorkDir makes the tool change to this directory first (-d).
	WorkDir string

	// Strip is the number of leading path components to remove (-pN).
	Strip int

	// Backup keeps originals of changed files (--backup).
	Backup bool

	// Prefix is prepended to backup file names (--prefix). A trailing
	// separator is added when missing.
	Prefix string

	// Reverse applies the diff reversed (-R).
	Reverse bool

	// Force skips questions and applies what it can (-f).
	Force bool

	// Quiet suppresses output unless there are errors (-s).
	Quiet bool

	// DryRun only reports what would happen (--dry-run).
	DryRun bool

	// NoBackupIfMismatch suppresses backups for partly failing files.
	NoBackupIfMismatch bool

	// RemoveEmptyFiles deletes files that are empty after patching.
	RemoveEmptyFiles bool
}

// Args returns the command line arguments for opts.
func (opts Options) Args() []string {
	args := []string{"-p" + strconv.Itoa(opts.Strip)}
	if opts.Backup {
		args = append(args, "--backup")
	}
	if opts.Prefix != "" {
		prefix := opts.Prefix
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		args = append(args, "--prefix", prefix)
	}
	if opts.Reverse {
		args = append(args, "-R")
	}
	if opts.WorkDir != "" {
		args = append(args, "-d", opts.WorkDir)
	}
	if opts.NoBackupIfMismatch {
		args = append(args, "--no-backup-if-mismatch")
	}
	if opts.RemoveEmptyFiles {
		args = append(args, "--remove-empty-files")
	}
	if opts.Force {
		args = append(args, "-f")
	}
	args = append(args, "-i", opts.PatchFile)
	if opts.Quiet {
		args = append(args, "-s")
	}
	if opts.DryRun {
		args = append(args, "--dry-run")
	}
	return args
}

// Patcher applies a diff to a tree.
type Patcher interface {
	Apply(ctx context.Context, opts Options) error
}

// RunError reports a run of the tool that exited non-zero.
type RunError struct {
	Command  string
	ExitCode int
	Output   string
}

func (e *RunError) Error() string {
	msg := e.Command + " exited with status " + strconv.Itoa(e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

// IsConflict reports whether the run failed only because hunks did not
// apply.
func (e *RunError) IsConflict() bool {
	return e.ExitCode == 1
}

// IsConflict reports whether err is a run that failed because hunks did
// not apply.
func IsConflict(err error) bool {
	var runErr *RunError
	return errors.As(err, &runErr) && runErr.IsConflict()
}

// GNUPatch runs GNU patch.
type GNUPatch struct {
	// Path is the binary to run. Empty means DefaultCommand.
	Path string

	// Output receives what the tool prints on runs that change the tree,
	// failed ones included. Nil discards it.
	Output io.Writer
}

// NewGNUPatch returns a runner for the given binary.
func NewGNUPatch(path string) *GNUPatch {
	return &GNUPatch{Path: path}
}

func (p *GNUPatch) command() string {
	if p.Path == "" {
		return DefaultCommand
	}
	return p.Path
}

// Apply runs the tool. A non-zero exit is returned as *RunError carrying
// the combined output.
func (p *GNUPatch) Apply(ctx context.Context, opts Options) error {
	logger := zerolog.Ctx(ctx)
	args := opts.Args()

	cmd := exec.CommandContext(ctx, p.command(), args...)
	cmd.Dir = opts.Dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	logger.Debug().Str("dir", opts.Dir).Strs("args", args).Msg("running patch")

	err := cmd.Run()
	if p.Output != nil && !opts.DryRun {
		_, _ = p.Output.Write(out.Bytes())
	}
	if err == nil {
		return nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		runErr := &RunError{Command: p.command(), ExitCode: exitErr.ExitCode(), Output: out.String()}
		logger.Debug().Int("exit_code", runErr.ExitCode).Str("output", runErr.Output).Msg("patch failed")
		return runErr
	}
	return errors.Errorf("failed to run %s: %w", p.command(), err)
}
