// Package diffcmd produces unified diffs between two files.
//
// ExecDiff shells out to the diff tool. Builtin computes the same output
// in-process and is used when no diff binary is wanted.
package diffcmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultCommand is the diff binary looked up in PATH.
const DefaultCommand = "diff"

// DevNull names the missing side of a created or deleted file.
const DevNull = "/dev/null"

// Differ compares files.
type Differ interface {
	// Diff writes the unified diff from left to right to w, using the
	// labels as file names. Nothing is written for equal files.
	Diff(ctx context.Context, left, right, leftLabel, rightLabel string, w io.Writer) error

	// Equal reports whether both files have the same content.
	Equal(ctx context.Context, left, right string) (bool, error)
}

// ExecDiff runs the diff tool.
type ExecDiff struct {
	// Path is the binary to run. Empty means DefaultCommand.
	Path string
}

// NewExecDiff returns a runner for the given binary.
func NewExecDiff(path string) *ExecDiff {
	return &ExecDiff{Path: path}
}

func (d *ExecDiff) command() string {
	if d.Path == "" {
		return DefaultCommand
	}
	return d.Path
}

// Diff runs "diff -u". Exit status 1 only means the files differ.
func (d *ExecDiff) Diff(ctx context.Context, left, right, leftLabel, rightLabel string, w io.Writer) error {
	args := []string{"-u", "--label", leftLabel, "--label", rightLabel, left, right}
	cmd := exec.CommandContext(ctx, d.command(), args...)
	var stderr bytes.Buffer
	cmd.Stdout = w
	cmd.Stderr = &stderr

	zerolog.Ctx(ctx).Debug().Strs("args", args).Msg("running diff")

	code, err := exitCode(cmd.Run())
	if err != nil {
		return errors.Errorf("failed to run %s: %w", d.command(), err)
	}
	if code > 1 {
		return errors.Errorf("%s %s %s exited with status %d: %s", d.command(), left, right, code, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Equal runs "diff -q".
func (d *ExecDiff) Equal(ctx context.Context, left, right string) (bool, error) {
	cmd := exec.CommandContext(ctx, d.command(), "-q", left, right)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	code, err := exitCode(cmd.Run())
	if err != nil {
		return false, errors.Errorf("failed to run %s: %w", d.command(), err)
	}
	switch code {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, errors.Errorf("%s -q %s %s exited with status %d: %s", d.command(), left, right, code, strings.TrimSpace(stderr.String()))
	}
}

// exitCode splits the result of Cmd.Run into an exit status and a failure
// to run at all.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Builtin computes unified diffs without an external tool.
type Builtin struct {
	// Context is the number of context lines. Zero means 3.
	Context int
}

// NewBuiltin returns a Builtin with the default context.
func NewBuiltin() *Builtin {
	return &Builtin{Context: 3}
}

const noNewline = "\\ No newline at end of file\n"

// Diff writes the unified diff between left and right.
func (d *Builtin) Diff(_ context.Context, left, right, leftLabel, rightLabel string, w io.Writer) error {
	a, err := readOrEmpty(left)
	if err != nil {
		return err
	}
	b, err := readOrEmpty(right)
	if err != nil {
		return err
	}
	if bytes.Equal(a, b) {
		return nil
	}

	lines := d.Context
	if lines <= 0 {
		lines = 3
	}
	ud := difflib.UnifiedDiff{
		A:        splitLines(a),
		B:        splitLines(b),
		FromFile: leftLabel,
		ToFile:   rightLabel,
		Context:  lines,
	}
	if err := difflib.WriteUnifiedDiff(w, ud); err != nil {
		return errors.Errorf("failed to write diff: %w", err)
	}
	return nil
}

// Equal compares both files byte by byte.
func (d *Builtin) Equal(_ context.Context, left, right string) (bool, error) {
	a, err := os.ReadFile(left)
	if err != nil {
		return false, errors.Errorf("failed to read %s: %w", left, err)
	}
	b, err := os.ReadFile(right)
	if err != nil {
		return false, errors.Errorf("failed to read %s: %w", right, err)
	}
	return bytes.Equal(a, b), nil
}

func readOrEmpty(path string) ([]byte, error) {
	if path == DevNull {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// splitLines keeps line terminators so that output lines can be written
// as-is. A last line without a newline carries the marker diff prints for
// it, which also keeps it from matching the same text with a newline.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(data), "\n")
	if last := lines[len(lines)-1]; last == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] = last + "\n" + noNewline
	}
	return lines
}
