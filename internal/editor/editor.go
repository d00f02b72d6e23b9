// Package editor opens files in the user's editor.
package editor

import (
	"context"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DefaultCommand is used when neither the configuration nor $EDITOR name
// an editor.
const DefaultCommand = "vi"

// Editor lets the user change files interactively.
type Editor interface {
	Edit(ctx context.Context, files ...string) error
}

// ExecEditor runs an editor command attached to the terminal.
type ExecEditor struct {
	// Command is the editor command line, for example "code --wait".
	Command string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// New returns an editor for command, falling back to $EDITOR and then
// DefaultCommand.
func New(command string) *ExecEditor {
	if command == "" {
		command = os.Getenv("EDITOR")
	}
	if command == "" {
		command = DefaultCommand
	}
	return &ExecEditor{Command: command, Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
}

// Edit opens files and waits for the editor to exit.
func (e *ExecEditor) Edit(ctx context.Context, files ...string) error {
	fields := strings.Fields(e.Command)
	if len(fields) == 0 {
		return errors.New("no editor configured")
	}
	args := append(fields[1:], files...)

	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Stdin = e.Stdin
	cmd.Stdout = e.Stdout
	cmd.Stderr = e.Stderr

	zerolog.Ctx(ctx).Debug().Str("editor", fields[0]).Strs("args", args).Msg("starting editor")

	if err := cmd.Run(); err != nil {
		return errors.Errorf("editor %s failed: %w", fields[0], err)
	}
	return nil
}
