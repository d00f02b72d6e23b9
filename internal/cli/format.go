package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	// fatih/color disables these when stdout is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, msg string) {
	_, _ = successColor.Fprintln(w, msg)
}

// PrintWarning prints a warning message
func PrintWarning(w io.Writer, msg string) {
	_, _ = warningColor.Fprintln(w, msg)
}

// PrintInfo prints an informational message
func PrintInfo(w io.Writer, msg string) {
	_, _ = fmt.Fprintln(w, msg)
}

// PrintDim prints a message of secondary interest
func PrintDim(w io.Writer, msg string) {
	_, _ = dimColor.Fprintln(w, msg)
}

// PrintCount prints a count with proper formatting
func PrintCount(count int, singular, plural string) string {
	if count == 1 {
		return fmt.Sprintf("%d %s", count, singular)
	}
	return fmt.Sprintf("%d %s", count, plural)
}
