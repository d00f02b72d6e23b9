package series

import (
	"io"
	"strings"

	"github.com/spf13/pflag"
	"gitlab.com/tozd/go/errors"

	"github.com/bjoernricks/python-quilt/internal/patch"
)

// Line is one line of a series file. A line is blank, a full-line comment,
// or a patch entry with optional options and a trailing comment.
type Line struct {
	text    string
	comment string
	patch   *patch.Patch
}

// NewLine returns the line for a patch created by pquilt. Options that
// differ from the defaults are written after the name.
func NewLine(p patch.Patch) *Line {
	return &Line{text: p.Name + p.Options(), patch: &p}
}

// ParseLine parses one line of a series file. Problems with the options of
// a patch entry are returned as an error alongside a usable line: the patch
// keeps the defaults for whatever could not be parsed.
func ParseLine(text string) (*Line, error) {
	text = strings.TrimRight(text, "\r\n")
	line := &Line{text: text}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return line, nil
	}
	if strings.HasPrefix(trimmed, "#") {
		line.comment = text
		return line, nil
	}

	entry := text
	if i := strings.Index(text, "#"); i >= 0 {
		entry, line.comment = text[:i], text[i+1:]
	}

	fields := strings.Fields(entry)
	if len(fields) == 0 {
		return line, nil
	}

	p := patch.New(fields[0])
	line.patch = &p
	if len(fields) == 1 {
		return line, nil
	}

	strip, reverse, err := parseOptions(fields[1:])
	if err != nil {
		return line, errors.Errorf("patch %s: %w", p.Name, err)
	}
	p.Strip = strip
	p.Reverse = reverse
	*line.patch = p
	return line, nil
}

// parseOptions parses the patch options of a series entry. The accepted
// set mirrors the patch tool's own spelling.
func parseOptions(args []string) (int, bool, error) {
	var (
		strip   int
		reverse bool
	)
	flags := pflag.NewFlagSet("series", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.IntVarP(&strip, "strip", "p", patch.DefaultStrip, "strip count")
	flags.BoolVarP(&reverse, "reverse", "R", false, "apply reversed")

	if err := flags.Parse(args); err != nil {
		return patch.DefaultStrip, false, errors.Errorf("invalid options %q: %w", strings.Join(args, " "), err)
	}
	if flags.NArg() > 0 {
		return strip, reverse, errors.Errorf("unexpected arguments %q", strings.Join(flags.Args(), " "))
	}
	if strip < 0 {
		return patch.DefaultStrip, reverse, errors.Errorf("invalid strip count %d", strip)
	}
	return strip, reverse, nil
}

// Patch returns the patch of this line, or nil for blank and comment lines.
func (l *Line) Patch() *patch.Patch {
	if l.patch == nil {
		return nil
	}
	p := *l.patch
	return &p
}

// Comment returns the comment of the line without the leading '#' for
// patch entries, or the whole line for full-line comments.
func (l *Line) Comment() string {
	return l.comment
}

// String returns the line as it is written to the series file.
func (l *Line) String() string {
	return l.text
}

// withPatch returns a line for p that keeps the comment of l.
func (l *Line) withPatch(p patch.Patch) *Line {
	nl := NewLine(p)
	if l.comment != "" {
		nl.comment = l.comment
		nl.text += " #" + l.comment
	}
	return nl
}
