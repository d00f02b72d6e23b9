// Package patch defines the identity of a patch in the queue and a few
// read-only helpers over unified diff content.
package patch

import (
	"bufio"
	"bytes"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
	"gitlab.com/tozd/go/errors"
)

// DefaultStrip is the number of leading path components removed from file
// names in a patch when no strip option is given.
const DefaultStrip = 1

// DevNull is the file name diff tools use for the missing side of a
// created or deleted file.
const DevNull = "/dev/null"

// Patch identifies a patch in the queue.
//
// Two patches are the same patch when their names match, regardless of strip
// or reverse. A series entry "fix.patch -p0" and a bare Patch{Name:
// "fix.patch"} therefore compare equal and look each other up. Use Equal or
// Key for comparisons and map keys instead of ==.
type Patch struct {
	// Name is the file name relative to the patches directory.
	Name string

	// Strip is the number of leading path components removed by the
	// patch tool (-pN).
	Strip int

	// Reverse applies the patch in reverse (-R).
	Reverse bool
}

// New returns a patch with default options.
func New(name string) Patch {
	return Patch{Name: name, Strip: DefaultStrip}
}

// Equal reports whether p and other name the same patch.
func (p Patch) Equal(other Patch) bool {
	return p.Name == other.Name
}

// Key returns the value patches are indexed by.
func (p Patch) Key() string {
	return p.Name
}

// String returns the patch name.
func (p Patch) String() string {
	return p.Name
}

// Options renders the non-default options as they appear in a series file,
// for example " -p0 -R". It returns "" for a patch with default options.
func (p Patch) Options() string {
	var b strings.Builder
	if p.Strip != DefaultStrip {
		fmt.Fprintf(&b, " -p%d", p.Strip)
	}
	if p.Reverse {
		b.WriteString(" -R")
	}
	return b.String()
}

// Names returns the names of ps in order.
func Names(ps []Patch) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name
	}
	return names
}

// Header returns the free-form description at the top of a patch: every
// line before the first file header. A bare "---" line, as written by git
// format-patch before the diffstat, belongs to the header.
func Header(content []byte) []byte {
	var out bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "Index:") || strings.HasPrefix(line, "diff ") {
			break
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	return out.Bytes()
}

// TouchedFiles returns the sorted working-tree paths a unified diff creates,
// modifies or deletes, after removing strip leading components. Names that
// have fewer components than strip are dropped, as the patch tool would
// refuse them too.
func TouchedFiles(content []byte, strip int) ([]string, error) {
	fileDiffs, err := diff.NewMultiFileDiffReader(bytes.NewReader(content)).ReadAllFiles()
	if err != nil {
		return nil, errors.Errorf("failed to parse patch: %w", err)
	}

	seen := make(map[string]struct{})
	for _, fd := range fileDiffs {
		for _, name := range []string{fd.OrigName, fd.NewName} {
			stripped, ok := StripPath(name, strip)
			if !ok {
				continue
			}
			seen[stripped] = struct{}{}
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// StripPath removes strip leading components from a file name found in a
// diff header. It reports false for /dev/null, empty names and names that
// would escape the working tree.
func StripPath(name string, strip int) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" || name == DevNull {
		return "", false
	}
	if strip < 0 {
		strip = 0
	}

	// pN counts slashes, collapsing repeated ones.
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '/' })
	if strings.HasPrefix(name, "/") {
		// An absolute name is only usable once its leading slash is stripped.
		if strip == 0 {
			return "", false
		}
		strip--
	}
	if strip >= len(parts) {
		return "", false
	}
	rel := path.Clean(strings.Join(parts[strip:], "/"))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel, true
}
