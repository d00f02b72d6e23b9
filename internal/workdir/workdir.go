// Package workdir locates the project a command operates on.
package workdir

import (
	"os"
	"path/filepath"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrOutsideRoot indicates a path that is not below the project root.
var ErrOutsideRoot = errors.Base("path is outside the project root")

// Discover finds the project root by walking up from cwd to the first
// directory that contains one of markers (the patches or metadata
// directory). When none is found, cwd itself is the root so that the first
// "new" or "import" starts a queue there. Absolute markers are ignored for
// the walk.
func Discover(cwd string, markers ...string) (string, error) {
	absPath, err := filepath.Abs(cwd)
	if err != nil {
		return "", errors.Errorf("failed to get absolute path: %w", err)
	}

	current := absPath
	for {
		for _, marker := range markers {
			if marker == "" || filepath.IsAbs(marker) {
				continue
			}
			if info, err := os.Stat(filepath.Join(current, marker)); err == nil && info.IsDir() {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			return absPath, nil
		}
		current = parent
	}
}

// RelPath computes the slash-separated path of target relative to root.
// A relative target is taken relative to base.
func RelPath(root, base, target string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Errorf("failed to get absolute root: %w", err)
	}

	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Errorf("failed to get absolute target: %w", err)
	}

	relPath, err := filepath.Rel(absRoot, absTarget)
	if err != nil {
		return "", errors.Errorf("failed to compute relative path: %w", err)
	}

	if relPath == "." || relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return "", errors.Errorf("%w: %s", ErrOutsideRoot, target)
	}

	return filepath.ToSlash(relPath), nil
}
