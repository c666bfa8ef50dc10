// Package security confines file paths handed to the MCP tools to a base
// directory.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideBaseDir is returned for paths that resolve outside the base
// directory
var ErrOutsideBaseDir = errors.New("path is outside the allowed directory")

// PathValidator resolves tool paths against a base directory. An empty
// base directory allows any path.
type PathValidator struct {
	baseDir string
}

// NewPathValidator creates a validator rooted at baseDir
func NewPathValidator(baseDir string) (*PathValidator, error) {
	if baseDir == "" {
		return &PathValidator{}, nil
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("cannot access base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory is not a directory: %s", baseDir)
	}

	return &PathValidator{baseDir: abs}, nil
}

// BaseDir returns the resolved base directory, or "" when unrestricted
func (v *PathValidator) BaseDir() string {
	return v.baseDir
}

// Resolve returns the absolute form of path. Relative paths are taken
// relative to the base directory. Symlinks in the existing part of the
// path are followed before the containment check, so a link pointing out
// of the base directory is rejected.
func (v *PathValidator) Resolve(path string) (string, error) {
	path = strings.ReplaceAll(path, "\x00", "")
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}

	if v.baseDir == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve path: %w", err)
		}
		return abs, nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(v.baseDir, path)
	}
	clean := filepath.Clean(path)

	resolved, err := resolveExisting(clean)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !within(v.baseDir, resolved) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBaseDir, path)
	}
	return clean, nil
}

// resolveExisting evaluates symlinks in the longest existing prefix of
// path and re-appends the part that does not exist yet
func resolveExisting(path string) (string, error) {
	var missing []string
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved, nil
		}
		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}

func within(dir, path string) bool {
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}
