package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ResolveEntrypoint resolves entrypoint to a real path and verifies it lies
// within projectRoot after symlinks are followed on both sides. It returns the
// resolved path and its slash-separated path relative to the project root.
func ResolveEntrypoint(projectRoot, entrypoint string) (string, string, error) {
	if projectRoot == "" {
		return "", "", ErrProjectRootRequired
	}

	root, err := realPath(projectRoot)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve project root: %w", err)
	}

	abs, err := filepath.Abs(entrypoint)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve entrypoint: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", "", fmt.Errorf("%w: %s", ErrEntrypointNotFound, entrypoint)
		}
		return "", "", fmt.Errorf("failed to stat entrypoint: %w", err)
	}
	if info.IsDir() {
		return "", "", fmt.Errorf("%w: %s is a directory", ErrEntrypointNotFound, entrypoint)
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve entrypoint: %w", err)
	}

	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", "", fmt.Errorf("%w: %s resolves to %s", ErrOutsideProjectRoot, entrypoint, resolved)
	}

	return resolved, filepath.ToSlash(rel), nil
}

func realPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}
