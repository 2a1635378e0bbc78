package net

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveStaticDir locates the static front-end directory. Absolute paths are
// used as given; relative ones are tried against the working directory and
// the executable's directory, each also one level up.
func ResolveStaticDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("static directory not configured")
	}
	if filepath.IsAbs(dir) {
		if isDir(dir) {
			return filepath.Clean(dir), nil
		}
		return "", fmt.Errorf("static directory %s not found", dir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("resolve static assets: %w", err)
	}
	if resolved, ok := resolveStaticDirFrom(cwd, dir); ok {
		return resolved, nil
	}
	exePath, err := os.Executable()
	if err == nil {
		if resolved, ok := resolveStaticDirFrom(filepath.Dir(exePath), dir); ok {
			return resolved, nil
		}
	}
	return "", fmt.Errorf("static directory %s not found", dir)
}

func resolveStaticDirFrom(base, dir string) (string, bool) {
	candidates := []string{
		filepath.Join(base, dir),
		filepath.Join(base, "..", dir),
	}
	for _, candidate := range candidates {
		if !isDir(candidate) {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, true
	}
	return "", false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
