// Package pathutil normalizes directory paths the way the store
// compares them: absolute, "~" expanded, ".." resolved, and trailing
// separators dropped. Two paths that normalize to the same string are
// considered the same directory for rename propagation and for the
// context builder's "run in this directory" factor.
package pathutil

import (
	"os"
	"path/filepath"
	"strings"
)

// Normalize resolves path against home (for a leading "~") and cwd
// (for a relative path), then cleans the result.
func Normalize(path, home, cwd string) string {
	expanded := expandTilde(path, home)

	if !filepath.IsAbs(expanded) {
		expanded = filepath.Join(cwd, expanded)
	}

	cleaned := filepath.Clean(expanded)
	if cleaned != "/" {
		cleaned = strings.TrimSuffix(cleaned, string(filepath.Separator))
	}
	return cleaned
}

func expandTilde(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

// NormalizeEnv is Normalize using the real process environment for
// home and cwd, for callers outside of tests.
func NormalizeEnv(path string) (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return Normalize(path, home, cwd), nil
}

// HasDirPrefix reports whether dir equals prefix or is nested under it
// (prefix followed by a path separator). Both arguments must already
// be normalized.
func HasDirPrefix(dir, prefix string) bool {
	if dir == prefix {
		return true
	}
	return strings.HasPrefix(dir, prefix+string(filepath.Separator))
}

// Reparent rewrites dir's oldPrefix prefix to newPrefix. Both prefixes
// and dir must already be normalized; callers should check
// HasDirPrefix first.
func Reparent(dir, oldPrefix, newPrefix string) string {
	if dir == oldPrefix {
		return newPrefix
	}
	return newPrefix + dir[len(oldPrefix):]
}
