// Package pathutil checks file paths supplied by remote callers before
// epinet reads or writes them.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nvandessel/epinet/internal/simerr"
)

// RedactPath shortens path to .../<parent>/<basename> for error text sent
// to clients. "/home/ana/sim/edges.txt" becomes ".../sim/edges.txt".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return filepath.Base(cleaned)
	}
	return ".../" + parent + "/" + filepath.Base(cleaned)
}

// ValidatePath reports a configuration error for param unless path lies
// inside one of allowedDirs once cleaned and with symlinks resolved. The
// file need not exist yet.
func ValidatePath(param, path string, allowedDirs []string) error {
	if path == "" {
		return simerr.Config(param, "path is empty")
	}
	if len(allowedDirs) == 0 {
		return simerr.Config(param, "no allowed directories configured")
	}
	if strings.ContainsRune(path, '\x00') {
		return simerr.Config(param, "path contains a null byte")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return simerr.Config(param, "cannot resolve %s: %v", RedactPath(path), err)
	}
	dir, err := resolveExisting(filepath.Dir(abs))
	if err != nil {
		return simerr.Config(param, "cannot resolve %s", RedactPath(abs))
	}
	resolved := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		base, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		if base, err = resolveExisting(base); err != nil {
			continue
		}
		if within(resolved, base) {
			return nil
		}
	}
	return simerr.Config(param, "%s is outside the allowed directories", RedactPath(abs))
}

// resolveExisting evaluates symlinks on the deepest existing ancestor of dir
// and re-appends the missing tail.
func resolveExisting(dir string) (string, error) {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return resolved, nil
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return "", fmt.Errorf("no existing ancestor of %s", RedactPath(dir))
	}
	head, err := resolveExisting(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(head, filepath.Base(dir)), nil
}

// within reports whether path is base or lies below it.
func within(path, base string) bool {
	if path == base {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(base, string(os.PathSeparator))+string(os.PathSeparator))
}

// AllowedDirs lists the directories remote callers may name: the working
// directory and the directory of every non-empty extra path.
func AllowedDirs(extra ...string) ([]string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	dirs := []string{wd}
	for _, p := range extra {
		if p != "" {
			dirs = append(dirs, filepath.Dir(p))
		}
	}
	return dirs, nil
}
