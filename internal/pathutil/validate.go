// Package pathutil confines backup files to known directories.
package pathutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideAllowed is wrapped by ValidatePath when a path escapes every
// allowed directory.
var ErrOutsideAllowed = errors.New("outside allowed directories")

// RedactPath shortens a path to .../<parent>/<base> for error messages,
// e.g. "/home/ada/.competence/backups/x.json.gz" becomes ".../backups/x.json.gz".
func RedactPath(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	base := filepath.Base(cleaned)
	parent := filepath.Base(filepath.Dir(cleaned))
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}

// ValidatePath returns nil when path, after cleaning and symlink
// resolution of its deepest existing ancestor, lies inside one of
// allowedDirs. The file itself need not exist.
func ValidatePath(path string, allowedDirs []string) error {
	switch {
	case path == "":
		return fmt.Errorf("invalid path: empty")
	case strings.ContainsRune(path, 0):
		return fmt.Errorf("invalid path: contains null byte")
	case len(allowedDirs) == 0:
		return fmt.Errorf("invalid path: no allowed directories")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	dir, err := resolve(filepath.Dir(abs))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	target := filepath.Join(dir, filepath.Base(abs))

	for _, allowed := range allowedDirs {
		if allowed == "" {
			continue
		}
		a, err := filepath.Abs(allowed)
		if err != nil {
			continue
		}
		a, err = resolve(a)
		if err != nil {
			continue
		}
		if within(target, a) {
			return nil
		}
	}
	return fmt.Errorf("invalid path %q: %w", RedactPath(abs), ErrOutsideAllowed)
}

// resolve evaluates symlinks on the deepest existing ancestor of p and
// re-attaches the missing tail.
func resolve(p string) (string, error) {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r, nil
	}
	parent := filepath.Dir(p)
	if parent == p {
		return "", fmt.Errorf("cannot resolve %s", RedactPath(p))
	}
	r, err := resolve(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(r, filepath.Base(p)), nil
}

// within reports whether p is base or below it. "/tmp/a" is not within
// "/tmp/ab".
func within(p, base string) bool {
	return p == base || strings.HasPrefix(p, base+string(os.PathSeparator))
}

// BackupDirs lists where export writes and import reads: the backup
// directory and the project root. Empty entries are skipped.
func BackupDirs(backupDir, projectRoot string) []string {
	var dirs []string
	for _, d := range []string{backupDir, projectRoot} {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	return dirs
}
