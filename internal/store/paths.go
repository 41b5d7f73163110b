package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nvandessel/competence/internal/constants"
)

// GlobalPath returns the path to the global .competence directory.
// On Unix: ~/.competence
// On Windows: %USERPROFILE%\.competence
func GlobalPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DirName), nil
}

// LocalPath returns the path to the .competence directory for the given
// project root.
func LocalPath(projectRoot string) string {
	return filepath.Join(projectRoot, constants.DirName)
}

// EnsureLocalDir creates the .competence directory under projectRoot and
// its state subdirectory.
func EnsureLocalDir(projectRoot string) (string, error) {
	dir := LocalPath(projectRoot)
	if err := os.MkdirAll(filepath.Join(dir, constants.StateSubdir), 0700); err != nil {
		return "", fmt.Errorf("failed to create %s directory: %w", constants.DirName, err)
	}
	return dir, nil
}
