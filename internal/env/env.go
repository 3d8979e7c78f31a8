package env

import (
	"os"
	"path/filepath"
)

// WorkDirEnv overrides the work directory when set.
const WorkDirEnv = "GIPWEBGL_WORKDIR"

// WorkDir returns the absolute directory the builder runs in. Downloaded
// archives, the local emsdk checkout and provisioned tools all land here.
func WorkDir() (string, error) {
	if dir := os.Getenv(WorkDirEnv); dir != "" {
		return filepath.Abs(dir)
	}
	return os.Getwd()
}

// StateDir returns <workDir>/.gipwebgl, creating it with 0700 permissions if
// it doesn't exist.
func StateDir(workDir string) (string, error) {
	dir := filepath.Join(workDir, ".gipwebgl")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
