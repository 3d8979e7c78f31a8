package pipeline

import (
	"errors"
	"fmt"
	"os/exec"
)

// ConfigurationError reports a failed configure step. Code is the
// configure process's exit code, or 1 when it did not run.
type ConfigurationError struct {
	Project string
	Code    int
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configure %s: exit code %d: %v", e.Project, e.Code, e.Err)
}
func (e *ConfigurationError) Unwrap() error { return e.Err }

// BuildError reports a failed build step. Code is the build process's exit
// code, or 1 when it did not run.
type BuildError struct {
	Project string
	Code    int
	Err     error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build %s: exit code %d: %v", e.Project, e.Code, e.Err)
}
func (e *BuildError) Unwrap() error { return e.Err }

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		return exitErr.ExitCode()
	}
	return 1
}
