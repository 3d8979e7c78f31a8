//go:build !windows

package provision

import "os"

// MakeExecutable sets rwxr-xr-x on path.
func MakeExecutable(path string) error {
	return os.Chmod(path, 0o755)
}
