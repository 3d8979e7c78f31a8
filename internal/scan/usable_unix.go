//go:build unix

package scan

import (
	"os"

	"golang.org/x/sys/unix"
)

func usable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
