//go:build !unix

package scan

import "os"

func usable(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
