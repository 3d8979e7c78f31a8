package provision

import "os"

// MakeExecutable only checks that path exists; Windows has no execute bit.
func MakeExecutable(path string) error {
	_, err := os.Stat(path)
	return err
}
