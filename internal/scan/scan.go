// Package scan looks for pre-installed tools in the vendor binaries tree
// that ships next to the engine: <glist>/zbin/glistzbin-<platform>/...
package scan

import (
	"os"
	"path/filepath"
	"sort"
)

// DefaultPattern matches the platform-tagged bundle directories.
const DefaultPattern = "glistzbin-*"

// Scanner searches one vendor binaries root.
type Scanner struct {
	Root    string
	Pattern string
}

// New creates a Scanner for root using DefaultPattern.
func New(root string) *Scanner {
	return &Scanner{Root: root, Pattern: DefaultPattern}
}

// Dirs returns the bundle directories under Root in lexical order.
func (s *Scanner) Dirs() []string {
	pattern := s.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := filepath.Glob(filepath.Join(s.Root, pattern))
	if err != nil {
		return nil
	}
	sort.Strings(matches)
	dirs := matches[:0]
	for _, m := range matches {
		if fi, err := os.Stat(m); err == nil && fi.IsDir() {
			dirs = append(dirs, m)
		}
	}
	return dirs
}

// Scan returns the first existing candidate: bundle directories are tried in
// order, and within each the relative paths in rel are tried in order. It
// does not pick the newest or best version and runs nothing.
func (s *Scanner) Scan(rel []string) (string, bool) {
	for _, dir := range s.Dirs() {
		for _, r := range rel {
			cand := filepath.Join(dir, filepath.FromSlash(r))
			if usable(cand) {
				return cand, true
			}
		}
	}
	return "", false
}
