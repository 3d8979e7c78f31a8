// Package toolenv holds the environment that resolved tools and the build
// pipeline run under. It starts as a snapshot of the process environment and
// collects every mutation the resolver makes (SDK variables, PATH prepends),
// so child processes see them without touching the process-wide state.
package toolenv

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// ErrNotFound is returned by LookPath when no executable matches.
var ErrNotFound = errors.New("executable file not found in PATH")

// Environment is an ordered-by-key set of environment variables.
type Environment struct {
	vars    map[string]string
	windows bool
}

// FromOS snapshots the current process environment.
func FromOS() *Environment {
	return New(os.Environ())
}

// New builds an Environment from KEY=VALUE pairs. Malformed entries are skipped.
func New(kv []string) *Environment {
	e := &Environment{
		vars:    make(map[string]string, len(kv)),
		windows: runtime.GOOS == "windows",
	}
	for _, pair := range kv {
		if k, v, ok := strings.Cut(pair, "="); ok && k != "" {
			e.vars[k] = v
		}
	}
	return e
}

func (e *Environment) key(k string) string {
	if !e.windows {
		return k
	}
	for existing := range e.vars {
		if strings.EqualFold(existing, k) {
			return existing
		}
	}
	return k
}

// Lookup reports the value of key and whether it is set.
func (e *Environment) Lookup(key string) (string, bool) {
	v, ok := e.vars[e.key(key)]
	return v, ok
}

// Get returns the value of key, or "" when unset.
func (e *Environment) Get(key string) string {
	v, _ := e.Lookup(key)
	return v
}

// Set assigns key.
func (e *Environment) Set(key, value string) {
	e.vars[e.key(key)] = value
}

// PathList returns the PATH entries in search order.
func (e *Environment) PathList() []string {
	return filepath.SplitList(e.Get("PATH"))
}

// PrependPath puts dir at the front of PATH. It returns false and leaves PATH
// untouched when dir is already listed.
func (e *Environment) PrependPath(dir string) bool {
	for _, p := range e.PathList() {
		if filepath.Clean(p) == filepath.Clean(dir) {
			return false
		}
	}
	cur := e.Get("PATH")
	if cur == "" {
		e.Set("PATH", dir)
	} else {
		e.Set("PATH", dir+string(os.PathListSeparator)+cur)
	}
	return true
}

// Environ returns the variables as sorted KEY=VALUE pairs, ready for exec.Cmd.Env.
func (e *Environment) Environ() []string {
	keys := make([]string, 0, len(e.vars))
	for k := range e.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+e.vars[k])
	}
	return out
}

// LookPath searches the environment's PATH for an executable named file.
// Names containing a path separator are checked directly.
func (e *Environment) LookPath(file string) (string, error) {
	if strings.ContainsAny(file, `/\`) {
		for _, cand := range e.candidates(file) {
			if isExecutable(cand) {
				return filepath.Abs(cand)
			}
		}
		return "", &os.PathError{Op: "lookpath", Path: file, Err: ErrNotFound}
	}
	for _, dir := range e.PathList() {
		if dir == "" {
			dir = "."
		}
		for _, cand := range e.candidates(filepath.Join(dir, file)) {
			if isExecutable(cand) {
				return filepath.Abs(cand)
			}
		}
	}
	return "", &os.PathError{Op: "lookpath", Path: file, Err: ErrNotFound}
}

func (e *Environment) candidates(path string) []string {
	if !e.windows || filepath.Ext(path) != "" {
		return []string{path}
	}
	exts := e.Get("PATHEXT")
	if exts == "" {
		exts = ".com;.exe;.bat;.cmd"
	}
	var out []string
	for _, ext := range strings.Split(strings.ToLower(exts), ";") {
		if ext != "" {
			out = append(out, path+ext)
		}
	}
	return out
}

func isExecutable(path string) bool {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return fi.Mode().Perm()&0o111 != 0
}
