package toolchain

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// ErrNoToolchainFile means Emscripten.cmake could not be located.
var ErrNoToolchainFile = errors.New("Emscripten.cmake toolchain file not found")

var platformFile = filepath.Join("cmake", "Modules", "Platform", "Emscripten.cmake")

// SDK is a local emsdk checkout.
type SDK struct {
	Dir string
}

// NewSDK returns the SDK rooted at <workDir>/emsdk.
func NewSDK(workDir string) *SDK {
	return &SDK{Dir: filepath.Join(workDir, "emsdk")}
}

// Exists reports whether the checkout directory is present.
func (s *SDK) Exists() bool {
	fi, err := os.Stat(s.Dir)
	return err == nil && fi.IsDir()
}

// EmscriptenDir is where emcc lives inside the checkout.
func (s *SDK) EmscriptenDir() string {
	return filepath.Join(s.Dir, "upstream", "emscripten")
}

// Compose points env at the SDK: EMSDK, EM_CONFIG and EMSCRIPTEN are set and
// the emscripten directory is prepended to PATH. It reports whether env
// changed; a second call on the same env returns false.
func (s *SDK) Compose(env *toolenv.Environment) bool {
	changed := false
	set := func(k, v string) {
		if cur, ok := env.Lookup(k); ok && cur == v {
			return
		}
		env.Set(k, v)
		changed = true
	}
	set("EMSDK", s.Dir)
	set("EM_CONFIG", filepath.Join(s.Dir, ".emscripten"))
	set("EMSCRIPTEN", s.EmscriptenDir())
	if env.PrependPath(s.EmscriptenDir()) {
		changed = true
	}
	return changed
}

// ToolchainFile locates Emscripten.cmake: in the checkout first, then next
// to the resolved emcc, then above the sysroot reported by emcc.
func (s *SDK) ToolchainFile(ctx context.Context, env *toolenv.Environment, emcc string) (string, error) {
	candidates := []string{filepath.Join(s.EmscriptenDir(), platformFile)}
	if emcc != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(emcc), platformFile))
	}
	for _, c := range candidates {
		if isFile(c) {
			return c, nil
		}
	}
	if emcc == "" {
		return "", ErrNoToolchainFile
	}
	sysroot, err := printSysroot(ctx, env, emcc)
	if err != nil {
		return "", errors.Join(ErrNoToolchainFile, err)
	}
	// sysroot is <emscripten>/cache/sysroot in current releases.
	dir := sysroot
	for range 3 {
		dir = filepath.Dir(dir)
		if c := filepath.Join(dir, platformFile); isFile(c) {
			return c, nil
		}
	}
	return "", ErrNoToolchainFile
}

func printSysroot(ctx context.Context, env *toolenv.Environment, emcc string) (string, error) {
	path, err := env.LookPath(emcc)
	if err != nil {
		return "", err
	}
	cmd := exec.CommandContext(ctx, path, "--print-sysroot")
	cmd.Env = env.Environ()
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
