// Package pipeline turns a project into a browser build: it prepares the
// build directory, stages assets and drives the configure and build steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/project"
	"github.com/glistengine/gipwebgl/internal/toolchain"
	"github.com/glistengine/gipwebgl/pkgs/buildsys/cmake"
)

// State is a pipeline step.
type State int

const (
	Pending State = iota
	Validated
	AssetsStaged
	Configured
	Built
	Succeeded
	Failed
)

var stateNames = [...]string{"pending", "validated", "assets staged", "configured", "built", "succeeded", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// DefaultDefines are the project definitions GlistEngine needs under
// Emscripten. Configured definitions override them key by key.
var DefaultDefines = map[string]string{
	"ASSIMP_BUILD_ZLIB":         "ON",
	"ASSIMP_WARNINGS_AS_ERRORS": "OFF",
	"FT_DISABLE_HARFBUZZ":       "ON",
	"HAVE_OFF64_T":              "OFF",
	"OFF64_T":                   "OFF",
}

const (
	assetsDir     = "assets"
	releaseLinker = "-s EXPORTED_FUNCTIONS=['_main','_malloc','_free'] -s EXPORTED_RUNTIME_METHODS=['ccall','cwrap']"
)

// Context is everything one build needs.
type Context struct {
	Project   project.Project
	BuildDir  string
	Toolchain *toolchain.Toolchain
	Defines   map[string]string
}

// NewContext places the build in <buildRoot>/<project>. defines are merged
// over DefaultDefines.
func NewContext(buildRoot string, p project.Project, tc *toolchain.Toolchain, defines map[string]string) *Context {
	merged := maps.Clone(DefaultDefines)
	maps.Copy(merged, defines)
	return &Context{
		Project:   p,
		BuildDir:  filepath.Join(buildRoot, p.Name),
		Toolchain: tc,
		Defines:   merged,
	}
}

// Pipeline runs one build. It is not reusable.
type Pipeline struct {
	bc     *Context
	state  State
	staged bool
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOutput sends configure and build output to stdout and stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) { p.stdout, p.stderr = stdout, stderr }
}

// New returns a Pipeline for bc.
func New(bc *Context, opts ...Option) *Pipeline {
	p := &Pipeline{bc: bc, stdout: os.Stdout, stderr: os.Stderr}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the last step reached.
func (p *Pipeline) State() State { return p.state }

// Run executes every step in order. A failed configure step returns
// *ConfigurationError and a failed build step *BuildError.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.state != Pending {
		return fmt.Errorf("pipeline already ran: %s", p.state)
	}
	err := p.run(ctx)
	if err != nil {
		p.state = Failed
		return err
	}
	p.state = Succeeded
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx).With("project", p.bc.Project.Name)
	bc := p.bc

	if err := os.MkdirAll(bc.BuildDir, 0o755); err != nil {
		return fmt.Errorf("create build dir: %w", err)
	}
	if err := ClearGeneratorCache(ctx, bc.BuildDir); err != nil {
		return err
	}
	p.state = Validated

	staged, err := StageAssets(bc.Project.Dir, bc.BuildDir)
	if err != nil {
		return err
	}
	p.staged = staged
	if staged {
		logger.Info("assets staged, packing with --preload-file")
	}
	p.state = AssetsStaged

	c := p.Command()
	logger.Info("configuring", "generator", bc.Toolchain.GeneratorName(), "args", strings.Join(c.ConfigureArgs(), " "))
	if err := c.Configure(ctx); err != nil {
		return &ConfigurationError{Project: bc.Project.Name, Code: exitCode(err), Err: err}
	}
	p.state = Configured

	logger.Info("building", "dir", bc.BuildDir)
	if err := c.Build(ctx); err != nil {
		return &BuildError{Project: bc.Project.Name, Code: exitCode(err), Err: err}
	}
	p.state = Built
	logger.Info("project built", "dir", bc.BuildDir)
	return nil
}

// Command returns the configured CMake wrapper for this build.
func (p *Pipeline) Command() *cmake.CMake {
	bc := p.bc
	tc := bc.Toolchain
	c := cmake.New(tc.Generator.Path, tc.Env).Output(p.stdout, p.stderr)
	c.Source(bc.Project.Dir)
	c.BuildDir(bc.BuildDir)

	keys := make([]string, 0, len(bc.Defines))
	for k := range bc.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := bc.Defines[k]; strings.ToUpper(v) {
		case "ON", "TRUE":
			c.DefineBool(k, true)
		case "OFF", "FALSE":
			c.DefineBool(k, false)
		default:
			c.Define(k, v)
		}
	}

	c.Generator(tc.GeneratorName()).
		BuildType("Release").
		Toolchain(tc.ToolchainFile).
		MakeProgram(tc.Builder.Path).
		DefineBool("CMAKE_CROSSCOMPILING", true).
		Define("CMAKE_SYSTEM_NAME", "Emscripten").
		Define("CMAKE_SYSTEM_PROCESSOR", "x86").
		Define("CMAKE_TRY_COMPILE_TARGET_TYPE", "STATIC_LIBRARY").
		Define("CMAKE_FIND_ROOT_PATH_MODE_PROGRAM", "NEVER").
		Define("CMAKE_FIND_ROOT_PATH_MODE_LIBRARY", "ONLY").
		Define("CMAKE_FIND_ROOT_PATH_MODE_INCLUDE", "ONLY").
		Define("CMAKE_EXECUTABLE_SUFFIX", ".html").
		Define("CMAKE_EXE_LINKER_FLAGS_RELEASE", releaseLinker)
	if p.staged {
		c.Define("CMAKE_EXE_LINKER_FLAGS", "--preload-file "+filepath.Join(bc.BuildDir, assetsDir)+"@/"+assetsDir)
	} else {
		delete(c.Defines, "CMAKE_EXE_LINKER_FLAGS")
	}
	return c
}

// ClearGeneratorCache deletes CMakeCache.txt and CMakeFiles/ from buildDir
// so a build never inherits another generator's cache.
func ClearGeneratorCache(ctx context.Context, buildDir string) error {
	logger := ctxlog.FromContext(ctx)
	cache := filepath.Join(buildDir, "CMakeCache.txt")
	if err := os.Remove(cache); err == nil {
		logger.Info("cleared CMake cache", "file", cache)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear CMake cache: %w", err)
	}
	files := filepath.Join(buildDir, "CMakeFiles")
	if _, err := os.Stat(files); err == nil {
		if err := os.RemoveAll(files); err != nil {
			return fmt.Errorf("clear CMakeFiles: %w", err)
		}
		logger.Info("cleared CMakeFiles directory", "dir", files)
	}
	return nil
}

// StageAssets replaces <buildDir>/assets with a copy of <projectDir>/assets.
// It reports whether the staged copy holds anything. When the project has
// no assets nothing is created.
func StageAssets(projectDir, buildDir string) (bool, error) {
	src := filepath.Join(projectDir, assetsDir)
	dst := filepath.Join(buildDir, assetsDir)
	if err := os.RemoveAll(dst); err != nil {
		return false, fmt.Errorf("remove staged assets: %w", err)
	}
	fi, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stage assets: %w", err)
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("stage assets: %s is not a directory", src)
	}
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return false, fmt.Errorf("stage assets: %w", err)
	}
	entries, err := os.ReadDir(dst)
	if err != nil {
		return false, fmt.Errorf("stage assets: %w", err)
	}
	return len(entries) > 0, nil
}
