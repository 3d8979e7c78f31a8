package cmake

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sort"

	"github.com/glistengine/gipwebgl/internal/toolenv"
	"github.com/glistengine/gipwebgl/pkgs/buildsys"
)

type defineValue struct {
	value    string
	typeName string
}

// CMake wraps the configure and build steps with chainable configuration.
// Commands run with the supplied environment rather than the process one.
type CMake struct {
	bin         string
	env         *toolenv.Environment
	SourceDir   string
	buildDir    string
	generator   string
	buildType   string
	toolchain   string
	makeProgram string
	Defines     map[string]defineValue
	stdout      io.Writer
	stderr      io.Writer
}

var _ buildsys.BuildSystem = (*CMake)(nil)

// New creates a CMake helper running bin under env. A nil env uses the
// process environment.
func New(bin string, env *toolenv.Environment) *CMake {
	if bin == "" {
		bin = "cmake"
	}
	if env == nil {
		env = toolenv.FromOS()
	}
	return &CMake{
		bin:     bin,
		env:     env,
		Defines: map[string]defineValue{},
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
}

func (c *CMake) Source(dir string) {
	c.SourceDir = dir
}

func (c *CMake) BuildDir(dir string) {
	c.buildDir = dir
}

// Output redirects the child processes' stdout and stderr.
func (c *CMake) Output(stdout, stderr io.Writer) *CMake {
	c.stdout, c.stderr = stdout, stderr
	return c
}

func (c *CMake) Generator(name string) *CMake {
	c.generator = name
	return c
}

func (c *CMake) BuildType(name string) *CMake {
	c.buildType = name
	return c
}

func (c *CMake) Toolchain(path string) *CMake {
	c.toolchain = path
	return c
}

// MakeProgram sets the native build driver the generator should invoke.
func (c *CMake) MakeProgram(path string) *CMake {
	c.makeProgram = path
	return c
}

func (c *CMake) Define(key, value string) *CMake {
	if c.Defines == nil {
		c.Defines = map[string]defineValue{}
	}
	c.Defines[key] = defineValue{value: value, typeName: "STRING"}
	return c
}

func (c *CMake) DefineBool(key string, value bool) *CMake {
	if c.Defines == nil {
		c.Defines = map[string]defineValue{}
	}
	if value {
		c.Defines[key] = defineValue{value: "ON", typeName: "BOOL"}
		return c
	}
	c.Defines[key] = defineValue{value: "OFF", typeName: "BOOL"}
	return c
}

// ConfigureArgs returns the arguments Configure passes to cmake.
func (c *CMake) ConfigureArgs(args ...string) []string {
	cmakeArgs := []string{"-S", c.SourceDir, "-B", c.OutputDir()}
	if c.generator != "" {
		cmakeArgs = append(cmakeArgs, "-G", c.generator)
	}
	if c.toolchain != "" {
		c.Define("CMAKE_TOOLCHAIN_FILE", c.toolchain)
	}
	if c.buildType != "" {
		c.Define("CMAKE_BUILD_TYPE", c.buildType)
	}
	if c.makeProgram != "" {
		c.Define("CMAKE_MAKE_PROGRAM", c.makeProgram)
	}
	cmakeArgs = append(cmakeArgs, c.definesArgs()...)
	return append(cmakeArgs, args...)
}

func (c *CMake) Configure(ctx context.Context, args ...string) error {
	if err := os.MkdirAll(c.OutputDir(), 0o755); err != nil {
		return err
	}
	return c.run(ctx, c.ConfigureArgs(args...))
}

func (c *CMake) Build(ctx context.Context, args ...string) error {
	cmdArgs := []string{"--build", c.OutputDir()}
	cmdArgs = append(cmdArgs, args...)
	return c.run(ctx, cmdArgs)
}

// OutputDir returns the build dir, "build" when unset.
func (c *CMake) OutputDir() string {
	if c.buildDir == "" {
		return "build"
	}
	return c.buildDir
}

func (c *CMake) definesArgs() []string {
	if len(c.Defines) == 0 {
		return nil
	}
	keys := make([]string, 0, len(c.Defines))
	for k := range c.Defines {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	args := make([]string, 0, len(keys))
	for _, k := range keys {
		def := c.Defines[k]
		if def.typeName != "" {
			args = append(args, "-D"+k+":"+def.typeName+"="+def.value)
			continue
		}
		args = append(args, "-D"+k+"="+def.value)
	}
	return args
}

func (c *CMake) run(ctx context.Context, args []string) error {
	bin, err := c.env.LookPath(c.bin)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = c.stdout
	cmd.Stderr = c.stderr
	cmd.Env = c.env.Environ()
	return cmd.Run()
}
