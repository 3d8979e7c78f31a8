package provision

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// Manager is an OS package manager: an optional metadata refresh followed by
// a non-interactive install.
type Manager struct {
	Name    string
	Update  []string // arguments to Name; nil skips the refresh
	Install []string // arguments to Name, the package name is appended
}

// LinuxManagers are tried in this order on Linux.
var LinuxManagers = []Manager{
	{Name: "apt-get", Update: []string{"update"}, Install: []string{"install", "-y"}},
	{Name: "yum", Update: []string{"makecache", "-y"}, Install: []string{"install", "-y"}},
	{Name: "dnf", Update: []string{"makecache", "-y"}, Install: []string{"install", "-y"}},
	{Name: "pacman", Update: []string{"-Sy"}, Install: []string{"-S", "--noconfirm"}},
	{Name: "zypper", Update: []string{"--non-interactive", "refresh"}, Install: []string{"--non-interactive", "install"}},
}

// DarwinManagers are tried in this order on macOS.
var DarwinManagers = []Manager{
	{Name: "brew", Install: []string{"install"}},
}

func (m Manager) install(ctx context.Context, r Runner, env *toolenv.Environment, pkg string) error {
	if m.Update != nil {
		if err := r.Run(ctx, env, m.Name, m.Update...); err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}
	args := append(append([]string(nil), m.Install...), pkg)
	if err := r.Run(ctx, env, m.Name, args...); err != nil {
		return fmt.Errorf("install %s: %w", pkg, err)
	}
	return nil
}

// Runner executes a command under env.
type Runner interface {
	Run(ctx context.Context, env *toolenv.Environment, name string, args ...string) error
}

// ExecRunner runs real processes. Name is looked up in env's PATH.
type ExecRunner struct {
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, env *toolenv.Environment, name string, args ...string) error {
	path, err := env.LookPath(name)
	if err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = r.Dir
	cmd.Env = env.Environ()
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr
	return cmd.Run()
}
