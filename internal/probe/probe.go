// Package probe checks whether a tool is reachable by running it with a
// version flag under a short timeout.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// DefaultTimeout bounds a single version query.
const DefaultTimeout = 10 * time.Second

// ErrNoVersion means the version query ran successfully but printed no
// version number.
var ErrNoVersion = errors.New("no version in output")

// Prober answers "is this tool usable?" for the resolver tiers.
type Prober interface {
	// Probe reports whether name (a bare executable name looked up in env's
	// PATH, or a path) runs its version query with exit status zero.
	Probe(ctx context.Context, env *toolenv.Environment, name string) bool

	// Version runs the version query and returns the first dotted version
	// number in its output. A tool that runs but prints no version yields an
	// error wrapping ErrNoVersion.
	Version(ctx context.Context, env *toolenv.Environment, name string) (string, error)
}

// Exec is the Prober that runs real processes.
type Exec struct {
	timeout time.Duration
	args    []string
}

var _ Prober = (*Exec)(nil)

// Option configures Exec.
type Option func(*Exec)

// WithTimeout sets the per-query timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Exec) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// New creates an Exec prober.
func New(opts ...Option) *Exec {
	p := &Exec{timeout: DefaultTimeout, args: []string{"--version"}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Exec) Probe(ctx context.Context, env *toolenv.Environment, name string) bool {
	_, err := p.run(ctx, env, name)
	return err == nil
}

func (p *Exec) Version(ctx context.Context, env *toolenv.Environment, name string) (string, error) {
	out, err := p.run(ctx, env, name)
	if err != nil {
		return "", err
	}
	v := ParseVersion(out)
	if v == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNoVersion)
	}
	return v, nil
}

func (p *Exec) run(ctx context.Context, env *toolenv.Environment, name string) (string, error) {
	path, err := env.LookPath(name)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, p.args...)
	cmd.Env = env.Environ()
	cmd.WaitDelay = time.Second

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%s: version query timed out after %s", name, p.timeout)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return out.String(), nil
}
