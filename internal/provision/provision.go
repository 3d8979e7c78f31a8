// Package provision obtains a tool that could not be found locally: through
// the platform package manager where one exists, otherwise by downloading and
// unpacking the tool's release archive into the work directory.
package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// ErrNotAvailable means the platform has no provisioning route for a tool.
var ErrNotAvailable = errors.New("no provisioning route for this platform")

// Package describes how to obtain one tool.
type Package struct {
	// Name is the tool's display name, e.g. "ninja".
	Name string
	// Executable is the bare name verified after a package-manager install.
	Executable string
	// Packages maps a package manager name to the package providing the tool.
	Packages map[string]string
	// Archives maps "goos/goarch" or "goos" to the release archive.
	Archives map[string]Archive
}

// Archive is a downloadable release of a tool.
type Archive struct {
	URL string
	// Exe is the slash-separated path of the executable inside the
	// extracted archive.
	Exe string
}

// ArchiveFor returns the archive for goos/goarch, falling back to goos alone.
func (p *Package) ArchiveFor(goos, goarch string) (Archive, bool) {
	if a, ok := p.Archives[goos+"/"+goarch]; ok {
		return a, true
	}
	a, ok := p.Archives[goos]
	return a, ok
}

// Result describes a successfully provisioned tool.
type Result struct {
	Path   string // absolute path of the verified executable
	Source string // package manager name or archive URL
	Digest string // BLAKE3 of the downloaded archive, hex; empty for package managers
}

// Provisioner obtains a tool for one platform. Implementations prepend the
// tool's directory to env's PATH so later child processes find it by name.
type Provisioner interface {
	Provision(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error)
}

// DownloadError reports a failed fetch.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string { return fmt.Sprintf("download %s: %v", e.URL, e.Err) }
func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractionError reports a failed or incomplete archive extraction.
type ExtractionError struct {
	Archive string
	Err     error
}

func (e *ExtractionError) Error() string { return fmt.Sprintf("extract %s: %v", e.Archive, e.Err) }
func (e *ExtractionError) Unwrap() error { return e.Err }

// VerificationError reports a provisioned tool that does not answer its
// version query.
type VerificationError struct {
	Tool string
	Path string
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verify %s at %s: %v", e.Tool, e.Path, e.Err)
	}
	return fmt.Sprintf("verify %s at %s: tool does not respond", e.Tool, e.Path)
}
func (e *VerificationError) Unwrap() error { return e.Err }

type config struct {
	workDir  string
	goarch   string
	prober   probe.Prober
	fetcher  *Fetcher
	runner   Runner
	managers []Manager
}

// Option configures a Provisioner built by ForPlatform.
type Option func(*config)

// WithWorkDir sets where archives are downloaded and extracted.
func WithWorkDir(dir string) Option {
	return func(c *config) { c.workDir = dir }
}

// WithProber sets the prober used for verification.
func WithProber(p probe.Prober) Option {
	return func(c *config) { c.prober = p }
}

// WithFetcher sets the HTTP fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(c *config) { c.fetcher = f }
}

// WithRunner sets how package-manager commands are executed.
func WithRunner(r Runner) Option {
	return func(c *config) { c.runner = r }
}

// WithManagers overrides the platform's package manager list.
func WithManagers(m ...Manager) Option {
	return func(c *config) { c.managers = m }
}

// WithArch overrides runtime.GOARCH for archive selection.
func WithArch(goarch string) Option {
	return func(c *config) { c.goarch = goarch }
}

// ForPlatform returns the Provisioner for goos. It is meant to be called once
// at startup; unknown platforms get a Provisioner that always returns
// ErrNotAvailable.
func ForPlatform(goos string, opts ...Option) Provisioner {
	c := &config{
		workDir: ".",
		goarch:  runtime.GOARCH,
		prober:  probe.New(),
		runner:  &ExecRunner{Stdout: io.Discard, Stderr: io.Discard},
	}
	switch goos {
	case "linux":
		c.managers = LinuxManagers
	case "darwin":
		c.managers = DarwinManagers
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewFetcher()
	}
	b := base{config: *c, goos: goos}

	switch goos {
	case "windows":
		return &windowsProvisioner{b}
	case "linux":
		return &linuxProvisioner{b}
	case "darwin":
		return &darwinProvisioner{b}
	}
	return unsupported{goos}
}

type base struct {
	config
	goos string
}

// fromManagers tries each package manager fully (update, then install, then
// verify) before moving on to the next one.
func (b *base) fromManagers(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, m := range b.managers {
		name, ok := pkg.Packages[m.Name]
		if !ok {
			continue
		}
		if _, err := env.LookPath(m.Name); err != nil {
			logger.Debug("package manager not available", "manager", m.Name)
			continue
		}
		logger.Info("trying package manager", "manager", m.Name, "package", name)
		if err := m.install(ctx, b.runner, env, name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			continue
		}
		path, err := env.LookPath(pkg.Executable)
		if err != nil || !b.prober.Probe(ctx, env, pkg.Executable) {
			errs = append(errs, &VerificationError{Tool: pkg.Name, Path: pkg.Executable, Err: err})
			continue
		}
		logger.Info("installed via package manager", "tool", pkg.Name, "manager", m.Name, "path", path)
		return &Result{Path: path, Source: m.Name}, nil
	}
	if len(errs) == 0 {
		return nil, ErrNotAvailable
	}
	return nil, errors.Join(errs...)
}

// fromArchive downloads the platform archive into the work directory,
// extracts it there, deletes the archive and verifies the executable.
func (b *base) fromArchive(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error) {
	logger := ctxlog.FromContext(ctx)
	a, ok := pkg.ArchiveFor(b.goos, b.goarch)
	if !ok {
		return nil, ErrNotAvailable
	}
	workDir, err := filepath.Abs(b.workDir)
	if err != nil {
		return nil, err
	}
	archivePath := filepath.Join(workDir, archiveName(a.URL))

	logger.Info("downloading", "tool", pkg.Name, "url", a.URL)
	digest, err := b.fetcher.Fetch(ctx, a.URL, archivePath)
	if err != nil {
		return nil, &DownloadError{URL: a.URL, Err: err}
	}

	logger.Info("extracting", "archive", archivePath)
	err = Extract(archivePath, workDir)
	os.Remove(archivePath)
	if err != nil {
		return nil, &ExtractionError{Archive: archivePath, Err: err}
	}

	exe := filepath.Join(workDir, filepath.FromSlash(a.Exe))
	if fi, err := os.Stat(exe); err != nil || fi.IsDir() {
		return nil, &ExtractionError{Archive: archivePath, Err: fmt.Errorf("%s missing after extraction", a.Exe)}
	}
	if err := MakeExecutable(exe); err != nil {
		return nil, &VerificationError{Tool: pkg.Name, Path: exe, Err: err}
	}
	env.PrependPath(filepath.Dir(exe))

	if !b.prober.Probe(ctx, env, exe) {
		return nil, &VerificationError{Tool: pkg.Name, Path: exe}
	}
	logger.Info("installed from archive", "tool", pkg.Name, "path", exe)
	return &Result{Path: exe, Source: a.URL, Digest: digest}, nil
}

// windowsProvisioner has no package manager route; it downloads the .zip
// release directly.
type windowsProvisioner struct{ base }

func (p *windowsProvisioner) Provision(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error) {
	return p.fromArchive(ctx, pkg, env)
}

// linuxProvisioner tries the distribution package managers before the archive.
type linuxProvisioner struct{ base }

func (p *linuxProvisioner) Provision(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error) {
	res, err := p.fromManagers(ctx, pkg, env)
	if err == nil {
		return res, nil
	}
	ctxlog.FromContext(ctx).Info("package managers unavailable or failed, trying direct download", "tool", pkg.Name, "error", err)
	return p.fromArchive(ctx, pkg, env)
}

// darwinProvisioner tries Homebrew before the archive.
type darwinProvisioner struct{ base }

func (p *darwinProvisioner) Provision(ctx context.Context, pkg *Package, env *toolenv.Environment) (*Result, error) {
	res, err := p.fromManagers(ctx, pkg, env)
	if err == nil {
		return res, nil
	}
	ctxlog.FromContext(ctx).Info("Homebrew not found or failed, trying direct download", "tool", pkg.Name, "error", err)
	return p.fromArchive(ctx, pkg, env)
}

type unsupported struct{ goos string }

func (u unsupported) Provision(context.Context, *Package, *toolenv.Environment) (*Result, error) {
	return nil, fmt.Errorf("%s: %w", u.goos, ErrNotAvailable)
}
