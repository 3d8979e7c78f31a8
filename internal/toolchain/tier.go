package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/provision"
	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// ErrSkipped means a tier has nothing to try for the tool.
var ErrSkipped = errors.New("not applicable")

// Candidate is a verified tool path produced by a tier.
type Candidate struct {
	Path    string
	Version string
	// Spec is set when the tier resolved a different tool than requested.
	Spec *Spec
}

// Tier is one resolution strategy.
type Tier interface {
	Name() string
	Resolve(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, error)
}

// Checker verifies that a candidate answers its version query and meets the
// spec's version floor.
type Checker struct {
	Prober probe.Prober
}

// Verify returns the candidate's version, or an error when it does not
// respond or is too old. The version query runs once per candidate; a tool
// that answers without a version number passes only when there is no floor.
func (c Checker) Verify(ctx context.Context, env *toolenv.Environment, spec *Spec, path string) (*Candidate, error) {
	v, err := c.Prober.Version(ctx, env, path)
	if err != nil && !errors.Is(err, probe.ErrNoVersion) {
		return nil, fmt.Errorf("%s: does not respond to --version: %w", path, err)
	}
	if spec.MinVersion == "" {
		return &Candidate{Path: path, Version: v}, nil
	}
	if err != nil {
		return nil, err
	}
	if !probe.AtLeast(v, spec.MinVersion) {
		return nil, fmt.Errorf("%s: version %s is older than %s", path, v, spec.MinVersion)
	}
	return &Candidate{Path: path, Version: v}, nil
}

// SearchPath finds the tool by bare name on the environment's PATH.
type SearchPath struct {
	Check Checker
}

func (SearchPath) Name() string { return "search path" }

func (t SearchPath) Resolve(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, error) {
	var errs []error
	for _, exe := range spec.Executables {
		path, err := env.LookPath(exe)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", exe, err))
			continue
		}
		c, err := t.Check.Verify(ctx, env, spec, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return c, nil
	}
	return nil, joinOrSkip(errs)
}

// VendorScanner finds the first existing relative path under the vendor
// directories.
type VendorScanner interface {
	Scan(rel []string) (string, bool)
}

// Vendor looks in the bundled zbin directories. A hit has its directory
// prepended to PATH so the configure step can find it by name.
type Vendor struct {
	Scanner VendorScanner
	Check   Checker
}

func (Vendor) Name() string { return "vendor directory" }

func (t Vendor) Resolve(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, error) {
	if t.Scanner == nil || len(spec.VendorPaths) == 0 {
		return nil, ErrSkipped
	}
	path, ok := t.Scanner.Scan(spec.VendorPaths)
	if !ok {
		return nil, fmt.Errorf("no %s under vendor directories", spec.Name)
	}
	c, err := t.Check.Verify(ctx, env, spec, path)
	if err != nil {
		return nil, err
	}
	env.PrependPath(filepath.Dir(path))
	return c, nil
}

// LocalCache looks for a copy installed by an earlier run: the tool record
// first, then the tool's conventional names under the work directory.
type LocalCache struct {
	WorkDir string
	Records *Records
	Check   Checker
}

func (LocalCache) Name() string { return "local cache" }

func (t LocalCache) Resolve(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, error) {
	var paths []string
	if t.Records != nil {
		if rec, ok := t.Records.Get(spec.Name); ok && rec.Path != "" {
			paths = append(paths, rec.Path)
		}
	}
	for _, name := range spec.CacheNames {
		paths = append(paths, filepath.Join(t.WorkDir, filepath.FromSlash(name)))
	}
	var errs []error
	for _, path := range paths {
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			continue
		}
		if err := provision.MakeExecutable(path); err != nil {
			errs = append(errs, err)
			continue
		}
		c, err := t.Check.Verify(ctx, env, spec, path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		env.PrependPath(filepath.Dir(path))
		return c, nil
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("no cached %s in %s", spec.Name, t.WorkDir)
	}
	return nil, errors.Join(errs...)
}

// Installer installs the SDK into a local checkout.
type Installer interface {
	Install(ctx context.Context, env *toolenv.Environment) error
}

// Provision obtains the tool over the network. The SDK goes through
// Installer and SDK composition; other tools through Provisioner. Successful
// installs are written to Records.
type Provision struct {
	Provisioner provision.Provisioner
	Installer   Installer
	SDK         *SDK
	Records     *Records
	Check       Checker
}

func (Provision) Name() string { return "provision" }

func (t Provision) Resolve(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, error) {
	var (
		c   *Candidate
		rec *ToolRecord
		err error
	)
	if spec.Kind == KindSDK {
		c, rec, err = t.installSDK(ctx, spec, env)
	} else {
		c, rec, err = t.provision(ctx, spec, env)
	}
	if err != nil {
		return nil, err
	}
	if t.Records != nil {
		rec.Version = c.Version
		rec.InstalledAt = time.Now().UTC()
		t.Records.Set(spec.Name, rec)
		if err := t.Records.Save(); err != nil {
			ctxlog.FromContext(ctx).Warn("could not save tool record", "tool", spec.Name, "error", err)
		}
	}
	return c, nil
}

func (t Provision) installSDK(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, *ToolRecord, error) {
	if t.Installer == nil || t.SDK == nil {
		return nil, nil, ErrSkipped
	}
	if err := t.Installer.Install(ctx, env); err != nil {
		return nil, nil, err
	}
	t.SDK.Compose(env)
	for _, exe := range spec.Executables {
		path, err := env.LookPath(exe)
		if err != nil {
			continue
		}
		c, err := t.Check.Verify(ctx, env, spec, path)
		if err != nil {
			return nil, nil, &provision.VerificationError{Tool: spec.Name, Path: path, Err: err}
		}
		return c, &ToolRecord{Path: path, Source: "emsdk"}, nil
	}
	return nil, nil, &provision.VerificationError{Tool: spec.Name, Path: t.SDK.EmscriptenDir(), Err: toolenv.ErrNotFound}
}

func (t Provision) provision(ctx context.Context, spec *Spec, env *toolenv.Environment) (*Candidate, *ToolRecord, error) {
	if t.Provisioner == nil || spec.Package == nil {
		return nil, nil, ErrSkipped
	}
	res, err := t.Provisioner.Provision(ctx, spec.Package, env)
	if err != nil {
		return nil, nil, err
	}
	c, err := t.Check.Verify(ctx, env, spec, res.Path)
	if err != nil {
		return nil, nil, &provision.VerificationError{Tool: spec.Name, Path: res.Path, Err: err}
	}
	return c, &ToolRecord{Path: res.Path, Source: res.Source, Digest: res.Digest}, nil
}

// Alternate resolves a substitute tool through its own tiers.
type Alternate struct {
	Spec  *Spec
	Tiers []Tier
}

func (t Alternate) Name() string { return "alternate " + t.Spec.Name }

func (t Alternate) Resolve(ctx context.Context, _ *Spec, env *toolenv.Environment) (*Candidate, error) {
	var errs []error
	for _, tier := range t.Tiers {
		c, err := tier.Resolve(ctx, t.Spec, env)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		c.Spec = t.Spec
		return c, nil
	}
	return nil, errors.Join(errs...)
}

func joinOrSkip(errs []error) error {
	if len(errs) == 0 {
		return ErrSkipped
	}
	return errors.Join(errs...)
}

// Attempt is one failed tier.
type Attempt struct {
	Tier string
	Err  error
}

// ToolUnavailableError reports a tool that no tier could produce.
type ToolUnavailableError struct {
	Tool     string
	Attempts []Attempt
}

func (e *ToolUnavailableError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s is unavailable", e.Tool)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, "\n  %s: %s", a.Tier, strings.ReplaceAll(a.Err.Error(), "\n", "; "))
	}
	return b.String()
}

func (e *ToolUnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}
