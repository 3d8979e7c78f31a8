package internal

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/glistengine/gipwebgl/internal/config"
	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/env"
	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/project"
	"github.com/glistengine/gipwebgl/internal/provision"
	"github.com/glistengine/gipwebgl/internal/scan"
	"github.com/glistengine/gipwebgl/internal/toolchain"
	"github.com/glistengine/gipwebgl/internal/toolenv"
	"golang.org/x/term"
)

// session is the state shared by every command: where we run, the loaded
// configuration and the folder layout around the work directory.
type session struct {
	workDir string
	cfg     *config.Config
	layout  project.Layout
}

func newSession(ctx context.Context) (*session, error) {
	workDir, err := env.WorkDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get work dir: %w", err)
	}
	cfg, err := config.Load(ctx, workDir)
	if err != nil {
		return nil, err
	}
	if cfg.Source != "" {
		ctxlog.FromContext(ctx).Debug("loaded config", "path", cfg.Source)
	}
	layout := project.NewLayout(workDir)
	layout.Apps = cfg.AppsDir
	layout.Vendor = cfg.VendorRoot
	return &session{workDir: workDir, cfg: cfg, layout: layout}, nil
}

// validate checks the folder structure unless the configuration opts out.
func (s *session) validate(ctx context.Context) error {
	if s.cfg.SkipLayoutCheck {
		ctxlog.FromContext(ctx).Warn("folder structure check skipped", "workdir", s.workDir)
		return nil
	}
	return s.layout.Validate()
}

// project returns the project called name, the only project when there is
// just one, or the one picked from a menu on in/out.
func (s *session) project(ctx context.Context, name string, in io.Reader, out io.Writer) (project.Project, error) {
	projects, err := project.Discover(s.layout.Apps)
	if err != nil {
		return project.Project{}, err
	}
	if name != "" {
		return project.Find(projects, name)
	}
	if len(projects) == 1 {
		ctxlog.FromContext(ctx).Info("only one project found", "project", projects[0].Name)
		return projects[0], nil
	}
	return project.Select(projects, in, out)
}

// buildDir is where project p is configured and built.
func (s *session) buildDir(p project.Project) string {
	return filepath.Join(s.cfg.BuildRoot, p.Name)
}

// newResolver builds the toolchain resolver for s. Tests replace it.
var newResolver = func(ctx context.Context, s *session) (*toolchain.Resolver, error) {
	stateDir, err := env.StateDir(s.workDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	records, err := toolchain.LoadRecords(stateDir)
	if err != nil {
		return nil, err
	}
	specs, alt, err := toolSpecs(s.cfg.Tools)
	if err != nil {
		return nil, err
	}

	prober := probe.New(probe.WithTimeout(s.cfg.ProbeTimeout))
	var fetchOpts []provision.FetchOption
	if term.IsTerminal(int(os.Stderr.Fd())) {
		fetchOpts = append(fetchOpts, provision.WithProgress(os.Stderr))
	}
	runner := &provision.ExecRunner{Dir: s.workDir, Stdout: os.Stderr, Stderr: os.Stderr}
	prov := provision.ForPlatform(runtime.GOOS,
		provision.WithWorkDir(s.workDir),
		provision.WithProber(prober),
		provision.WithFetcher(provision.NewFetcher(fetchOpts...)),
		provision.WithRunner(runner),
	)

	return toolchain.New(toolenv.FromOS(), toolchain.Options{
		WorkDir:     s.workDir,
		Prober:      prober,
		Scanner:     scan.New(s.cfg.VendorRoot),
		Provisioner: prov,
		Installer:   provision.NewEmsdk(toolchain.NewSDK(s.workDir).Dir, runner),
		Records:     records,
		Specs:       specs,
		Alternate:   alt,
	}), nil
}

// toolSpecs applies the configured tool blocks to the default specs.
func toolSpecs(tools map[string]config.Tool) (map[toolchain.Kind]*toolchain.Spec, *toolchain.Spec, error) {
	specs := map[toolchain.Kind]*toolchain.Spec{
		toolchain.KindSDK:       toolchain.EmccSpec(),
		toolchain.KindGenerator: toolchain.CMakeSpec(),
		toolchain.KindBuilder:   toolchain.NinjaSpec(),
	}
	alt := toolchain.MakeSpec()
	byName := map[string]*toolchain.Spec{alt.Name: alt}
	for _, s := range specs {
		byName[s.Name] = s
	}
	for name, t := range tools {
		s, ok := byName[name]
		if !ok {
			return nil, nil, fmt.Errorf("config: unknown tool %q", name)
		}
		s.Override(t.MinVersion, t.URLs)
	}
	return specs, alt, nil
}
