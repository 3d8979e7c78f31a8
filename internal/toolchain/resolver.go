// Package toolchain decides where each external build tool lives. Every tool
// has an ordered list of tiers; the first tier producing a verified path
// wins and is cached for the rest of the process.
package toolchain

import (
	"context"
	"fmt"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/provision"
	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// Toolchain is the full set of resolved tools and the environment child
// processes must run with.
type Toolchain struct {
	SDK           *Resolution
	Generator     *Resolution
	Builder       *Resolution
	ToolchainFile string
	Env           *toolenv.Environment
}

// GeneratorName is the CMake generator matching the resolved builder.
func (tc *Toolchain) GeneratorName() string {
	return tc.Builder.Spec.Generator
}

// Resolver owns the resolved environment and the per-kind tools.
type Resolver struct {
	env   *toolenv.Environment
	sdk   *SDK
	tools map[Kind]*Tool
}

// NewResolver returns a Resolver over the given tools. sdk may be nil.
func NewResolver(env *toolenv.Environment, sdk *SDK, tools ...*Tool) *Resolver {
	r := &Resolver{env: env, sdk: sdk, tools: make(map[Kind]*Tool, len(tools))}
	for _, t := range tools {
		r.tools[t.Spec.Kind] = t
	}
	return r
}

// Options assembles the standard tier lists.
type Options struct {
	WorkDir     string
	Prober      probe.Prober
	Scanner     VendorScanner
	Provisioner provision.Provisioner
	Installer   Installer
	Records     *Records
	// Specs overrides the default specs per kind.
	Specs map[Kind]*Spec
	// Alternate overrides the builder's fallback spec (make).
	Alternate *Spec
}

// New builds a Resolver with the default tiers: search path, vendor
// directory, local cache and provision for every tool, and for the builder
// an alternate make resolved through the first three tiers only.
func New(env *toolenv.Environment, opts Options) *Resolver {
	if opts.Prober == nil {
		opts.Prober = probe.New()
	}
	check := Checker{Prober: opts.Prober}
	sdk := NewSDK(opts.WorkDir)

	spec := func(k Kind, def func() *Spec) *Spec {
		if s, ok := opts.Specs[k]; ok {
			return s
		}
		return def()
	}
	local := []Tier{
		SearchPath{Check: check},
		Vendor{Scanner: opts.Scanner, Check: check},
		LocalCache{WorkDir: opts.WorkDir, Records: opts.Records, Check: check},
	}
	prov := Provision{
		Provisioner: opts.Provisioner,
		Installer:   opts.Installer,
		SDK:         sdk,
		Records:     opts.Records,
		Check:       check,
	}
	alt := opts.Alternate
	if alt == nil {
		alt = MakeSpec()
	}
	withProvision := append(append([]Tier(nil), local...), prov)
	builder := append(append([]Tier(nil), withProvision...), Alternate{Spec: alt, Tiers: local})

	return NewResolver(env, sdk,
		NewTool(spec(KindSDK, EmccSpec), withProvision...),
		NewTool(spec(KindGenerator, CMakeSpec), withProvision...),
		NewTool(spec(KindBuilder, NinjaSpec), builder...),
	)
}

// Env returns the resolved environment.
func (r *Resolver) Env() *toolenv.Environment { return r.env }

// Tool returns the tool registered for kind.
func (r *Resolver) Tool(kind Kind) (*Tool, bool) {
	t, ok := r.tools[kind]
	return t, ok
}

// Resolve returns the resolution for kind, running its tiers on first use.
// A tool is never re-resolved: later calls return the cached outcome.
func (r *Resolver) Resolve(ctx context.Context, kind Kind) (*Resolution, error) {
	t, ok := r.tools[kind]
	if !ok {
		return nil, fmt.Errorf("no tool registered for %s", kind)
	}
	switch t.state {
	case Resolved:
		return t.res, nil
	case Failed:
		return nil, t.err
	}

	logger := ctxlog.FromContext(ctx).With("tool", t.Spec.Name)
	if kind == KindSDK && r.sdk != nil && r.sdk.Exists() {
		if r.sdk.Compose(r.env) {
			logger.Debug("composed SDK environment", "emsdk", r.sdk.Dir)
		}
	}

	var attempts []Attempt
	for _, tier := range t.Tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := tier.Resolve(ctx, t.Spec, r.env)
		if err != nil {
			logger.Debug("tier failed", "tier", tier.Name(), "error", err)
			attempts = append(attempts, Attempt{Tier: tier.Name(), Err: err})
			continue
		}
		spec := t.Spec
		if c.Spec != nil {
			spec = c.Spec
		}
		res := &Resolution{Kind: kind, Spec: spec, Path: c.Path, Tier: tier.Name(), Version: c.Version}
		t.resolved(res)
		logger.Info("resolved", "name", spec.Name, "path", res.Path, "tier", res.Tier, "version", res.Version)
		return res, nil
	}
	err := &ToolUnavailableError{Tool: t.Spec.Name, Attempts: attempts}
	t.failed(err)
	return nil, err
}

// ResolveAll resolves the SDK, the generator and the builder in that order
// and locates the CMake toolchain file.
func (r *Resolver) ResolveAll(ctx context.Context) (*Toolchain, error) {
	tc := &Toolchain{Env: r.env}
	var err error
	if tc.SDK, err = r.Resolve(ctx, KindSDK); err != nil {
		return nil, err
	}
	if tc.Generator, err = r.Resolve(ctx, KindGenerator); err != nil {
		return nil, err
	}
	if tc.Builder, err = r.Resolve(ctx, KindBuilder); err != nil {
		return nil, err
	}
	sdk := r.sdk
	if sdk == nil {
		sdk = &SDK{}
	}
	if tc.ToolchainFile, err = sdk.ToolchainFile(ctx, r.env, tc.SDK.Path); err != nil {
		return nil, err
	}
	return tc, nil
}
