// Package config loads the optional gipwebgl.hcl file from the work
// directory and fills in defaults derived from the folder layout.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/project"
)

// FileName is the configuration file looked up in the work directory.
const FileName = "gipwebgl.hcl"

// Tool holds per-tool overrides.
type Tool struct {
	MinVersion string
	// URLs maps "goos" or "goos/goarch" to a release archive URL.
	URLs map[string]string
}

// Config is the effective configuration.
type Config struct {
	WorkDir         string
	VendorRoot      string
	AppsDir         string
	BuildRoot       string
	ProbeTimeout    time.Duration
	SkipLayoutCheck bool
	Defines         map[string]string
	Tools           map[string]Tool
	// Source is the file the configuration was read from; empty for defaults.
	Source string
}

// hclFile is the decoding target for gipwebgl.hcl.
type hclFile struct {
	VendorRoot      string            `hcl:"vendor_root,optional"`
	AppsDir         string            `hcl:"apps_dir,optional"`
	BuildRoot       string            `hcl:"build_root,optional"`
	ProbeTimeout    string            `hcl:"probe_timeout,optional"`
	SkipLayoutCheck bool              `hcl:"skip_layout_check,optional"`
	Defines         map[string]string `hcl:"defines,optional"`
	Tools           []*hclTool        `hcl:"tool,block"`
}

type hclTool struct {
	Name       string            `hcl:"name,label"`
	MinVersion string            `hcl:"min_version,optional"`
	URLs       map[string]string `hcl:"urls,optional"`
}

// Default returns the configuration implied by the folder layout around
// workDir.
func Default(workDir string) *Config {
	l := project.NewLayout(workDir)
	return &Config{
		WorkDir:      workDir,
		VendorRoot:   l.Vendor,
		AppsDir:      l.Apps,
		BuildRoot:    filepath.Join(workDir, "build"),
		ProbeTimeout: probe.DefaultTimeout,
		Defines:      map[string]string{},
		Tools:        map[string]Tool{},
	}
}

// Load reads <workDir>/gipwebgl.hcl over the defaults. A missing file is
// not an error.
func Load(ctx context.Context, workDir string) (*Config, error) {
	cfg := Default(workDir)
	path := filepath.Join(workDir, FileName)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err := cfg.decodeFile(ctx, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decodeFile(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Decoding config file.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %s", path, diags.Error())
	}

	var f hclFile
	diags = gohcl.DecodeBody(file.Body, EvalContext(c.WorkDir, runtime.GOOS), &f)
	if diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %s", path, diags.Error())
	}

	if f.VendorRoot != "" {
		c.VendorRoot = c.abs(f.VendorRoot)
	}
	if f.AppsDir != "" {
		c.AppsDir = c.abs(f.AppsDir)
	}
	if f.BuildRoot != "" {
		c.BuildRoot = c.abs(f.BuildRoot)
	}
	if f.ProbeTimeout != "" {
		d, err := time.ParseDuration(f.ProbeTimeout)
		if err != nil {
			return fmt.Errorf("%s: probe_timeout: %w", path, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s: probe_timeout must be positive, got %s", path, d)
		}
		c.ProbeTimeout = d
	}
	c.SkipLayoutCheck = f.SkipLayoutCheck
	for k, v := range f.Defines {
		c.Defines[k] = v
	}
	for _, t := range f.Tools {
		if _, dup := c.Tools[t.Name]; dup {
			return fmt.Errorf("%s: duplicate tool block %q", path, t.Name)
		}
		c.Tools[t.Name] = Tool{MinVersion: t.MinVersion, URLs: t.URLs}
	}
	c.Source = path

	logger.Debug("Successfully decoded config file.", "path", path, "defines", len(c.Defines), "tools", len(c.Tools))
	return nil
}

func (c *Config) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.WorkDir, p)
}

// EvalContext exposes env.<NAME>, platform and workdir to expressions in the
// configuration file.
func EvalContext(workDir, goos string) *hcl.EvalContext {
	env := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" || !hclIdent(k) {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env":      cty.ObjectVal(env),
			"platform": cty.StringVal(goos),
			"workdir":  cty.StringVal(workDir),
		},
	}
}

// hclIdent reports whether s can be used as an attribute name after "env.".
func hclIdent(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
