package toolchain

import (
	"context"
	"fmt"
	"testing"

	"github.com/glistengine/gipwebgl/internal/probe"
	"github.com/glistengine/gipwebgl/internal/toolenv"
)

// countingProber answers from a table and counts the queries it runs.
type countingProber struct {
	versions map[string]string
	errs     map[string]error
	probes   int
	queries  int
}

func (p *countingProber) Probe(context.Context, *toolenv.Environment, string) bool {
	p.probes++
	return true
}

func (p *countingProber) Version(_ context.Context, _ *toolenv.Environment, name string) (string, error) {
	p.queries++
	if err, ok := p.errs[name]; ok {
		return "", err
	}
	return p.versions[name], nil
}

func TestVerifyQueriesOnce(t *testing.T) {
	ctx := context.Background()
	env := toolenv.New(nil)
	p := &countingProber{
		versions: map[string]string{"/bin/cmake": "3.28.1", "/bin/old": "3.5"},
		errs: map[string]error{
			"/bin/quiet":  fmt.Errorf("/bin/quiet: %w", probe.ErrNoVersion),
			"/bin/broken": fmt.Errorf("/bin/broken: exit status 2"),
		},
	}
	check := Checker{Prober: p}
	floor := &Spec{Name: "cmake", MinVersion: "3.13"}
	open := &Spec{Name: "make"}

	tests := []struct {
		name string
		spec *Spec
		path string
		ok   bool
	}{
		{"meets floor", floor, "/bin/cmake", true},
		{"below floor", floor, "/bin/old", false},
		{"no version with floor", floor, "/bin/quiet", false},
		{"no version without floor", open, "/bin/quiet", true},
		{"does not run", open, "/bin/broken", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.probes, p.queries = 0, 0
			c, err := check.Verify(ctx, env, tt.spec, tt.path)
			if (err == nil) != tt.ok {
				t.Fatalf("Verify(%s) = %v, %v; want ok=%v", tt.path, c, err, tt.ok)
			}
			if p.queries != 1 || p.probes != 0 {
				t.Errorf("Verify ran %d version queries and %d probes, want 1 and 0", p.queries, p.probes)
			}
		})
	}
}
