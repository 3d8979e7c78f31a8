package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/glistengine/gipwebgl/internal/pack"
	"github.com/glistengine/gipwebgl/internal/pipeline"
	"github.com/glistengine/gipwebgl/internal/project"
	"github.com/glistengine/gipwebgl/internal/provision"
	"github.com/glistengine/gipwebgl/internal/toolchain"
	"github.com/gookit/color"
)

// exitInterrupted is the conventional code for a run stopped by SIGINT.
const exitInterrupted = 130

// ExitCode maps err to the process exit status. Configure and build
// failures keep the exit code of the tool that failed.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cfgErr *pipeline.ConfigurationError
	if errors.As(err, &cfgErr) && cfgErr.Code > 0 {
		return cfgErr.Code
	}
	var buildErr *pipeline.BuildError
	if errors.As(err, &buildErr) && buildErr.Code > 0 {
		return buildErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return exitInterrupted
	}
	return 1
}

type diagnostic struct {
	title   string
	details []string
	hint    string
}

// diagnose turns err into a headline that names the failed stage, followed
// by details and an optional hint.
func diagnose(err error) diagnostic {
	var (
		validation  *project.ValidationError
		unavailable *toolchain.ToolUnavailableError
		download    *provision.DownloadError
		extraction  *provision.ExtractionError
		verify      *provision.VerificationError
		configure   *pipeline.ConfigurationError
		build       *pipeline.BuildError
		packaging   *pack.PackagingError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return diagnostic{title: "Interrupted"}
	case errors.As(err, &validation):
		return diagnostic{
			title:   "Folder structure check failed",
			details: []string{validation.Error()},
			hint:    "run gipwebgl from dev/glist/glistplugins/gipWebGL, or set skip_layout_check in gipwebgl.hcl",
		}
	case errors.As(err, &unavailable):
		d := diagnostic{title: fmt.Sprintf("Could not find or install %s", unavailable.Tool)}
		for _, a := range unavailable.Attempts {
			d.details = append(d.details, fmt.Sprintf("%s: %s", a.Tier, strings.ReplaceAll(a.Err.Error(), "\n", "; ")))
		}
		d.hint = "install it manually and make sure it is on PATH"
		return d
	case errors.As(err, &download):
		return diagnostic{title: "Download failed", details: []string{download.Error()}}
	case errors.As(err, &extraction):
		return diagnostic{title: "Extraction failed", details: []string{extraction.Error()}}
	case errors.As(err, &verify):
		return diagnostic{title: "Installed tool does not respond", details: []string{verify.Error()}}
	case errors.As(err, &configure):
		return diagnostic{
			title:   fmt.Sprintf("CMake configuration failed for %s (exit code %d)", configure.Project, configure.Code),
			details: []string{configure.Error()},
			hint:    "rerun with --verbose and check the CMake output above",
		}
	case errors.As(err, &build):
		return diagnostic{
			title:   fmt.Sprintf("Build failed for %s (exit code %d)", build.Project, build.Code),
			details: []string{build.Error()},
		}
	case errors.As(err, &packaging):
		return diagnostic{title: fmt.Sprintf("Packaging failed for %s", packaging.Project), details: []string{packaging.Error()}}
	case errors.Is(err, project.ErrNoProjects):
		return diagnostic{title: "No projects found", details: []string{err.Error()}, hint: "a project is a folder in myglistapps with a CMakeLists.txt"}
	case errors.Is(err, project.ErrNoSelection):
		return diagnostic{title: "No project selected", details: []string{err.Error()}}
	}
	return diagnostic{title: "Error", details: []string{err.Error()}}
}

// report prints the coloured diagnostic for err to w.
func report(w io.Writer, err error) {
	d := diagnose(err)
	fmt.Fprintln(w, color.Danger.Sprintf("✗ %s", d.title))
	for _, line := range d.details {
		fmt.Fprintln(w, "  "+line)
	}
	if d.hint != "" {
		fmt.Fprintln(w, color.Warn.Sprintf("  hint: %s", d.hint))
	}
}
