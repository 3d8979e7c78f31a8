package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/glistengine/gipwebgl/internal/config"
	"github.com/glistengine/gipwebgl/internal/env"
	"github.com/glistengine/gipwebgl/internal/pack"
	"github.com/glistengine/gipwebgl/internal/pipeline"
	"github.com/glistengine/gipwebgl/internal/project"
	"github.com/glistengine/gipwebgl/internal/provision"
	"github.com/glistengine/gipwebgl/internal/toolchain"
	"github.com/klauspost/compress/zip"
)

// fakeCMake answers --version, writes the web outputs for $FAKE_PROJECT on
// --build ($FAKE_OUTPUTS, default all four) and logs configure arguments to
// $FAKE_LOG.
const fakeCMake = `#!/bin/sh
if [ "$1" = "--version" ]; then
	echo "cmake version 3.28.1"
	exit 0
fi
if [ "$1" = "--build" ]; then
	for ext in ${FAKE_OUTPUTS:-html js wasm data}; do echo "$ext" > "$2/$FAKE_PROJECT.$ext"; done
	exit ${FAKE_BUILD_EXIT:-0}
fi
for a in "$@"; do echo "$a" >> "$FAKE_LOG"; done
exit ${FAKE_CONFIGURE_EXIT:-0}
`

type workspace struct {
	workDir string
	apps    string
	log     string
}

// newWorkspace lays out dev/glist/glistplugins/gipWebGL with the engine and
// apps folders, and puts fake emcc, cmake and ninja first on PATH. emcc gets
// its own directory so the Emscripten toolchain file can sit next to it.
func newWorkspace(t *testing.T) *workspace {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	root := t.TempDir()
	glist := filepath.Join(root, "dev", "glist")
	w := &workspace{
		workDir: filepath.Join(glist, "glistplugins", "gipWebGL"),
		apps:    filepath.Join(glist, "myglistapps"),
		log:     filepath.Join(root, "cmake.log"),
	}
	bin := filepath.Join(root, "bin")
	em := filepath.Join(root, "em")
	platform := filepath.Join(em, "cmake", "Modules", "Platform")
	for _, d := range []string{w.workDir, w.apps, filepath.Join(glist, "glistengine"), bin, platform} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	tools := map[string]string{
		filepath.Join(em, "emcc"):   "#!/bin/sh\necho \"emcc (Emscripten gcc/clang-like replacement) 3.1.45\"\n",
		filepath.Join(bin, "ninja"): "#!/bin/sh\necho 1.12.1\n",
		filepath.Join(bin, "cmake"): fakeCMake,
	}
	for path, body := range tools {
		if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(platform, "Emscripten.cmake"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	sep := string(os.PathListSeparator)
	t.Setenv("PATH", em+sep+bin+sep+os.Getenv("PATH"))
	t.Setenv(env.WorkDirEnv, w.workDir)
	t.Setenv("FAKE_LOG", w.log)
	return w
}

func (w *workspace) addProject(t *testing.T, name string, assets bool) {
	t.Helper()
	dir := filepath.Join(w.apps, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if !assets {
		return
	}
	if err := os.MkdirAll(filepath.Join(dir, "assets"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "assets", "logo.png"), []byte("png"), 0o644); err != nil {
		t.Fatal(err)
	}
}

// execute runs the root command with args and fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buildProject, buildNoPackage, verbose = "", false, false
	var out, errOut bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(""))
	err := rootCmd.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr:\n%s", errOut.String())
	}
	return out.String(), err
}

// trackResolver records whether the resolver was built.
func trackResolver(t *testing.T) *bool {
	t.Helper()
	called := new(bool)
	orig := newResolver
	newResolver = func(ctx context.Context, s *session) (*toolchain.Resolver, error) {
		*called = true
		return orig(ctx, s)
	}
	t.Cleanup(func() { newResolver = orig })
	return called
}

func TestBuildDemo(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "demo", true)
	t.Setenv("FAKE_PROJECT", "demo")

	out, err := execute(t, "build")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	zipPath := filepath.Join(w.workDir, "build", "demo_webgl.zip")
	if !strings.Contains(out, zipPath) {
		t.Errorf("output does not mention %s:\n%s", zipPath, out)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"demo.html", "demo.js", "demo.wasm", "demo.data", "README.txt"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("package entries = %v, want %v", names, want)
	}

	log, err := os.ReadFile(w.log)
	if err != nil {
		t.Fatal(err)
	}
	args := string(log)
	for _, s := range []string{"Ninja", "-DCMAKE_SYSTEM_NAME:STRING=Emscripten", "--preload-file"} {
		if !strings.Contains(args, s) {
			t.Errorf("configure args missing %q:\n%s", s, args)
		}
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "demo", "assets", "logo.png")); err != nil {
		t.Errorf("assets not staged: %v", err)
	}
}

func TestBuildDemoWithoutAssets(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "demo", false)
	t.Setenv("FAKE_PROJECT", "demo")
	t.Setenv("FAKE_OUTPUTS", "html js wasm")

	if _, err := execute(t, "build"); err != nil {
		t.Fatalf("build: %v", err)
	}

	zr, err := zip.OpenReader(filepath.Join(w.workDir, "build", "demo_webgl.zip"))
	if err != nil {
		t.Fatalf("open package: %v", err)
	}
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"demo.html", "demo.js", "demo.wasm", "README.txt"}
	if fmt.Sprint(names) != fmt.Sprint(want) {
		t.Errorf("package entries = %v, want %v", names, want)
	}

	log, err := os.ReadFile(w.log)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(log), "--preload-file") {
		t.Errorf("configure args carry a preload flag without assets:\n%s", log)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "demo", "assets")); !os.IsNotExist(err) {
		t.Errorf("assets folder created without assets, stat err = %v", err)
	}
}

func TestBuildNoPackage(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "demo", false)
	t.Setenv("FAKE_PROJECT", "demo")

	if _, err := execute(t, "build", "--no-package"); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "demo_webgl.zip")); !os.IsNotExist(err) {
		t.Errorf("package should not exist, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "demo", "demo.wasm")); err != nil {
		t.Errorf("build output missing: %v", err)
	}
}

func TestBuildLayoutFailsBeforeResolution(t *testing.T) {
	t.Setenv(env.WorkDirEnv, t.TempDir())
	called := trackResolver(t)

	_, err := execute(t, "build")
	var verr *project.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("build error = %v, want *project.ValidationError", err)
	}
	if *called {
		t.Error("resolver ran although the folder structure is invalid")
	}
	if code := ExitCode(err); code != 1 {
		t.Errorf("ExitCode = %d, want 1", code)
	}
}

func TestBuildNoProjects(t *testing.T) {
	newWorkspace(t)
	called := trackResolver(t)

	_, err := execute(t, "build")
	if !errors.Is(err, project.ErrNoProjects) {
		t.Fatalf("build error = %v, want ErrNoProjects", err)
	}
	if *called {
		t.Error("resolver ran without a project")
	}
}

func TestBuildSelection(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "alpha", false)
	w.addProject(t, "beta", false)
	t.Setenv("FAKE_PROJECT", "beta")

	if _, err := execute(t, "build"); !errors.Is(err, project.ErrNoSelection) {
		t.Fatalf("build without input: err = %v, want ErrNoSelection", err)
	}
	if _, err := execute(t, "build", "--project", "gamma"); !errors.Is(err, project.ErrNoSelection) {
		t.Fatalf("build --project gamma: err = %v, want ErrNoSelection", err)
	}
	if _, err := execute(t, "build", "--project", "beta", "--no-package"); err != nil {
		t.Fatalf("build --project beta: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "beta", "beta.html")); err != nil {
		t.Errorf("beta not built: %v", err)
	}
}

func TestBuildConfigureFailureExitCode(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "demo", false)
	t.Setenv("FAKE_PROJECT", "demo")
	t.Setenv("FAKE_CONFIGURE_EXIT", "3")

	_, err := execute(t, "build")
	var cerr *pipeline.ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("build error = %v, want *pipeline.ConfigurationError", err)
	}
	if code := ExitCode(err); code != 3 {
		t.Errorf("ExitCode = %d, want 3", code)
	}
}

func TestResolve(t *testing.T) {
	newWorkspace(t)

	out, err := execute(t, "resolve")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, s := range []string{"emcc", "cmake", "ninja", "3.28.1", "search path", "Emscripten.cmake"} {
		if !strings.Contains(out, s) {
			t.Errorf("resolve output missing %q:\n%s", s, out)
		}
	}
}

func TestList(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "beta", false)
	w.addProject(t, "alpha", false)
	if err := os.MkdirAll(filepath.Join(w.apps, "notes"), 0o755); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if out != "alpha\nbeta\n" {
		t.Errorf("list output = %q, want %q", out, "alpha\nbeta\n")
	}
}

func TestPackageCommand(t *testing.T) {
	w := newWorkspace(t)
	w.addProject(t, "demo", false)

	_, err := execute(t, "package", "demo")
	var perr *pack.PackagingError
	if !errors.As(err, &perr) {
		t.Fatalf("package before build: err = %v, want *pack.PackagingError", err)
	}

	buildDir := filepath.Join(w.workDir, "build", "demo")
	if err := os.MkdirAll(buildDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(buildDir, "demo.html"), []byte("<html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "package", "demo"); err != nil {
		t.Fatalf("package: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, "build", "demo_webgl.zip")); err != nil {
		t.Errorf("package not written: %v", err)
	}
}

func TestConfigOverridesApply(t *testing.T) {
	w := newWorkspace(t)
	hcl := `tool "cmake" {
  min_version = "99.0"
}
`
	if err := os.WriteFile(filepath.Join(w.workDir, config.FileName), []byte(hcl), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	s, err := newSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	r, err := newResolver(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	gen, ok := r.Tool(toolchain.KindGenerator)
	if !ok {
		t.Fatal("no generator tool registered")
	}
	if gen.Spec.MinVersion != "99.0" {
		t.Errorf("cmake MinVersion = %q, want 99.0", gen.Spec.MinVersion)
	}
	if _, err := os.Stat(filepath.Join(w.workDir, ".gipwebgl")); err != nil {
		t.Errorf("state dir not created: %v", err)
	}
}

func TestToolSpecs(t *testing.T) {
	specs, alt, err := toolSpecs(map[string]config.Tool{
		"ninja": {MinVersion: "1.10", URLs: map[string]string{"linux": "https://mirror.example/ninja.zip"}},
		"make":  {MinVersion: "4.0"},
	})
	if err != nil {
		t.Fatal(err)
	}
	ninja := specs[toolchain.KindBuilder]
	if ninja.MinVersion != "1.10" {
		t.Errorf("ninja MinVersion = %q, want 1.10", ninja.MinVersion)
	}
	if a := ninja.Package.Archives["linux"]; a.URL != "https://mirror.example/ninja.zip" || a.Exe != "ninja" {
		t.Errorf("ninja linux archive = %+v", a)
	}
	if alt.MinVersion != "4.0" {
		t.Errorf("make MinVersion = %q, want 4.0", alt.MinVersion)
	}
	if specs[toolchain.KindGenerator].MinVersion != toolchain.CMakeSpec().MinVersion {
		t.Error("cmake spec changed without a tool block")
	}

	if _, _, err := toolSpecs(map[string]config.Tool{"gcc": {}}); err == nil {
		t.Error("unknown tool name should fail")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"configure", &pipeline.ConfigurationError{Project: "demo", Code: 3, Err: errors.New("exit status 3")}, 3},
		{"build", &pipeline.BuildError{Project: "demo", Code: 5, Err: errors.New("exit status 5")}, 5},
		{"wrapped build", fmt.Errorf("run: %w", &pipeline.BuildError{Project: "demo", Code: 2, Err: errors.New("x")}), 2},
		{"configure without code", &pipeline.ConfigurationError{Project: "demo", Err: errors.New("not found")}, 1},
		{"tool", &toolchain.ToolUnavailableError{Tool: "ninja"}, 1},
		{"layout", &project.ValidationError{Path: "/tmp", Reason: "bad"}, 1},
		{"no projects", project.ErrNoProjects, 1},
		{"interrupted", context.Canceled, 130},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestDiagnoseDistinct(t *testing.T) {
	cause := errors.New("boom")
	errs := []error{
		&project.ValidationError{Path: "/tmp", Reason: "bad"},
		&toolchain.ToolUnavailableError{Tool: "ninja", Attempts: []toolchain.Attempt{{Tier: "search path", Err: cause}}},
		&provision.DownloadError{URL: "https://example.com/a.zip", Err: cause},
		&provision.ExtractionError{Archive: "a.zip", Err: cause},
		&provision.VerificationError{Tool: "ninja", Path: "/x/ninja"},
		&pipeline.ConfigurationError{Project: "demo", Code: 1, Err: cause},
		&pipeline.BuildError{Project: "demo", Code: 1, Err: cause},
		&pack.PackagingError{Project: "demo", Err: cause},
		project.ErrNoProjects,
		project.ErrNoSelection,
		context.Canceled,
		cause,
	}
	seen := make(map[string]error)
	for _, err := range errs {
		title := diagnose(err).title
		if prev, ok := seen[title]; ok {
			t.Errorf("%T and %T share the diagnostic %q", prev, err, title)
		}
		seen[title] = err
	}

	d := diagnose(errs[1])
	if len(d.details) != 1 || !strings.HasPrefix(d.details[0], "search path: boom") {
		t.Errorf("ToolUnavailableError details = %q", d.details)
	}

	var buf bytes.Buffer
	report(&buf, errs[5])
	if !strings.Contains(buf.String(), "CMake configuration failed for demo") {
		t.Errorf("report output = %q", buf.String())
	}
}
