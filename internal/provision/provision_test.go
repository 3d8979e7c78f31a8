package provision

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/glistengine/gipwebgl/internal/toolenv"
)

type call struct {
	name string
	args []string
}

func (c call) String() string { return c.name + " " + strings.Join(c.args, " ") }

// fakeRunner records commands. fail lists command prefixes that return an
// error; onInstall runs after a successful install command.
type fakeRunner struct {
	calls     []call
	fail      map[string]bool
	onInstall func(manager string)
}

func (r *fakeRunner) Run(_ context.Context, _ *toolenv.Environment, name string, args ...string) error {
	c := call{filepath.Base(name), args}
	r.calls = append(r.calls, c)
	if r.fail[c.String()] {
		return errors.New("exit status 1")
	}
	if len(args) > 0 && strings.Contains(strings.Join(args, " "), "install") && r.onInstall != nil {
		r.onInstall(c.name)
	}
	return nil
}

type fakeProber struct{ ok bool }

func (p fakeProber) Probe(context.Context, *toolenv.Environment, string) bool { return p.ok }
func (p fakeProber) Version(context.Context, *toolenv.Environment, string) (string, error) {
	if !p.ok {
		return "", errors.New("no version")
	}
	return "1.12.1", nil
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
}

func writeExe(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func ninjaPackage(url string) *Package {
	return &Package{
		Name:       "ninja",
		Executable: "ninja",
		Packages:   map[string]string{"apt-get": "ninja-build", "dnf": "ninja-build", "brew": "ninja"},
		Archives: map[string]Archive{
			"linux":   {URL: url, Exe: "ninja"},
			"windows": {URL: url, Exe: "ninja"},
		},
	}
}

// serveZip serves a zip holding entries at /ninja-linux.zip.
func serveZip(t *testing.T, entries []entry) *httptest.Server {
	t.Helper()
	archive := filepath.Join(t.TempDir(), "src.zip")
	writeZip(t, archive, entries)
	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ninja-linux.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLinuxManagerOrder(t *testing.T) {
	skipOnWindows(t)
	bin := t.TempDir()
	writeExe(t, bin, "apt-get")
	writeExe(t, bin, "dnf")
	env := toolenv.New([]string{"PATH=" + bin})

	r := &fakeRunner{
		fail: map[string]bool{"apt-get install -y ninja-build": true},
		onInstall: func(manager string) {
			if manager == "dnf" {
				writeExe(t, bin, "ninja")
			}
		},
	}
	p := ForPlatform("linux", WithRunner(r), WithProber(fakeProber{ok: true}), WithWorkDir(t.TempDir()))

	res, err := p.Provision(context.Background(), ninjaPackage("http://unused/ninja-linux.zip"), env)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if res.Source != "dnf" {
		t.Errorf("Source = %q, want dnf", res.Source)
	}
	if res.Path != filepath.Join(bin, "ninja") {
		t.Errorf("Path = %q, want %q", res.Path, filepath.Join(bin, "ninja"))
	}

	want := []string{
		"apt-get update",
		"apt-get install -y ninja-build",
		"dnf makecache -y",
		"dnf install -y ninja-build",
	}
	if len(r.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", r.calls, want)
	}
	for i, c := range r.calls {
		if c.String() != want[i] {
			t.Errorf("call[%d] = %q, want %q", i, c.String(), want[i])
		}
	}
}

func TestLinuxFallsBackToArchive(t *testing.T) {
	skipOnWindows(t)
	srv := serveZip(t, []entry{{"ninja", "#!/bin/sh\necho 1.12.1\n", 0o644}})
	work := t.TempDir()
	env := toolenv.New([]string{"PATH=" + t.TempDir()})

	r := &fakeRunner{}
	p := ForPlatform("linux",
		WithRunner(r),
		WithProber(fakeProber{ok: true}),
		WithWorkDir(work),
		WithFetcher(NewFetcher(WithClient(srv.Client()))),
	)
	res, err := p.Provision(context.Background(), ninjaPackage(srv.URL+"/ninja-linux.zip"), env)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("no package manager is on PATH, got calls %v", r.calls)
	}
	exe := filepath.Join(work, "ninja")
	if res.Path != exe {
		t.Errorf("Path = %q, want %q", res.Path, exe)
	}
	if res.Digest == "" {
		t.Error("Digest should be set for archive installs")
	}
	if fi, err := os.Stat(exe); err != nil || fi.Mode().Perm()&0o111 == 0 {
		t.Errorf("%s should be executable, stat = %v, %v", exe, fi, err)
	}
	if _, err := os.Stat(filepath.Join(work, "ninja-linux.zip")); !os.IsNotExist(err) {
		t.Error("archive should be removed after extraction")
	}
	if got := env.PathList()[0]; got != work {
		t.Errorf("PATH[0] = %q, want %q", got, work)
	}
}

func TestArchiveVerificationFailure(t *testing.T) {
	skipOnWindows(t)
	srv := serveZip(t, []entry{{"ninja", "garbage", 0o644}})
	env := toolenv.New([]string{"PATH=" + t.TempDir()})

	p := ForPlatform("windows",
		WithProber(fakeProber{ok: false}),
		WithWorkDir(t.TempDir()),
		WithFetcher(NewFetcher(WithClient(srv.Client()))),
	)
	_, err := p.Provision(context.Background(), ninjaPackage(srv.URL+"/ninja-linux.zip"), env)
	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("Provision = %v, want VerificationError", err)
	}
}

func TestArchiveMissingExecutable(t *testing.T) {
	skipOnWindows(t)
	srv := serveZip(t, []entry{{"doc/README", "no binary here", 0o644}})
	env := toolenv.New([]string{"PATH=" + t.TempDir()})

	p := ForPlatform("windows",
		WithProber(fakeProber{ok: true}),
		WithWorkDir(t.TempDir()),
		WithFetcher(NewFetcher(WithClient(srv.Client()))),
	)
	_, err := p.Provision(context.Background(), ninjaPackage(srv.URL+"/ninja-linux.zip"), env)
	var eerr *ExtractionError
	if !errors.As(err, &eerr) {
		t.Fatalf("Provision = %v, want ExtractionError", err)
	}
}

func TestArchiveDownloadFailure(t *testing.T) {
	srv := serveZip(t, nil)
	env := toolenv.New(nil)

	p := ForPlatform("windows",
		WithProber(fakeProber{ok: true}),
		WithWorkDir(t.TempDir()),
		WithFetcher(NewFetcher(WithClient(srv.Client()))),
	)
	_, err := p.Provision(context.Background(), ninjaPackage(srv.URL+"/gone.zip"), env)
	var derr *DownloadError
	if !errors.As(err, &derr) {
		t.Fatalf("Provision = %v, want DownloadError", err)
	}
}

func TestWindowsIgnoresManagers(t *testing.T) {
	skipOnWindows(t)
	bin := t.TempDir()
	writeExe(t, bin, "apt-get")
	srv := serveZip(t, []entry{{"ninja", "#!/bin/sh\n", 0o755}})
	env := toolenv.New([]string{"PATH=" + bin})

	r := &fakeRunner{}
	p := ForPlatform("windows",
		WithRunner(r),
		WithManagers(LinuxManagers...),
		WithProber(fakeProber{ok: true}),
		WithWorkDir(t.TempDir()),
		WithFetcher(NewFetcher(WithClient(srv.Client()))),
	)
	res, err := p.Provision(context.Background(), ninjaPackage(srv.URL+"/ninja-linux.zip"), env)
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if len(r.calls) != 0 {
		t.Errorf("windows should not run package managers, got %v", r.calls)
	}
	if res.Source != srv.URL+"/ninja-linux.zip" {
		t.Errorf("Source = %q", res.Source)
	}
}

func TestNoArchiveForPlatform(t *testing.T) {
	pkg := &Package{Name: "ninja", Executable: "ninja"}
	p := ForPlatform("windows", WithProber(fakeProber{ok: true}))
	if _, err := p.Provision(context.Background(), pkg, toolenv.New(nil)); !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Provision = %v, want ErrNotAvailable", err)
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	p := ForPlatform("plan9")
	_, err := p.Provision(context.Background(), ninjaPackage(""), toolenv.New(nil))
	if !errors.Is(err, ErrNotAvailable) {
		t.Fatalf("Provision = %v, want ErrNotAvailable", err)
	}
}

func TestArchiveFor(t *testing.T) {
	pkg := &Package{Archives: map[string]Archive{
		"linux":       {URL: "x86"},
		"linux/arm64": {URL: "arm"},
	}}
	if a, _ := pkg.ArchiveFor("linux", "arm64"); a.URL != "arm" {
		t.Errorf("linux/arm64 = %q, want arm", a.URL)
	}
	if a, _ := pkg.ArchiveFor("linux", "amd64"); a.URL != "x86" {
		t.Errorf("linux/amd64 = %q, want x86", a.URL)
	}
	if _, ok := pkg.ArchiveFor("darwin", "arm64"); ok {
		t.Error("darwin should have no archive")
	}
}
