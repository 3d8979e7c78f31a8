package provision

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/toolenv"
	"github.com/glistengine/gipwebgl/internal/vcs"
)

const (
	// EmsdkRemote is the upstream Emscripten SDK repository.
	EmsdkRemote = "https://github.com/emscripten-core/emsdk.git"
	// EmsdkRef is the branch checked out when none is configured.
	EmsdkRef = "main"
	// EmsdkVersion is the SDK release installed and activated.
	EmsdkVersion = "latest"
)

// Emsdk installs the Emscripten SDK: the emsdk repository is synced into
// Dir and its manager script installs and activates a release. A nil VCS
// syncs with the git found on the install environment's PATH, run under
// that environment.
type Emsdk struct {
	Dir     string
	Remote  string
	Ref     string
	Version string
	VCS     vcs.VCS
	Runner  Runner
	GOOS    string
}

// NewEmsdk returns an Emsdk for dir with upstream defaults.
func NewEmsdk(dir string, r Runner) *Emsdk {
	return &Emsdk{
		Dir:     dir,
		Remote:  EmsdkRemote,
		Ref:     EmsdkRef,
		Version: EmsdkVersion,
		Runner:  r,
		GOOS:    runtime.GOOS,
	}
}

// Script returns the path of the emsdk manager script.
func (e *Emsdk) Script() string {
	if e.GOOS == "windows" {
		return filepath.Join(e.Dir, "emsdk.bat")
	}
	return filepath.Join(e.Dir, "emsdk")
}

// Install syncs the repository, then installs and activates the release.
// A failed sync or install is a DownloadError; a failed activation is a
// VerificationError.
func (e *Emsdk) Install(ctx context.Context, env *toolenv.Environment) error {
	logger := ctxlog.FromContext(ctx)

	logger.Info("syncing emsdk", "remote", e.Remote, "ref", e.Ref, "dir", e.Dir)
	repo, err := e.syncer(env)
	if err != nil {
		return &DownloadError{URL: e.Remote, Err: err}
	}
	if err := repo.Sync(ctx, e.Remote, e.Ref, e.Dir); err != nil {
		return &DownloadError{URL: e.Remote, Err: err}
	}

	script := e.Script()
	version := e.Version
	if version == "" {
		version = EmsdkVersion
	}
	logger.Info("installing emsdk release", "version", version)
	if err := e.Runner.Run(ctx, env, script, "install", version); err != nil {
		return &DownloadError{URL: e.Remote, Err: fmt.Errorf("emsdk install %s: %w", version, err)}
	}
	if err := e.Runner.Run(ctx, env, script, "activate", version); err != nil {
		return &VerificationError{Tool: "emsdk", Path: script, Err: fmt.Errorf("activate %s: %w", version, err)}
	}
	return nil
}

func (e *Emsdk) syncer(env *toolenv.Environment) (vcs.VCS, error) {
	if e.VCS != nil {
		return e.VCS, nil
	}
	git, err := env.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git: %w", err)
	}
	return vcs.NewGitVCS(vcs.WithGitPath(git), vcs.WithEnv(env.Environ())), nil
}
