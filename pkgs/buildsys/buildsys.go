package buildsys

import "context"

// BuildSystem captures shared capabilities of build helpers: a configure
// step that generates native build files and a build step that runs them.
type BuildSystem interface {
	// Basic paths.
	Source(dir string)
	BuildDir(dir string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}
