package internal

import (
	"fmt"

	"github.com/glistengine/gipwebgl/internal/ctxlog"
	"github.com/glistengine/gipwebgl/internal/pack"
	"github.com/glistengine/gipwebgl/internal/pipeline"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var buildProject string
var buildNoPackage bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a project for the web and package it",
	Long: `Build checks the folder structure, picks a project from myglistapps,
resolves emcc, cmake and ninja (or make), configures and builds the project
with Emscripten and zips the web artifacts next to the build directory.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	addBuildFlags(buildCmd)
	rootCmd.AddCommand(buildCmd)
}

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&buildProject, "project", "p", "", "Project to build instead of asking")
	cmd.Flags().BoolVar(&buildNoPackage, "no-package", false, "Skip creating the zip package")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	if err := s.validate(ctx); err != nil {
		return err
	}
	p, err := s.project(ctx, buildProject, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logger.Info("building", "project", p.Name, "dir", p.Dir)

	r, err := newResolver(ctx, s)
	if err != nil {
		return err
	}
	tc, err := r.ResolveAll(ctx)
	if err != nil {
		return err
	}

	bc := pipeline.NewContext(s.cfg.BuildRoot, p, tc, s.cfg.Defines)
	pl := pipeline.New(bc, pipeline.WithOutput(cmd.OutOrStdout(), cmd.ErrOrStderr()))
	if err := pl.Run(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), color.Success.Sprintf("✓ Built %s in %s", p.Name, bc.BuildDir))

	if buildNoPackage {
		return nil
	}
	res, err := pack.Package(ctx, bc.BuildDir, p.Name)
	if err != nil {
		return err
	}
	printPackage(cmd, res)
	return nil
}

func printPackage(cmd *cobra.Command, res *pack.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, color.Success.Sprintf("✓ Package created: %s", res.Path))
	for _, f := range res.Files {
		fmt.Fprintf(out, "  %s (%d bytes)\n", f.Name, f.Size)
	}
	if len(res.Missing) > 0 {
		fmt.Fprintln(out, color.Warn.Sprintf("  not produced: %v", res.Missing))
	}
}
