package internal

import (
	"fmt"
	"text/tabwriter"

	"github.com/glistengine/gipwebgl/internal/toolchain"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Find or install the build tools without building",
	Long: `Resolve runs the same tool lookup as build (search path, vendor directory,
local cache, then download) and prints where each tool was found.`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	if err := s.validate(ctx); err != nil {
		return err
	}
	r, err := newResolver(ctx, s)
	if err != nil {
		return err
	}
	tc, err := r.ResolveAll(ctx)
	if err != nil {
		return err
	}
	printToolchain(cmd, tc)
	return nil
}

func printToolchain(cmd *cobra.Command, tc *toolchain.Toolchain) {
	out := cmd.OutOrStdout()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tTOOL\tVERSION\tFOUND BY\tPATH")
	for _, res := range []*toolchain.Resolution{tc.SDK, tc.Generator, tc.Builder} {
		version := res.Version
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", res.Kind, res.Spec.Name, version, res.Tier, res.Path)
	}
	tw.Flush()
	fmt.Fprintln(out, color.Info.Sprintf("generator: %s", tc.GeneratorName()))
	fmt.Fprintln(out, color.Info.Sprintf("toolchain file: %s", tc.ToolchainFile))
}
