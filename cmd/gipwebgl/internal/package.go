package internal

import (
	"github.com/glistengine/gipwebgl/internal/pack"
	"github.com/spf13/cobra"
)

var packageCmd = &cobra.Command{
	Use:   "package [project]",
	Short: "Zip the web artifacts of an already built project",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPackage,
}

func init() {
	rootCmd.AddCommand(packageCmd)
}

func runPackage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	p, err := s.project(ctx, name, cmd.InOrStdin(), cmd.OutOrStdout())
	if err != nil {
		return err
	}
	res, err := pack.Package(ctx, s.buildDir(p), p.Name)
	if err != nil {
		return err
	}
	printPackage(cmd, res)
	return nil
}
