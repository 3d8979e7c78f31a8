package internal

import (
	"fmt"

	"github.com/glistengine/gipwebgl/internal/project"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the projects that can be built",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := newSession(ctx)
	if err != nil {
		return err
	}
	if err := s.validate(ctx); err != nil {
		return err
	}
	projects, err := project.Discover(s.layout.Apps)
	if err != nil {
		return err
	}
	for _, p := range projects {
		if verbose {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", p.Name, p.Dir)
			continue
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.Name)
	}
	return nil
}
