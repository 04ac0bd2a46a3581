package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProjectsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List the projects of the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := ctx.ensureModule(cmd)
			if err != nil {
				return err
			}
			names, err := module.Manager().Projects()
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				if names == nil {
					names = []string{}
				}
				return writeJSON(cmd, map[string]any{"projects": names})
			}
			out := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
