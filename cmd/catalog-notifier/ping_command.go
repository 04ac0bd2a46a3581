package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCommand(ctx *commandContext) *cobra.Command {
	var serverFlag string

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that a catalog server answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := ctx.ensureModule(cmd)
			if err != nil {
				return err
			}
			server, ok, err := module.Manager().Ping(commandContextOf(cmd), serverFlag)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{
					"server":    server.Name,
					"address":   server.Address(),
					"available": ok,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %s\n", server.Name, server.Address(), availabilityLabel(ok))
			if !ok {
				return fmt.Errorf("catalog server %s is not available", server.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&serverFlag, "server", "s", "", "Catalog server name (defaults to catalog.default)")
	return cmd
}
