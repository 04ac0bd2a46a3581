package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newPendingCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pending <project>",
		Short: "List the notifications waiting to be resent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := ctx.ensureModule(cmd)
			if err != nil {
				return err
			}
			listing, err := module.Manager().Pending(commandContextOf(cmd), args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, listing)
			}

			out := cmd.OutOrStdout()
			if listing.Total() == 0 {
				fmt.Fprintf(out, "No pending notification for %s\n", listing.Project)
				return nil
			}
			rows := make([][]string, 0, listing.Total())
			for _, build := range listing.Builds {
				for _, n := range build.Notifications {
					rows = append(rows, []string{strconv.Itoa(build.Build), string(n.Action), n.ModuleName, n.ModuleVersion, n.PayloadLocator})
				}
			}
			fmt.Fprintln(out, renderTable(tableSpec{
				headers: []string{"Build", "Action", "Module", "Version", "Payload"},
				numeric: []int{0},
				footer:  fmt.Sprintf("%d pending across %d builds", listing.Total(), len(listing.Builds)),
			}, rows))

			names := make([]string, 0, len(listing.ModulesInfo))
			for name := range listing.ModulesInfo {
				names = append(names, name)
			}
			sort.Strings(names)
			modules := make([][]string, 0, len(names))
			for _, name := range names {
				modules = append(modules, []string{name, listing.ModulesInfo[name]})
			}
			fmt.Fprintln(out, renderTable(tableSpec{headers: []string{"Module", "Version"}}, modules))
			return nil
		},
	}
}
