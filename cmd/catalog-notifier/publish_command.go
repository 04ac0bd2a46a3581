package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

type publishRow struct {
	Notification string `json:"notification"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <project> <build>",
		Short: "Send the catalog notifications of a finished build",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			build, err := strconv.Atoi(args[1])
			if err != nil || build <= 0 {
				return fmt.Errorf("invalid build number %q", args[1])
			}
			module, err := ctx.ensureModule(cmd)
			if err != nil {
				return err
			}
			report, err := module.PublishBuild(commandContextOf(cmd), args[0], build)
			if err != nil {
				return err
			}

			if ctx.jsonOutput() {
				rows := make([]publishRow, 0, len(report.Batch.Results))
				for _, res := range report.Batch.Results {
					rows = append(rows, publishRow{
						Notification: res.Notification.String(),
						Outcome:      string(res.Outcome),
						Error:        errorText(res.Err),
					})
				}
				return writeJSON(cmd, map[string]any{
					"project": report.Project,
					"build":   report.Build,
					"skipped": report.Skipped(),
					"reason":  report.SkipReason,
					"results": rows,
				})
			}

			out := cmd.OutOrStdout()
			if report.Skipped() {
				fmt.Fprintf(out, "Skipped %s #%d: %s\n", report.Project, report.Build, report.SkipReason)
				return nil
			}
			if len(report.Batch.Results) == 0 {
				fmt.Fprintf(out, "No notification to send for %s #%d\n", report.Project, report.Build)
				return nil
			}
			rows := make([][]string, 0, len(report.Batch.Results))
			for i, res := range report.Batch.Results {
				rows = append(rows, []string{
					strconv.Itoa(i + 1),
					res.Notification.String(),
					outcomeLabel(res.Outcome),
					errorText(res.Err),
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{headers: []string{"#", "Notification", "Outcome", "Error"}, numeric: []int{0}}, rows))
			return nil
		},
	}
}
