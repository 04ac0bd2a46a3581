package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

type resendRow struct {
	Notification string `json:"notification"`
	Build        int    `json:"build"`
	Origin       string `json:"origin"`
	Outcome      string `json:"outcome"`
	Error        string `json:"error,omitempty"`
}

func newResendCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resend <project>",
		Short: "Retry every outstanding notification of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			module, err := ctx.ensureModule(cmd)
			if err != nil {
				return err
			}
			report, err := module.Manager().Resend(commandContextOf(cmd), args[0])
			if err != nil {
				return err
			}

			rows := make([]resendRow, 0, len(report.Items))
			for _, item := range report.Items {
				row := resendRow{
					Notification: item.Identity.String(),
					Origin:       string(item.Origin),
					Outcome:      string(item.Outcome),
					Error:        errorText(item.Err),
				}
				if item.Build != nil {
					row.Build = item.Build.Number
				}
				rows = append(rows, row)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"project": report.Project, "items": rows})
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "Nothing to resend for %s\n", report.Project)
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, row := range rows {
				table = append(table, []string{
					strconv.Itoa(row.Build),
					row.Notification,
					row.Origin,
					outcomeLabel(domain.Outcome(row.Outcome)),
					row.Error,
				})
			}
			fmt.Fprintln(out, renderTable(tableSpec{headers: []string{"Build", "Notification", "Origin", "Outcome", "Error"}, numeric: []int{0}}, table))
			fmt.Fprintf(out, "%d delivered, %d postponed, %d skipped\n",
				report.Count(domain.OutcomeDelivered),
				report.Count(domain.OutcomePostponed),
				report.Count(domain.OutcomeSkipped),
			)
			return nil
		},
	}
}
