package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableSpec describes a rendered listing. Numeric columns are right aligned.
type tableSpec struct {
	headers []string
	numeric []int
	footer  string
}

func renderTable(spec tableSpec, rows [][]string) string {
	if len(spec.headers) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(spec.headers, len(spec.headers)))
	for _, row := range rows {
		tw.AppendRow(toRow(row, len(spec.headers)))
	}
	if spec.footer != "" {
		tw.SetCaption(spec.footer)
	}

	configs := make([]table.ColumnConfig, 0, len(spec.numeric))
	for _, idx := range spec.numeric {
		configs = append(configs, table.ColumnConfig{
			Number:      idx + 1,
			Align:       text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func toRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}
