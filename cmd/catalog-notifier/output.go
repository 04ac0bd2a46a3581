package main

import (
	"encoding/json"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-catalog-notifier/pkg/domain"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outcomeLabel(outcome domain.Outcome) string {
	switch outcome {
	case domain.OutcomeDelivered:
		return color.New(color.FgHiGreen).Sprint(string(outcome))
	case domain.OutcomePostponed:
		return color.New(color.FgYellow).Sprint(string(outcome))
	case domain.OutcomeSkipped:
		return color.New(color.FgHiBlue).Sprint(string(outcome))
	default:
		return string(outcome)
	}
}

func availabilityLabel(ok bool) string {
	if ok {
		return color.New(color.FgHiGreen).Sprint("available")
	}
	return color.New(color.FgRed).Sprint("unavailable")
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
