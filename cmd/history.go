package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <name>",
	Short: "Display the build history of a habitat",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	events, err := builder.History().Events(name)
	if err != nil {
		return fmt.Errorf("failed to read build history: %w", err)
	}

	if len(events) == 0 {
		logInfo("No history found for habitat %s", name)
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if jsonOutput {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		subject := e.Habitat
		switch {
		case e.Tag != "":
			subject = e.Tag
		case e.Phase != "":
			subject = e.Phase
		}
		if e.Details != "" {
			fmt.Fprintf(out, "[%s] %-14s %s (%s)\n", ts, e.Type, subject, e.Details)
		} else {
			fmt.Fprintf(out, "[%s] %-14s %s\n", ts, e.Type, subject)
		}
	}

	return nil
}
