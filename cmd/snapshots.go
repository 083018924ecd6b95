package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect habitat snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list <name>",
	Short: "List the snapshots of a habitat",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsList,
}

var snapshotsStatsCmd = &cobra.Command{
	Use:   "stats <name>",
	Short: "Count the snapshots of a habitat by result",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsStats,
}

func init() {
	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsStatsCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	summaries, err := builder.Store().List(commandContext(cmd), name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		logInfo("No snapshots found for habitat %s", name)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TAG\tCREATED")
	fmt.Fprintln(w, "---\t-------")
	for _, s := range summaries {
		created := "-"
		if !s.CreatedAt.IsZero() {
			created = s.CreatedAt.Local().Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(w, "%s\t%s\n", s.Tag, created)
	}
	return w.Flush()
}

func runSnapshotsStats(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	stats, err := builder.Store().Stats(commandContext(cmd), name)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintln(cmd.OutOrStdout(), stats.Describe())
	return nil
}
