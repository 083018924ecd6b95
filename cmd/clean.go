package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/snapshot"
	"github.com/bitmage/claude-habitat-sub001/internal/tui"
)

var (
	cleanAll    bool
	cleanPhases []int
	cleanFailed bool
	cleanYes    bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean <name>",
	Short: "Remove habitat snapshots",
	Long: `Remove snapshots of a habitat. Exactly one mode must be given:

  --all        remove every snapshot (asks for confirmation unless --yes)
  --phase N    remove the snapshot of phase N (repeatable)
  --failed     remove snapshots of failed phases`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove every snapshot of the habitat")
	cleanCmd.Flags().IntSliceVar(&cleanPhases, "phase", nil, "Remove the snapshot of the given phase number")
	cleanCmd.Flags().BoolVar(&cleanFailed, "failed", false, "Remove snapshots of failed phases")
	cleanCmd.Flags().BoolVarP(&cleanYes, "yes", "y", false, "Do not ask for confirmation")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	name := args[0]
	if err := validateName(name); err != nil {
		return err
	}

	opts := snapshot.RemoveOptions{All: cleanAll, FailedOnly: cleanFailed}
	for _, n := range cleanPhases {
		p, err := phaseByNumber(n)
		if err != nil {
			return err
		}
		opts.Phases = append(opts.Phases, p)
	}

	if cleanAll && !cleanYes {
		if !tui.ShouldPrompt() {
			return errors.Validation("refusing to remove all snapshots of %s without --yes", name)
		}
		ok, err := tui.Confirm(fmt.Sprintf("Remove all snapshots of %s?", name), false)
		if err != nil {
			return err
		}
		if !ok {
			logInfo("Aborted")
			return nil
		}
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	removed, err := builder.Clean(commandContext(cmd), name, opts)
	for _, tag := range removed {
		fmt.Fprintf(cmd.OutOrStdout(), "  removed %s\n", tag)
	}
	if err != nil {
		return err
	}

	if len(removed) == 0 {
		logInfo("No matching snapshots for habitat %s", name)
		return nil
	}
	logSuccess("Removed %d snapshot(s) of %s", len(removed), name)
	return nil
}
