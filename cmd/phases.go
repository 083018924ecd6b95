package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bitmage/claude-habitat-sub001/internal/build"
)

var phasesCmd = &cobra.Command{
	Use:   "phases <habitat.yaml>",
	Short: "Show phase hashes and snapshot status",
	Args:  cobra.ExactArgs(1),
	RunE:  runPhases,
}

func init() {
	rootCmd.AddCommand(phasesCmd)
}

// phaseRow is the JSON form of one phase status.
type phaseRow struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Hash   string `json:"hash"`
	Tag    string `json:"tag"`
	Status string `json:"status"`
}

func runPhases(cmd *cobra.Command, args []string) error {
	h, err := loadHabitat(args[0])
	if err != nil {
		return err
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	plan, err := builder.Plan(commandContext(cmd), h)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		rows := make([]phaseRow, 0, len(plan.Status))
		for _, st := range plan.Status {
			rows = append(rows, phaseRow{ID: st.Phase.ID, Name: st.Phase.Name, Hash: st.Phase.Hash, Tag: st.Tag, Status: statusName(st)})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tPHASE\tHASH\tSNAPSHOT")
	fmt.Fprintln(w, "-\t-----\t----\t--------")
	for _, st := range plan.Status {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", st.Phase.ID, st.Phase.Name, shortHash(st.Phase.Hash), formatPhaseStatus(st))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	resume := plan.ResumeFrom()
	if resume >= len(plan.Phases) {
		fmt.Fprintf(out, "\n%s is up to date\n", plan.Habitat)
	} else {
		fmt.Fprintf(out, "\nNext build starts at phase %s\n", phaseLabel(plan.Phases[resume]))
	}
	return nil
}

func statusName(st build.PhaseStatus) string {
	switch {
	case !st.Exists:
		return "missing"
	case st.Failed:
		return "failed"
	case st.Valid:
		return "cached"
	default:
		return "stale"
	}
}

func formatPhaseStatus(st build.PhaseStatus) string {
	switch statusName(st) {
	case "cached":
		return "✓ cached"
	case "stale":
		return "✗ stale"
	case "failed":
		return "✗ failed"
	default:
		return "○ missing"
	}
}
