package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/bitmage/claude-habitat-sub001/internal/build"
	"github.com/bitmage/claude-habitat-sub001/internal/config"
	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
	"github.com/bitmage/claude-habitat-sub001/internal/progress"
	"github.com/bitmage/claude-habitat-sub001/internal/tui"
)

var (
	buildRebuild bool
	buildPlain   bool
)

var buildCmd = &cobra.Command{
	Use:   "build <habitat.yaml>",
	Short: "Build a habitat, resuming from the latest valid snapshot",
	Long: `Build a habitat from its definition file.

Phases whose hashes match an existing snapshot are skipped; the build
container starts from the most advanced valid snapshot and only the
remaining phases run. Use --rebuild to ignore all snapshots.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildRebuild, "rebuild", false, "Ignore existing snapshots and run every phase")
	buildCmd.Flags().BoolVar(&buildPlain, "plain", false, "Print plain progress lines instead of the live view")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	h, err := loadHabitat(args[0])
	if err != nil {
		return err
	}

	builder, err := getBuilder()
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	opts := build.Options{Rebuild: buildRebuild}

	var result *build.Result
	if !buildPlain && !jsonOutput && tui.ShouldPrompt() {
		result, err = buildWithLiveView(ctx, builder, h, opts)
	} else {
		mode := progress.OutputNormal
		if verbose {
			mode = progress.OutputVerbose
		}
		console := progress.NewConsole(progress.WithOutput(cmd.OutOrStdout()), progress.WithMode(mode))
		opts.Listener = console.Event
		result, err = builder.Build(ctx, h, opts)
	}

	reportBuild(cmd.OutOrStdout(), h, result, err)
	return err
}

// buildWithLiveView runs the build in the background and follows it in
// the terminal UI. Aborting the UI cancels the build.
func buildWithLiveView(ctx context.Context, builder *build.Builder, h *config.Habitat, opts build.Options) (*build.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener := pipeline.NewChannelListener(256)
	opts.Listener = listener.Notify

	var (
		result   *build.Result
		buildErr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer listener.Close()
		result, buildErr = builder.Build(ctx, h, opts)
	}()

	if err := tui.RunBuildProgress("Building "+h.Name, listener.Events()); err != nil {
		cancel()
		<-done
		if errors.Is(err, tui.ErrInterrupted) {
			logWarning("Build of %s interrupted", h.Name)
			return result, buildErr
		}
		return result, err
	}

	<-done
	return result, buildErr
}

func reportBuild(w io.Writer, h *config.Habitat, result *build.Result, err error) {
	if result == nil {
		return
	}

	if err != nil {
		if result.FailedTag != "" {
			logWarning("Kept failed phase for inspection as %s", result.FailedTag)
		}
		if result.FinalTag != "" {
			fmt.Fprintf(w, "Last good snapshot: %s\n", result.FinalTag)
		}
		return
	}

	if result.UpToDate() {
		logSuccess("%s is up to date (%s)", h.Name, result.FinalTag)
		return
	}

	from := "scratch"
	if result.Match != nil {
		from = result.Match.Tag
	}
	logSuccess("Built %s as %s", h.Name, result.FinalTag)
	fmt.Fprintf(w, "  Resumed from: %s\n", from)
	fmt.Fprintf(w, "  Phases run:   %d of %d\n", len(result.Executed), len(result.Phases))
	fmt.Fprintf(w, "  Duration:     %s\n", progress.FormatDuration(result.Duration))
}
