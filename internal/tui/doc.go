// Package tui provides terminal user interface components for habitat.
//
// This package uses the Bubble Tea framework to render a live view of a
// build pipeline on interactive terminals.
//
// # Build Progress
//
// The progress view consumes pipeline events from a channel until the
// channel is closed:
//
//	listener := pipeline.NewChannelListener(64)
//	unsubscribe := p.SetProgressListener(listener.Notify)
//	go func() {
//	    defer listener.Close()
//	    defer unsubscribe()
//	    result, err = p.Run(ctx, state)
//	}()
//	if err := tui.RunBuildProgress("Building demo", listener.Events()); err != nil {
//	    // tui.ErrInterrupted when the user pressed ctrl+c
//	}
//
// Each started stage gets a row with a spinner that turns into a check
// mark or a cross when the stage completes. A progress bar tracks the
// overall percentage reported by the pipeline.
//
// # Prompts
//
// Confirm asks a yes/no question through a huh form. ShouldPrompt gates
// both prompts and the live view on an attached terminal outside CI.
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - spinner and progress components
//   - github.com/charmbracelet/lipgloss - Styling
//   - github.com/charmbracelet/huh - confirmation forms
package tui
