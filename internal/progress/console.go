// Package progress renders pipeline events as plain console output.
package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/pipeline"
)

// OutputMode controls verbosity level.
type OutputMode int

const (
	// OutputMinimal shows failures and the final result only.
	OutputMinimal OutputMode = iota
	// OutputNormal adds one line per stage.
	OutputNormal
	// OutputVerbose adds stage starts and timeouts.
	OutputVerbose
)

// Console writes build progress to a writer.
type Console struct {
	mu        sync.Mutex
	out       io.Writer
	mode      OutputMode
	startTime time.Time
	lastStage string
}

// ConsoleOption configures the console reporter.
type ConsoleOption func(*Console)

// WithOutput sets the output writer.
func WithOutput(w io.Writer) ConsoleOption {
	return func(c *Console) { c.out = w }
}

// WithMode sets the output verbosity.
func WithMode(mode OutputMode) ConsoleOption {
	return func(c *Console) { c.mode = mode }
}

// NewConsole creates a new console progress reporter.
func NewConsole(opts ...ConsoleOption) *Console {
	c := &Console{
		out:       os.Stdout,
		mode:      OutputNormal,
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Event handles a pipeline event. Register it with
// Pipeline.SetProgressListener.
func (c *Console) Event(e pipeline.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch e.Type {
	case pipeline.EventPipelineStart:
		c.startTime = e.Timestamp
		if c.mode >= OutputNormal {
			fmt.Fprintf(c.out, "%s (%d stages)\n", e.Pipeline, e.TotalStages)
		}
	case pipeline.EventStageStart:
		c.lastStage = e.Stage
		if c.mode >= OutputVerbose {
			fmt.Fprintf(c.out, "%s %s...\n", c.prefix(e), e.Stage)
		}
	case pipeline.EventStageComplete:
		c.handleStageComplete(e)
	case pipeline.EventPipelineError:
		fmt.Fprintf(c.out, "[FAILED] %s: %v\n", e.Pipeline, e.Err)
	case pipeline.EventPipelineComplete:
		fmt.Fprintf(c.out, "[DONE] %s in %s\n", e.Pipeline, FormatDuration(e.Timestamp.Sub(c.startTime)))
	}
}

func (c *Console) handleStageComplete(e pipeline.Event) {
	if e.Result == pipeline.ResultFail {
		reason := "failed"
		if pipeline.IsTimeout(e.Err) {
			reason = "timed out"
		}
		fmt.Fprintf(c.out, "%s %s %s after %s\n", c.prefix(e), e.Stage, reason, FormatDuration(e.Duration))
		return
	}

	if c.mode < OutputNormal {
		return
	}
	fmt.Fprintf(c.out, "%s %s (%s)\n", c.prefix(e), e.Stage, FormatDuration(e.Duration))
}

// prefix renders "[ 40%] 2/5".
func (c *Console) prefix(e pipeline.Event) string {
	return fmt.Sprintf("[%3d%%] %d/%d", e.Progress, e.StageNumber, e.TotalStages)
}

// LastStage returns the most recently started stage.
func (c *Console) LastStage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStage
}

// FormatDuration renders d as seconds with one decimal, or minutes and
// seconds from one minute on.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= max || max < 4 {
		return s
	}
	return string(r[:max-3]) + "..."
}
