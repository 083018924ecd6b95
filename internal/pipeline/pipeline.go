package pipeline

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
	"github.com/bitmage/claude-habitat-sub001/internal/logging"
)

// Pipeline runs registered stages in order, threading a value of type T
// from one stage to the next.
type Pipeline[T any] struct {
	name   string
	stages []Stage[T]
	err    error
	now    func() time.Time

	mu         sync.Mutex
	listener   Listener
	generation uint64
}

// New creates an empty pipeline.
func New[T any](name string) *Pipeline[T] {
	p := &Pipeline[T]{
		name: name,
		now:  time.Now,
	}
	if name == "" {
		p.err = herrors.Validation("pipeline name is required")
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline[T]) Name() string {
	return p.name
}

// AddStage registers a stage. An empty name or nil handler is recorded
// and reported by Err and Run; the pipeline then never runs.
func (p *Pipeline[T]) AddStage(name string, handler Handler[T], opts ...StageOption) *Pipeline[T] {
	if p.err != nil {
		return p
	}
	if name == "" {
		p.err = herrors.Validation("stage %d: name is required", len(p.stages)+1)
		return p
	}
	if handler == nil {
		p.err = herrors.Validation("stage %q: handler is required", name)
		return p
	}

	options := StageOptions{Timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	p.stages = append(p.stages, Stage[T]{Name: name, Handler: handler, Options: options})
	return p
}

// Err returns the first registration error.
func (p *Pipeline[T]) Err() error {
	return p.err
}

// Stages returns the registered stages in order.
func (p *Pipeline[T]) Stages() []Stage[T] {
	return append([]Stage[T](nil), p.stages...)
}

// SetProgressListener installs l as the only listener, replacing any
// previous one. The returned func removes l; it does nothing once l has
// been replaced.
func (p *Pipeline[T]) SetProgressListener(l Listener) (unsubscribe func()) {
	p.mu.Lock()
	p.generation++
	gen := p.generation
	p.listener = l
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.generation == gen {
			p.listener = nil
		}
	}
}

func (p *Pipeline[T]) emit(e Event) {
	p.mu.Lock()
	l := p.listener
	p.mu.Unlock()

	if l == nil {
		return
	}
	e.Pipeline = p.name
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now()
	}
	l(e)
}

// Run executes every stage in registration order, feeding each stage the
// previous stage's output. The first failing stage aborts the run.
func (p *Pipeline[T]) Run(ctx context.Context, initial T) (T, error) {
	if p.err != nil {
		var zero T
		return zero, p.err
	}

	total := len(p.stages)
	start := p.now()
	logging.Debug("pipeline starting", "pipeline", p.name, "stages", total)
	p.emit(Event{Type: EventPipelineStart, TotalStages: total})

	current := initial
	for i, stage := range p.stages {
		number := i + 1

		p.emit(Event{
			Type:        EventStageStart,
			Stage:       stage.Name,
			StageNumber: number,
			TotalStages: total,
			Progress:    percent(number-1, total),
			NoSnapshot:  stage.Options.NoSnapshot,
		})
		logging.Debug("stage starting", "pipeline", p.name, "stage", stage.Name, "number", number, "timeout", stage.Options.Timeout)

		stageStart := p.now()
		out, err := p.runStage(ctx, stage, current)
		duration := p.now().Sub(stageStart)

		complete := Event{
			Type:        EventStageComplete,
			Stage:       stage.Name,
			StageNumber: number,
			TotalStages: total,
			Progress:    percent(number, total),
			Duration:    duration,
			Result:      ResultPass,
			NoSnapshot:  stage.Options.NoSnapshot,
		}
		if err != nil {
			complete.Result = ResultFail
			complete.Err = err
		}
		p.emit(complete)

		if err != nil {
			stageErr := &StageError{
				Pipeline:    p.name,
				Stage:       stage.Name,
				StageNumber: number,
				Elapsed:     p.now().Sub(start),
				Err:         err,
			}
			logging.Debug("stage failed", "pipeline", p.name, "stage", stage.Name, "error", err)
			p.emit(Event{
				Type:        EventPipelineError,
				Stage:       stage.Name,
				StageNumber: number,
				TotalStages: total,
				Err:         stageErr,
			})
			var zero T
			return zero, stageErr
		}

		logging.Debug("stage complete", "pipeline", p.name, "stage", stage.Name, "duration", duration)
		current = out
	}

	p.emit(Event{Type: EventPipelineComplete, TotalStages: total, Progress: 100, Output: current})
	logging.Debug("pipeline complete", "pipeline", p.name, "duration", p.now().Sub(start))
	return current, nil
}

type stageResult[T any] struct {
	out T
	err error
}

// runStage races the handler against the stage timeout. On timeout the
// handler's context is cancelled and its eventual result is dropped.
func (p *Pipeline[T]) runStage(ctx context.Context, stage Stage[T], in T) (T, error) {
	stageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan stageResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- stageResult[T]{err: fmt.Errorf("stage %s panicked: %v", stage.Name, r)}
			}
		}()
		out, err := stage.Handler(stageCtx, in)
		done <- stageResult[T]{out: out, err: err}
	}()

	timer := time.NewTimer(stage.Options.Timeout)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.out, r.err
	case <-timer.C:
		return zero, herrors.StageTimeout(stage.Name, stage.Options.Timeout)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func percent(n, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}
