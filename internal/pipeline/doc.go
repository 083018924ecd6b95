// Package pipeline runs an ordered list of stages with per-stage timeouts,
// progress events and fail-fast abort.
//
// # Stages
//
// A stage is a name, a Handler and StageOptions. Handlers receive the value
// returned by the previous stage (or the initial value) and return the
// value for the next. Stages never run in parallel.
//
//	p := pipeline.New[*State]("build demo").
//	    AddStage("users", usersHandler, pipeline.WithTimeout(2*time.Minute)).
//	    AddStage("snapshot users", snapshotHandler)
//	if err := p.Err(); err != nil { ... }
//	final, err := p.Run(ctx, initial)
//
// # Events
//
// Each run emits, in order:
//
//	pipeline-start
//	stage-start / stage-complete   (per stage)
//	pipeline-error                 (once, on the first failure)
//	pipeline-complete              (only when every stage passed)
//
// Progress is round(completed/total*100): stage-start reports the stages
// finished before it, stage-complete includes it.
//
// A pipeline has a single listener slot. SetProgressListener replaces the
// current listener and returns an unsubscribe func. For consumers on
// another goroutine, ChannelListener buffers events and drops them when
// full instead of blocking the run.
//
// # Timeouts
//
// A handler races a timer of its stage timeout (DefaultTimeout unless
// set). When the timer wins the stage fails, the handler's context is
// cancelled and any late result is discarded. Handlers that start
// external work must tolerate being abandoned.
//
// # Registry
//
// Registry resolves stage names to handlers when a pipeline is built, so an
// unknown name fails before anything runs.
package pipeline
