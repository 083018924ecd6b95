package pipeline

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType names a pipeline lifecycle event.
type EventType string

const (
	EventPipelineStart    EventType = "pipeline-start"
	EventStageStart       EventType = "stage-start"
	EventStageComplete    EventType = "stage-complete"
	EventPipelineError    EventType = "pipeline-error"
	EventPipelineComplete EventType = "pipeline-complete"
)

// Result is the outcome reported by stage-complete.
type Result string

const (
	ResultPass Result = "pass"
	ResultFail Result = "fail"
)

// Event is a progress notification. Fields irrelevant to Type are zero.
type Event struct {
	Type     EventType
	Pipeline string
	Stage    string
	// StageNumber is 1-based.
	StageNumber int
	TotalStages int
	// Progress is a percentage computed from stage counts.
	Progress   int
	Duration   time.Duration
	Result     Result
	Err        error
	NoSnapshot bool
	// Output is the final value on pipeline-complete.
	Output    any
	Timestamp time.Time
}

// Listener receives events synchronously on the run goroutine.
type Listener func(Event)

// ChannelListener turns the event callback into a buffered stream.
// When the buffer is full new events are dropped so the run never blocks
// on a slow consumer.
type ChannelListener struct {
	mu      sync.Mutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64
}

// NewChannelListener creates a stream buffering up to size events.
func NewChannelListener(size int) *ChannelListener {
	if size < 1 {
		size = 1
	}
	return &ChannelListener{ch: make(chan Event, size)}
}

// Notify enqueues e without blocking. Register it with SetProgressListener.
func (c *ChannelListener) Notify(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.dropped.Add(1)
		return
	}

	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Events returns the receive side of the stream.
func (c *ChannelListener) Events() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded.
func (c *ChannelListener) Dropped() int64 {
	return c.dropped.Load()
}

// Close ends the stream. Later events are dropped.
func (c *ChannelListener) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}
