// Package history records build lifecycle events per habitat.
// Events are stored as JSON Lines (JSONL) files, one per habitat.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/bitmage/claude-habitat-sub001/internal/system"
)

// EventType classifies a build event.
type EventType string

const (
	EventBuildStart    EventType = "build-start"
	EventBuildComplete EventType = "build-complete"
	EventBuildFailed   EventType = "build-failed"
	EventSnapshot      EventType = "snapshot"
	EventPurge         EventType = "purge"
)

// Event represents a single history entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Habitat   string    `json:"habitat"`
	// RunID ties together the events of one build.
	RunID   string `json:"runId,omitempty"`
	Phase   string `json:"phase,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Details string `json:"details,omitempty"`
}

// Log writes and reads build events.
// Events are stored in {dir}/{habitat}.jsonl.
type Log struct {
	dir string
	fs  system.FileSystem
	now func() time.Time
}

// NewLog creates a history log rooted at dir.
func NewLog(dir string, fsys system.FileSystem) *Log {
	if fsys == nil {
		fsys = system.DefaultFS()
	}
	return &Log{dir: dir, fs: fsys, now: time.Now}
}

// path returns the path to the JSONL event log for a habitat.
func (l *Log) path(habitat string) string {
	return filepath.Join(l.dir, habitat+".jsonl")
}

// Record appends an event to the habitat's history.
func (l *Log) Record(event Event) error {
	if event.Habitat == "" {
		return fmt.Errorf("history event requires a habitat")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}

	if err := l.fs.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := l.fs.AppendFile(l.path(event.Habitat), append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// Events reads all events for a habitat in chronological order.
func (l *Log) Events(habitat string) ([]Event, error) {
	data, err := l.fs.ReadFile(l.path(habitat))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	var events []Event
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			continue // Skip malformed lines
		}
		events = append(events, event)
	}

	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("error reading history: %w", err)
	}

	return events, nil
}

// Runs groups events by run ID, preserving first-seen order.
func Runs(events []Event) [][]Event {
	var (
		order []string
		runs  = make(map[string][]Event)
	)
	for _, e := range events {
		if e.RunID == "" {
			continue
		}
		if _, ok := runs[e.RunID]; !ok {
			order = append(order, e.RunID)
		}
		runs[e.RunID] = append(runs[e.RunID], e)
	}

	out := make([][]Event, 0, len(order))
	for _, id := range order {
		out = append(out, runs[id])
	}
	return out
}

// Remove deletes the history of a habitat.
func (l *Log) Remove(habitat string) error {
	if err := l.fs.Remove(l.path(habitat)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
