package pipeline

import (
	"sort"
	"strings"

	herrors "github.com/bitmage/claude-habitat-sub001/internal/errors"
)

// Registry maps stage names to handlers so pipelines can be assembled
// from configuration.
type Registry[T any] struct {
	handlers map[string]Handler[T]
}

// NewRegistry creates an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{handlers: make(map[string]Handler[T])}
}

// Register adds a named handler, replacing any previous one.
func (r *Registry[T]) Register(name string, handler Handler[T]) *Registry[T] {
	r.handlers[name] = handler
	return r
}

// Names returns the registered names, sorted.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StageRef names a registered handler plus its per-stage options.
type StageRef struct {
	Name    string
	Options []StageOption
}

// Build resolves every ref up front and returns a pipeline, or a
// validation error naming the first unknown handler.
func (r *Registry[T]) Build(name string, refs []StageRef) (*Pipeline[T], error) {
	p := New[T](name)
	for _, ref := range refs {
		h, ok := r.handlers[ref.Name]
		if !ok {
			return nil, herrors.Validation("unknown stage %q (registered: %s)", ref.Name, strings.Join(r.Names(), ", "))
		}
		p.AddStage(ref.Name, h, ref.Options...)
	}
	if err := p.Err(); err != nil {
		return nil, err
	}
	return p, nil
}
