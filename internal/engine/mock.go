package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// Mock is an in-memory implementation of Engine for testing
type Mock struct {
	mu sync.RWMutex

	// Images maps repository:tag to stored images
	Images map[string]*MockImage

	// Containers maps container IDs to running mock containers
	Containers map[string]*MockContainer

	// Errors allows injecting errors for specific operations
	Errors map[string]error

	// ExecFunc, when set, decides the outcome of Exec calls
	ExecFunc func(ctx context.Context, container string, command []string, opts ExecOptions) (*ExecResult, error)

	// Now stamps committed images; defaults to time.Now
	Now func() time.Time

	// CallLog records all method calls for verification
	CallLog []MockCall

	nextID int
}

// MockImage is an image held by the mock engine.
type MockImage struct {
	Ref       string
	Labels    map[string]string
	Changes   []string
	CreatedAt time.Time
	// FromImage is the image the committed container was started from.
	FromImage string
}

// MockContainer is a container held by the mock engine.
type MockContainer struct {
	ID     string
	Name   string
	Image  string
	Execs  [][]string
	Copies map[string]string // dest -> src
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Args   []interface{}
}

// NewMock creates a new mock engine
func NewMock() *Mock {
	return &Mock{
		Images:     make(map[string]*MockImage),
		Containers: make(map[string]*MockContainer),
		Errors:     make(map[string]error),
		CallLog:    make([]MockCall, 0),
	}
}

func (m *Mock) record(method string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Args: args})
}

func (m *Mock) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// SetError sets an error to be returned for a specific operation
func (m *Mock) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// AddImage seeds an image with the given labels.
func (m *Mock) AddImage(ref string, labels map[string]string, createdAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Images[ref] = &MockImage{Ref: ref, Labels: copyLabels(labels), CreatedAt: createdAt}
}

// Image returns a stored image.
func (m *Mock) Image(ref string) (*MockImage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.Images[ref]
	return img, ok
}

// GetCallsFor returns all calls for a specific method
func (m *Mock) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Name returns the engine identifier
func (m *Mock) Name() string {
	return "mock"
}

// Commit snapshots a container into an image
func (m *Mock) Commit(ctx context.Context, container, tag string, opts CommitOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Commit", container, tag, opts)

	if err, ok := m.Errors["Commit"]; ok {
		return err
	}

	c, ok := m.Containers[container]
	if !ok {
		return fmt.Errorf("no such container: %s", container)
	}

	// Like docker, the new image keeps the labels of the source image.
	labels := make(map[string]string)
	if src, ok := m.Images[c.Image]; ok {
		for k, v := range src.Labels {
			labels[k] = v
		}
	}
	for k, v := range opts.Labels {
		labels[k] = v
	}

	m.Images[tag] = &MockImage{
		Ref:       tag,
		Labels:    labels,
		Changes:   append([]string(nil), opts.Changes...),
		CreatedAt: m.now(),
		FromImage: c.Image,
	}
	return nil
}

// InspectLabels returns the labels of an image
func (m *Mock) InspectLabels(ctx context.Context, tag string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InspectLabels", tag)

	if err, ok := m.Errors["InspectLabels"]; ok {
		return nil, err
	}

	img, ok := m.Images[tag]
	if !ok {
		return nil, ErrNoSuchImage
	}
	return copyLabels(img.Labels), nil
}

// RemoveImage deletes an image
func (m *Mock) RemoveImage(ctx context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveImage", tag)

	if err, ok := m.Errors["RemoveImage"]; ok {
		return err
	}

	if _, ok := m.Images[tag]; !ok {
		return ErrNoSuchImage
	}
	delete(m.Images, tag)
	return nil
}

// ListImages returns all images in a repository, sorted by tag
func (m *Mock) ListImages(ctx context.Context, repository string) ([]Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListImages", repository)

	if err, ok := m.Errors["ListImages"]; ok {
		return nil, err
	}

	var images []Image
	for ref, img := range m.Images {
		repo, tag, ok := strings.Cut(ref, ":")
		if !ok || repo != repository {
			continue
		}
		images = append(images, Image{Repository: repo, Tag: tag, CreatedAt: img.CreatedAt})
	}
	sort.Slice(images, func(i, j int) bool { return images[i].Tag < images[j].Tag })
	return images, nil
}

// RunContainer starts a mock container
func (m *Mock) RunContainer(ctx context.Context, opts RunOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RunContainer", opts)

	if err, ok := m.Errors["RunContainer"]; ok {
		return "", err
	}

	if _, ok := m.Images[opts.Image]; !ok && strings.HasPrefix(opts.Image, "habitat-") {
		return "", ErrNoSuchImage
	}

	m.nextID++
	id := fmt.Sprintf("mock-%d", m.nextID)
	m.Containers[id] = &MockContainer{
		ID:     id,
		Name:   opts.Name,
		Image:  opts.Image,
		Copies: make(map[string]string),
	}
	return id, nil
}

// Exec records a command and returns ExecFunc's result, or success
func (m *Mock) Exec(ctx context.Context, container string, command []string, opts ExecOptions) (*ExecResult, error) {
	m.mu.Lock()
	m.record("Exec", container, command, opts)

	if err, ok := m.Errors["Exec"]; ok {
		m.mu.Unlock()
		return nil, err
	}

	c, ok := m.Containers[container]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("no such container: %s", container)
	}
	c.Execs = append(c.Execs, command)
	hook := m.ExecFunc
	m.mu.Unlock()

	if opts.Stdin != nil {
		if _, err := io.Copy(io.Discard, opts.Stdin); err != nil {
			return nil, err
		}
	}

	// The hook runs unlocked so it may block until ctx is done.
	if hook != nil {
		return hook(ctx, container, command, opts)
	}
	return &ExecResult{}, nil
}

// CopyTo records a copy into a container
func (m *Mock) CopyTo(ctx context.Context, container, src, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CopyTo", container, src, dest)

	if err, ok := m.Errors["CopyTo"]; ok {
		return err
	}

	c, ok := m.Containers[container]
	if !ok {
		return fmt.Errorf("no such container: %s", container)
	}
	c.Copies[dest] = src
	return nil
}

// RemoveContainer removes a mock container
func (m *Mock) RemoveContainer(ctx context.Context, container string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RemoveContainer", container)

	if err, ok := m.Errors["RemoveContainer"]; ok {
		return err
	}

	delete(m.Containers, container)
	return nil
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// Ensure Mock implements Engine
var _ Engine = (*Mock)(nil)
