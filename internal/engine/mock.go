// internal/engine/mock.go
package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Mock is a manifest driven implementation of Engine for tests and for
// running the service without the onnxruntime shared library.
//
// Outputs either echo one of the inputs or return a constant tensor. Unlike
// the session facade, Mock validates feed names exactly, so name errors
// surface as ErrUnknownInput or ErrMissingInput.
type Mock struct {
	// ShouldError if true, Run will return an error
	ShouldError bool
	// ErrorMessage is the error message to return when ShouldError is true
	ErrorMessage string
	// CallCount tracks the number of times Run was called
	CallCount int
	// Closed is set once Close has been called
	Closed bool

	opts        Options
	manifest    *Manifest
	initialized bool
	trace       []traceEvent
	started     time.Time
}

type traceEvent struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat"`
	Phase     string         `json:"ph"`
	Timestamp int64          `json:"ts"`
	Duration  int64          `json:"dur"`
	PID       int            `json:"pid"`
	TID       int            `json:"tid"`
	Args      map[string]any `json:"args,omitempty"`
}

// NewMock creates an unloaded Mock. A nil opts selects defaults.
func NewMock(opts *Options) *Mock {
	m := &Mock{started: time.Now()}
	if opts != nil {
		m.opts = *opts
	}
	return m
}

// MockFactory is a Factory producing Mock engines.
func MockFactory(opts *Options) (Engine, error) {
	return NewMock(opts), nil
}

// LoadModel reads a manifest file and initializes the mock.
func (m *Mock) LoadModel(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read model %s: %w", path, err)
	}
	return m.ReadBytes(data)
}

// ReadBytes parses a manifest and initializes the mock.
func (m *Mock) ReadBytes(data []byte) error {
	manifest, err := ParseManifest(data)
	if err != nil {
		return err
	}
	m.manifest = manifest
	m.initialized = true
	return nil
}

// LoadModelNoInit reads the manifest without initializing. Run fails with
// ErrNotInitialized afterwards.
func (m *Mock) LoadModelNoInit(token PreparsedModel) error {
	if err := m.LoadModel(token.Path); err != nil {
		return err
	}
	m.initialized = false
	return nil
}

// InputsMeta returns the declared inputs.
func (m *Mock) InputsMeta() []ValueInfo {
	if m.manifest == nil {
		return nil
	}
	return CloneValueInfos(m.manifest.Inputs)
}

// OutputsMeta returns the declared outputs.
func (m *Mock) OutputsMeta() []ValueInfo {
	if m.manifest == nil {
		return nil
	}
	infos := make([]ValueInfo, len(m.manifest.Outputs))
	for i, out := range m.manifest.Outputs {
		infos[i] = out.ValueInfo
	}
	return CloneValueInfos(infos)
}

// ModelMeta returns the declared model metadata.
func (m *Mock) ModelMeta() ModelMetadata {
	if m.manifest == nil {
		return ModelMetadata{}
	}
	return m.manifest.Metadata.Clone()
}

// Run validates the feed against the manifest and produces the requested
// outputs in request order.
func (m *Mock) Run(outputNames []string, feed Feed, opts *RunOptions) ([]*Tensor, error) {
	m.CallCount++
	start := time.Now()

	if m.ShouldError {
		if m.ErrorMessage != "" {
			return nil, fmt.Errorf("%s", m.ErrorMessage)
		}
		return nil, fmt.Errorf("mock engine error")
	}
	if m.manifest == nil {
		return nil, ErrNotLoaded
	}
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if opts != nil && opts.Terminate {
		return nil, ErrTerminated
	}

	declared := make(map[string]ValueInfo, len(m.manifest.Inputs))
	for _, in := range m.manifest.Inputs {
		declared[in.Name] = in
	}
	for name, t := range feed {
		info, ok := declared[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownInput, name)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		if t.Type != info.Type {
			return nil, fmt.Errorf("%w: input %q expects %s, got %s", ErrInvalidTensor, name, info.Type, t.Type)
		}
		if !info.Shape.Accepts(t.Shape) {
			return nil, fmt.Errorf("%w: input %q expects shape %s, got %v", ErrInvalidTensor, name, info.Shape, t.Shape)
		}
	}
	for _, in := range m.manifest.Inputs {
		if _, ok := feed[in.Name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingInput, in.Name)
		}
	}

	results := make([]*Tensor, 0, len(outputNames))
	for _, name := range outputNames {
		out, ok := m.output(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownOutput, name)
		}
		if out.From != "" {
			results = append(results, feed[out.From].Clone())
		} else {
			results = append(results, out.Value.Clone())
		}
	}

	if m.opts.EnableProfiling {
		args := map[string]any{"outputs": outputNames}
		if opts != nil && opts.Tag != "" {
			args["tag"] = opts.Tag
		}
		m.trace = append(m.trace, traceEvent{
			Name:      "model_run",
			Category:  "Session",
			Phase:     "X",
			Timestamp: start.Sub(m.started).Microseconds(),
			Duration:  time.Since(start).Microseconds(),
			PID:       os.Getpid(),
			Args:      args,
		})
	}

	return results, nil
}

func (m *Mock) output(name string) (ManifestOutput, bool) {
	for _, out := range m.manifest.Outputs {
		if out.Name == name {
			return out, true
		}
	}
	return ManifestOutput{}, false
}

// EndProfiling writes the recorded runs as a Chrome trace file and returns
// its path.
func (m *Mock) EndProfiling() (string, error) {
	if !m.opts.EnableProfiling {
		return "", ErrProfilingDisabled
	}
	prefix := m.opts.ProfilePrefix
	if prefix == "" {
		prefix = "mock_profile"
	}
	path := fmt.Sprintf("%s_%s.json", prefix, time.Now().Format("2006-01-02_15-04-05.000000"))

	events := m.trace
	if events == nil {
		events = []traceEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create profile directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write profile: %w", err)
	}
	m.trace = nil
	return path, nil
}

// Close marks the mock as closed.
func (m *Mock) Close() error {
	m.Closed = true
	return nil
}

// SetError configures the mock to return an error on the next Run call
func (m *Mock) SetError(msg string) {
	m.ShouldError = true
	m.ErrorMessage = msg
}

// ClearError clears any configured error
func (m *Mock) ClearError() {
	m.ShouldError = false
	m.ErrorMessage = ""
}

// Ensure Mock implements Engine at compile time
var _ Engine = (*Mock)(nil)
