// internal/session/session.go

// Package session implements the inference session facade: it owns one
// engine instance bound to one loaded model, caches the model signature at
// construction and delegates runs to the engine.
//
// A Session is safe for concurrent use. Run, EndProfiling and Close are
// serialized with a mutex because engines are not required to be reentrant;
// the cached descriptors and metadata are read without locking.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session: closed")

// UnsupportedSourceTypeError reports a model source that is neither a path
// nor serialized bytes.
type UnsupportedSourceTypeError struct {
	Type string
}

func (e *UnsupportedSourceTypeError) Error() string {
	return fmt.Sprintf("session: unable to load from type '%s'", e.Type)
}

// InputCountMismatchError reports a feed whose size differs from the number
// of declared inputs.
type InputCountMismatchError struct {
	Expected int
	Actual   int
}

func (e *InputCountMismatchError) Error() string {
	return fmt.Sprintf("session: model requires %d inputs, feed contains %d", e.Expected, e.Actual)
}

// Session is one loaded model bound to a single engine.
type Session struct {
	inputs  []engine.ValueInfo
	outputs []engine.ValueInfo
	meta    engine.ModelMetadata

	mu     sync.Mutex
	engine engine.Engine
	closed bool
}

// New builds an engine with factory, loads src into it and captures the
// model signature. A nil opts selects engine defaults. On any failure the
// engine is closed before returning.
func New(src Source, opts *engine.Options, factory engine.Factory) (*Session, error) {
	return construct(opts, factory, func(e engine.Engine) error {
		switch src := src.(type) {
		case Path:
			return e.LoadModel(string(src))
		case Bytes:
			return e.ReadBytes([]byte(src))
		default:
			return &UnsupportedSourceTypeError{Type: fmt.Sprintf("%T", src)}
		}
	})
}

// NewPreparsed loads only the model structure, skipping initialization.
// Whether Run works afterwards is up to the engine.
//
// Deprecated: intended for internal tooling and scheduled for removal.
func NewPreparsed(token engine.PreparsedModel, opts *engine.Options, factory engine.Factory) (*Session, error) {
	return construct(opts, factory, func(e engine.Engine) error {
		return e.LoadModelNoInit(token)
	})
}

func construct(opts *engine.Options, factory engine.Factory, load func(engine.Engine) error) (s *Session, err error) {
	if factory == nil {
		return nil, errors.New("session: nil engine factory")
	}
	e, err := factory(opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, e.Close())
		}
	}()

	if err := load(e); err != nil {
		return nil, err
	}

	return &Session{
		inputs:  e.InputsMeta(),
		outputs: e.OutputsMeta(),
		meta:    e.ModelMeta(),
		engine:  e,
	}, nil
}

// Inputs returns the declared model inputs.
func (s *Session) Inputs() []engine.ValueInfo { return engine.CloneValueInfos(s.inputs) }

// Outputs returns the declared model outputs.
func (s *Session) Outputs() []engine.ValueInfo { return engine.CloneValueInfos(s.outputs) }

// ModelMeta returns the model metadata captured at load time.
func (s *Session) ModelMeta() engine.ModelMetadata { return s.meta.Clone() }

// OutputNames returns the declared output names in declared order.
func (s *Session) OutputNames() []string { return engine.Names(s.outputs) }

// Run computes the requested outputs. An empty outputNames selects every
// declared output in declared order.
//
// Only the number of feed entries is checked here. Feed names are validated by
// the engine, so an equal-sized feed with wrong names fails with the engine's
// error, not InputCountMismatchError.
func (s *Session) Run(outputNames []string, feed engine.Feed, opts *engine.RunOptions) ([]*engine.Tensor, error) {
	if len(feed) != len(s.inputs) {
		return nil, &InputCountMismatchError{Expected: len(s.inputs), Actual: len(feed)}
	}
	if len(outputNames) == 0 {
		outputNames = s.OutputNames()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	return s.engine.Run(outputNames, feed, opts)
}

// EndProfiling stops profiling and returns the engine's artifact, typically
// a trace file path.
func (s *Session) EndProfiling() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrClosed
	}
	return s.engine.EndProfiling()
}

// Close releases the engine. It waits for an in-flight Run to finish.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	s.closed = true
	return s.engine.Close()
}
