// internal/engine/errors.go
package engine

import "errors"

// Errors reported by engines. Sessions pass them through unchanged.
var (
	ErrNotLoaded         = errors.New("engine: no model loaded")
	ErrNotInitialized    = errors.New("engine: model loaded without initialization")
	ErrUnknownInput      = errors.New("engine: unknown input name")
	ErrMissingInput      = errors.New("engine: missing input")
	ErrUnknownOutput     = errors.New("engine: unknown output name")
	ErrProfilingDisabled = errors.New("engine: profiling is not enabled")
	ErrTerminated        = errors.New("engine: run terminated")
	ErrInvalidTensor     = errors.New("engine: invalid tensor")
)
