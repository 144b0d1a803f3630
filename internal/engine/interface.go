// internal/engine/interface.go

// Package engine defines the boundary between a session and the native
// inference engine that actually parses and executes models.
package engine

// Engine is the collaborator contract a Session delegates to.
// This abstraction allows the concrete engine to be swapped: onnxruntime,
// the manifest driven mock, or a remote engine.
//
// Implementations are not required to be reentrant. Callers that share an
// Engine between goroutines must serialize access themselves.
type Engine interface {
	// LoadModel loads and fully initializes a model from a file.
	LoadModel(path string) error

	// ReadBytes parses and fully initializes a model from serialized bytes.
	ReadBytes(data []byte) error

	// LoadModelNoInit loads the model structure only and skips
	// initialization. Subsequent behavior is engine-defined.
	LoadModelNoInit(token PreparsedModel) error

	// InputsMeta returns the declared inputs. Valid after a successful load.
	InputsMeta() []ValueInfo

	// OutputsMeta returns the declared outputs. Valid after a successful load.
	OutputsMeta() []ValueInfo

	// ModelMeta returns the model metadata. Valid after a successful load.
	ModelMeta() ModelMetadata

	// Run executes the model and returns one tensor per requested output
	// name, in request order.
	Run(outputNames []string, feed Feed, opts *RunOptions) ([]*Tensor, error)

	// EndProfiling stops profiling and returns the artifact location.
	EndProfiling() (string, error)

	// Close releases any resources held by the engine.
	Close() error
}

// Factory builds a fresh, unloaded engine instance. A nil opts selects the
// engine defaults.
type Factory func(opts *Options) (Engine, error)

// PreparsedModel is the token accepted by LoadModelNoInit.
//
// Deprecated: the no-init path exists for internal tooling only and will be
// removed.
type PreparsedModel struct {
	Path string
}
