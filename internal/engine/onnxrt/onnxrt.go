// internal/engine/onnxrt/onnxrt.go

// Package onnxrt adapts the onnxruntime shared library to the engine
// contract through github.com/yalue/onnxruntime_go.
package onnxrt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

var (
	envMu   sync.Mutex
	envRefs int
)

// ErrUnsupportedOption is returned for session options the binding cannot
// honor.
var ErrUnsupportedOption = errors.New("onnxrt: unsupported option")

// acquireEnvironment initializes the process-wide onnxruntime environment on
// first use. Every successful call must be paired with releaseEnvironment.
func acquireEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		return ort.DestroyEnvironment()
	}
	return nil
}

// SetSharedLibraryPath points the binding at a specific onnxruntime library.
// It must be called before the first engine is created.
func SetSharedLibraryPath(path string) {
	if path != "" {
		ort.SetSharedLibraryPath(path)
	}
}

// Engine wraps an onnxruntime dynamic session bound to one model.
type Engine struct {
	opts     engine.Options
	session  *ort.DynamicAdvancedSession
	inputs   []engine.ValueInfo
	outputs  []engine.ValueInfo
	meta     engine.ModelMetadata
	loaded   bool
	released bool
}

// New creates an engine with the given options. Nothing is loaded yet.
func New(opts *engine.Options) (*Engine, error) {
	e := &Engine{}
	if opts != nil {
		e.opts = *opts
		e.opts.ExecutionProviders = slices.Clone(opts.ExecutionProviders)
	}
	if err := validateOptions(e.opts); err != nil {
		return nil, err
	}
	if err := acquireEnvironment(); err != nil {
		return nil, err
	}
	return e, nil
}

// Factory is an engine.Factory producing onnxruntime engines.
func Factory(opts *engine.Options) (engine.Engine, error) {
	return New(opts)
}

func validateOptions(opts engine.Options) error {
	switch opts.GraphOptimizationLevel {
	case "", "all":
	default:
		return fmt.Errorf("%w: graph optimization level %q (binding applies onnxruntime's default)",
			ErrUnsupportedOption, opts.GraphOptimizationLevel)
	}
	if opts.EnableProfiling {
		return fmt.Errorf("%w: profiling is not exposed by the binding", ErrUnsupportedOption)
	}
	for _, p := range opts.ExecutionProviders {
		switch strings.ToLower(p) {
		case "cpu", "cuda", "coreml":
		default:
			return fmt.Errorf("%w: execution provider %q", ErrUnsupportedOption, p)
		}
	}
	return nil
}

// sessionOptions translates engine options into onnxruntime session options.
// The caller owns the returned value and must Destroy it.
func (e *Engine) sessionOptions() (*ort.SessionOptions, error) {
	so, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	fail := func(err error) (*ort.SessionOptions, error) {
		so.Destroy()
		return nil, err
	}

	if e.opts.IntraOpThreads > 0 {
		if err := so.SetIntraOpNumThreads(e.opts.IntraOpThreads); err != nil {
			return fail(fmt.Errorf("failed to set intra-op threads: %w", err))
		}
	}
	if e.opts.InterOpThreads > 0 {
		if err := so.SetInterOpNumThreads(e.opts.InterOpThreads); err != nil {
			return fail(fmt.Errorf("failed to set inter-op threads: %w", err))
		}
	}

	for _, p := range e.opts.ExecutionProviders {
		switch strings.ToLower(p) {
		case "cuda":
			cuda, err := ort.NewCUDAProviderOptions()
			if err != nil {
				return fail(fmt.Errorf("failed to create CUDA provider options: %w", err))
			}
			err = so.AppendExecutionProviderCUDA(cuda)
			cuda.Destroy()
			if err != nil {
				return fail(fmt.Errorf("failed to enable CUDA provider: %w", err))
			}
		case "coreml":
			if err := so.AppendExecutionProviderCoreML(0); err != nil {
				return fail(fmt.Errorf("failed to enable CoreML provider: %w", err))
			}
		}
	}
	return so, nil
}

// LoadModel loads and initializes a model file.
func (e *Engine) LoadModel(path string) error {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return fmt.Errorf("failed to read model signature: %w", err)
	}
	meta, err := ort.GetModelMetadata(path)
	if err != nil {
		return fmt.Errorf("failed to read model metadata: %w", err)
	}
	if err := e.capture(inputs, outputs, meta); err != nil {
		return err
	}

	so, err := e.sessionOptions()
	if err != nil {
		return err
	}
	defer so.Destroy()

	session, err := ort.NewDynamicAdvancedSession(path,
		engine.Names(e.inputs), engine.Names(e.outputs), so)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	e.session = session
	return nil
}

// ReadBytes loads and initializes a serialized model.
func (e *Engine) ReadBytes(data []byte) error {
	inputs, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return fmt.Errorf("failed to read model signature: %w", err)
	}

	so, err := e.sessionOptions()
	if err != nil {
		return err
	}
	defer so.Destroy()

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data,
		infoNames(inputs), infoNames(outputs), so)
	if err != nil {
		return fmt.Errorf("failed to create ONNX session: %w", err)
	}
	meta, err := session.GetModelMetadata()
	if err != nil {
		session.Destroy()
		return fmt.Errorf("failed to read model metadata: %w", err)
	}
	if err := e.capture(inputs, outputs, meta); err != nil {
		session.Destroy()
		return err
	}
	e.session = session
	return nil
}

// LoadModelNoInit reads the model signature and metadata without creating
// an onnxruntime session.
//
// Deprecated: see engine.PreparsedModel.
func (e *Engine) LoadModelNoInit(token engine.PreparsedModel) error {
	inputs, outputs, err := ort.GetInputOutputInfo(token.Path)
	if err != nil {
		return fmt.Errorf("failed to read model signature: %w", err)
	}
	meta, err := ort.GetModelMetadata(token.Path)
	if err != nil {
		return fmt.Errorf("failed to read model metadata: %w", err)
	}
	return e.capture(inputs, outputs, meta)
}

// capture converts the binding's signature and metadata. meta is destroyed.
func (e *Engine) capture(inputs, outputs []ort.InputOutputInfo, meta *ort.ModelMetadata) error {
	defer meta.Destroy()

	converted, err := convertMetadata(meta)
	if err != nil {
		return err
	}
	e.inputs = convertInfos(inputs)
	e.outputs = convertInfos(outputs)
	e.meta = converted
	e.loaded = true
	return nil
}

// InputsMeta returns the declared inputs.
func (e *Engine) InputsMeta() []engine.ValueInfo { return engine.CloneValueInfos(e.inputs) }

// OutputsMeta returns the declared outputs.
func (e *Engine) OutputsMeta() []engine.ValueInfo { return engine.CloneValueInfos(e.outputs) }

// ModelMeta returns the model metadata.
func (e *Engine) ModelMeta() engine.ModelMetadata { return e.meta.Clone() }

// Run feeds the inputs in declared order, lets onnxruntime allocate every
// declared output and returns the requested ones in request order.
func (e *Engine) Run(outputNames []string, feed engine.Feed, opts *engine.RunOptions) ([]*engine.Tensor, error) {
	if !e.loaded {
		return nil, engine.ErrNotLoaded
	}
	if e.session == nil {
		return nil, engine.ErrNotInitialized
	}
	if opts != nil && opts.Terminate {
		return nil, engine.ErrTerminated
	}

	for name := range feed {
		if !slices.ContainsFunc(e.inputs, func(v engine.ValueInfo) bool { return v.Name == name }) {
			return nil, fmt.Errorf("%w: %q", engine.ErrUnknownInput, name)
		}
	}
	index := make([]int, len(outputNames))
	for i, name := range outputNames {
		index[i] = slices.IndexFunc(e.outputs, func(v engine.ValueInfo) bool { return v.Name == name })
		if index[i] < 0 {
			return nil, fmt.Errorf("%w: %q", engine.ErrUnknownOutput, name)
		}
	}

	inputs := make([]ort.ArbitraryTensor, len(e.inputs))
	defer destroyAll(inputs)
	for i, info := range e.inputs {
		t, ok := feed[info.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", engine.ErrMissingInput, info.Name)
		}
		value, err := toOrt(t)
		if err != nil {
			return nil, fmt.Errorf("failed to create input tensor %q: %w", info.Name, err)
		}
		inputs[i] = value
	}

	// nil outputs are allocated by onnxruntime
	outputs := make([]ort.ArbitraryTensor, len(e.outputs))
	defer destroyAll(outputs)

	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	results := make([]*engine.Tensor, len(outputNames))
	for i, idx := range index {
		t, err := fromOrt(outputs[idx])
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", outputNames[i], err)
		}
		results[i] = t
	}
	return results, nil
}

// EndProfiling always fails: profiling cannot be enabled through the binding.
func (e *Engine) EndProfiling() (string, error) {
	return "", engine.ErrProfilingDisabled
}

// Close releases the ONNX session and the environment reference.
func (e *Engine) Close() error {
	if e.released {
		return nil
	}
	e.released = true

	var errs []error
	if e.session != nil {
		if err := e.session.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy session: %w", err))
		}
		e.session = nil
	}
	if err := releaseEnvironment(); err != nil {
		errs = append(errs, fmt.Errorf("failed to destroy environment: %w", err))
	}
	return errors.Join(errs...)
}

func destroyAll(values []ort.ArbitraryTensor) {
	for _, v := range values {
		if v != nil {
			v.Destroy()
		}
	}
}

// Ensure Engine implements engine.Engine at compile time
var _ engine.Engine = (*Engine)(nil)
