// internal/session/session_test.go
package session

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

const modelPath = "testdata/model.yaml"

// newTracked returns a factory that remembers the last mock it built.
func newTracked() (engine.Factory, func() *engine.Mock) {
	var last *engine.Mock
	factory := func(opts *engine.Options) (engine.Engine, error) {
		last = engine.NewMock(opts)
		return last, nil
	}
	return factory, func() *engine.Mock { return last }
}

func validFeed() engine.Feed {
	return engine.Feed{
		"x":    engine.MustTensor([]int64{1, 2}, []float32{0.5, 1.5}),
		"mask": engine.MustTensor([]int64{3}, []bool{true, false, true}),
	}
}

func TestNew_FromPath(t *testing.T) {
	s, err := New(Path(modelPath), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []string{"x", "mask"}, engine.Names(s.Inputs()))
	assert.Equal(t, []string{"y", "z"}, engine.Names(s.Outputs()))
	assert.Equal(t, engine.Shape{engine.SymbolicDim("batch"), engine.FixedDim(2)}, s.Inputs()[0].Shape)
	assert.Equal(t, engine.Float32, s.Inputs()[0].Type)
	assert.Equal(t, "echo", s.ModelMeta().GraphName)
	assert.Equal(t, int64(3), s.ModelMeta().Version)
}

func TestNew_FromBytes(t *testing.T) {
	data, err := os.ReadFile(modelPath)
	require.NoError(t, err)

	s, err := New(Bytes(data), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Inputs(), 2)
	assert.Len(t, s.Outputs(), 2)
}

func TestNew_UnsupportedSource(t *testing.T) {
	factory, last := newTracked()

	_, err := New(nil, nil, factory)

	var unsupported *UnsupportedSourceTypeError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, "<nil>", unsupported.Type)
	assert.True(t, last().Closed, "engine must be released when construction fails")
}

func TestSourceOf(t *testing.T) {
	src, err := SourceOf("model.onnx")
	require.NoError(t, err)
	assert.Equal(t, Path("model.onnx"), src)

	src, err = SourceOf([]byte("raw"))
	require.NoError(t, err)
	assert.Equal(t, Bytes("raw"), src)

	src, err = SourceOf(Path("p"))
	require.NoError(t, err)
	assert.Equal(t, Path("p"), src)

	for _, v := range []any{42, 3.5, nil, []string{"a"}, struct{}{}} {
		_, err := SourceOf(v)
		var unsupported *UnsupportedSourceTypeError
		require.ErrorAs(t, err, &unsupported, "value %v", v)
	}

	_, err = SourceOf(42)
	assert.EqualError(t, err, "session: unable to load from type 'int'")
}

func TestNew_LoadFailureReleasesEngine(t *testing.T) {
	factory, last := newTracked()

	_, err := New(Bytes("inputs: [}"), nil, factory)
	require.Error(t, err)
	assert.True(t, last().Closed)

	_, err = New(Path(filepath.Join(t.TempDir(), "missing.yaml")), nil, factory)
	require.Error(t, err)
	assert.True(t, last().Closed)
}

func TestNew_FactoryError(t *testing.T) {
	boom := errors.New("no engine")
	_, err := New(Path(modelPath), nil, func(*engine.Options) (engine.Engine, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = New(Path(modelPath), nil, nil)
	assert.Error(t, err)
}

func TestRun_InputCountMismatch(t *testing.T) {
	factory, last := newTracked()
	s, err := New(Path(modelPath), nil, factory)
	require.NoError(t, err)
	defer s.Close()

	feeds := []engine.Feed{
		nil,
		{"x": engine.MustTensor([]int64{1, 2}, []float32{1, 2})},
		{
			"x":     engine.MustTensor([]int64{1, 2}, []float32{1, 2}),
			"mask":  engine.MustTensor([]int64{1}, []bool{true}),
			"extra": engine.MustTensor([]int64{1}, []bool{true}),
		},
	}
	for _, feed := range feeds {
		_, err := s.Run(nil, feed, nil)
		var mismatch *InputCountMismatchError
		require.ErrorAs(t, err, &mismatch)
		assert.Equal(t, 2, mismatch.Expected)
		assert.Equal(t, len(feed), mismatch.Actual)
	}
	assert.Equal(t, 0, last().CallCount, "count check must happen before delegating")
}

func TestRun_NameMismatchReachesEngine(t *testing.T) {
	factory, last := newTracked()
	s, err := New(Path(modelPath), nil, factory)
	require.NoError(t, err)
	defer s.Close()

	feed := engine.Feed{
		"x":     engine.MustTensor([]int64{1, 2}, []float32{1, 2}),
		"wrong": engine.MustTensor([]int64{1}, []bool{true}),
	}
	_, err = s.Run(nil, feed, nil)

	assert.ErrorIs(t, err, engine.ErrUnknownInput)
	var mismatch *InputCountMismatchError
	assert.False(t, errors.As(err, &mismatch))
	assert.Equal(t, 1, last().CallCount)
}

func TestRun_DefaultOutputs(t *testing.T) {
	s, err := New(Path(modelPath), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	implicit, err := s.Run(nil, validFeed(), nil)
	require.NoError(t, err)
	explicit, err := s.Run([]string{"y", "z"}, validFeed(), nil)
	require.NoError(t, err)

	require.Len(t, implicit, 2)
	assert.Equal(t, explicit, implicit)
	assert.Equal(t, []float32{0.5, 1.5}, implicit[0].Data)
	assert.Equal(t, []int64{7, 9}, implicit[1].Data)

	empty, err := s.Run([]string{}, validFeed(), nil)
	require.NoError(t, err)
	assert.Equal(t, implicit, empty)
}

func TestRun_RequestedOrder(t *testing.T) {
	s, err := New(Path(modelPath), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	out, err := s.Run([]string{"z", "y"}, validFeed(), nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, engine.Int64, out[0].Type)
	assert.Equal(t, engine.Float32, out[1].Type)

	_, err = s.Run([]string{"nope"}, validFeed(), nil)
	assert.ErrorIs(t, err, engine.ErrUnknownOutput)
}

func TestRun_EngineErrorPassesThrough(t *testing.T) {
	factory, last := newTracked()
	s, err := New(Path(modelPath), nil, factory)
	require.NoError(t, err)
	defer s.Close()

	last().SetError("kernel exploded")
	_, err = s.Run(nil, validFeed(), nil)
	assert.EqualError(t, err, "kernel exploded")

	last().ClearError()
	_, err = s.Run(nil, validFeed(), &engine.RunOptions{Terminate: true})
	assert.ErrorIs(t, err, engine.ErrTerminated)
}

func TestModelMeta_Immutable(t *testing.T) {
	s, err := New(Path(modelPath), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	first := s.ModelMeta()
	first.Custom["owner"] = "someone else"
	first.Producer = "changed"

	second := s.ModelMeta()
	assert.Equal(t, s.ModelMeta(), second)
	assert.Equal(t, "tests", second.Custom["owner"])
	assert.Equal(t, "session-service-tests", second.Producer)

	inputs := s.Inputs()
	inputs[0].Name = "changed"
	assert.Equal(t, "x", s.Inputs()[0].Name)
}

func TestEndProfiling_Disabled(t *testing.T) {
	s, err := New(Path(modelPath), nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	artifact, err := s.EndProfiling()
	assert.ErrorIs(t, err, engine.ErrProfilingDisabled)
	assert.Empty(t, artifact)
}

func TestEndProfiling_Enabled(t *testing.T) {
	prefix := filepath.Join(t.TempDir(), "profile")
	opts := &engine.Options{EnableProfiling: true, ProfilePrefix: prefix}
	s, err := New(Path(modelPath), opts, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Run(nil, validFeed(), &engine.RunOptions{Tag: "first"})
	require.NoError(t, err)

	artifact, err := s.EndProfiling()
	require.NoError(t, err)
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"model_run"`)
	assert.Contains(t, string(data), `"first"`)
}

func TestNewPreparsed(t *testing.T) {
	s, err := NewPreparsed(engine.PreparsedModel{Path: modelPath}, nil, engine.MockFactory)
	require.NoError(t, err)
	defer s.Close()

	assert.Len(t, s.Inputs(), 2)
	_, err = s.Run(nil, validFeed(), nil)
	assert.ErrorIs(t, err, engine.ErrNotInitialized)
}

func TestClose(t *testing.T) {
	factory, last := newTracked()
	s, err := New(Path(modelPath), nil, factory)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.True(t, last().Closed)
	assert.ErrorIs(t, s.Close(), ErrClosed)

	_, err = s.Run(nil, validFeed(), nil)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.EndProfiling()
	assert.ErrorIs(t, err, ErrClosed)

	// metadata stays readable after close
	assert.Len(t, s.Outputs(), 2)
}

func TestRun_Concurrent(t *testing.T) {
	factory, last := newTracked()
	s, err := New(Path(modelPath), nil, factory)
	require.NoError(t, err)
	defer s.Close()

	const workers, runs = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*runs)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < runs; j++ {
				if _, err := s.Run(nil, validFeed(), nil); err != nil {
					errs <- err
				}
				_ = s.Inputs()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent run failed: %v", err)
	}
	assert.Equal(t, workers*runs, last().CallCount)
}
