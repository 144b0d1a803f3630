// internal/reload/watcher_test.go
package reload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/logger"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

const manifest = `graph_name: %s
inputs:
  - {name: x, type: float32, shape: [1]}
outputs:
  - {name: y, type: float32, shape: [1], from: x}
`

func writeModel(t *testing.T, path, graph string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(manifest, graph)), 0o644))
}

func loadMock(path string) (*session.Session, string, error) {
	s, err := session.New(session.Path(path), nil, engine.MockFactory)
	if err != nil {
		return nil, "", err
	}
	return s, s.ModelMeta().GraphName, nil
}

type recorder struct {
	mu      sync.Mutex
	graphs  []string
	current *session.Session
}

func (r *recorder) swap(s *session.Session, modelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.graphs = append(r.graphs, modelID)
	prev := r.current
	r.current = s
	if prev != nil {
		return prev.Close()
	}
	return nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.graphs...)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	writeModel(t, path, "v1")

	rec := &recorder{}
	w := New(path, loadMock, rec.swap, logger.NewNop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeModel(t, path, "v2")

	require.Eventually(t, func() bool {
		graphs := rec.seen()
		return len(graphs) > 0 && graphs[len(graphs)-1] == "v2"
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.GreaterOrEqual(t, w.ReloadCount(), uint32(1))
}

func TestWatcher_KeepsSessionOnBadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	writeModel(t, path, "v1")

	rec := &recorder{}
	w := New(path, loadMock, rec.swap, logger.NewNop())
	w.SetDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("inputs: [}"), 0o644))

	require.Eventually(t, func() bool { return w.FailedCount() > 0 }, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, rec.seen())
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	writeModel(t, path, "v1")

	rec := &recorder{}
	w := New(path, loadMock, rec.swap, logger.NewNop())
	w.SetDebounce(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)

	assert.Equal(t, uint32(0), w.ReloadCount())
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing", "model.yaml"), loadMock, (&recorder{}).swap, logger.NewNop())
	assert.Error(t, w.Run(context.Background()))
}

func TestWatcher_NoSwapAfterShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	writeModel(t, path, "v1")

	rec := &recorder{}
	w := New(path, loadMock, rec.swap, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.reload(ctx)

	assert.Empty(t, rec.seen())
	assert.Equal(t, uint32(0), w.ReloadCount())
}
