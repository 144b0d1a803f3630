// cmd/sessiond/main_test.go
package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v3"
	"google.golang.org/grpc/health"

	"github.com/SyedDaiam9101/session-service/internal/config"
	"github.com/SyedDaiam9101/session-service/internal/engine"
	"github.com/SyedDaiam9101/session-service/internal/handler"
	"github.com/SyedDaiam9101/session-service/internal/logger"
	"github.com/SyedDaiam9101/session-service/internal/session"
)

// resetFlags returns every flag of cmd and its subcommands to its default so
// that each execute starts from a clean command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestInspect(t *testing.T) {
	out, err := execute(t, "inspect", "--engine", "mock", "testdata/model.yaml")
	require.NoError(t, err)

	var doc inspectDoc
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "echo", doc.Metadata.GraphName)
	assert.Equal(t, int64(3), doc.Metadata.Version)
	require.Len(t, doc.Inputs, 2)
	assert.Equal(t, valueDoc{Name: "x", Type: "float32", Shape: "[batch, 2]"}, doc.Inputs[0])
	assert.Equal(t, valueDoc{Name: "mask", Type: "bool", Shape: "[?]"}, doc.Inputs[1])
	require.Len(t, doc.Outputs, 2)
	assert.Equal(t, "z", doc.Outputs[1].Name)
}

func TestRunAllOutputs(t *testing.T) {
	out, err := execute(t, "run", "--engine", "mock", "--feed", "testdata/feed.json", "testdata/model.yaml")
	require.NoError(t, err)

	var results map[string]*engine.Tensor
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Contains(t, results, "y")
	require.Contains(t, results, "z")
	assert.Equal(t, []float32{0.5, 1.5}, results["y"].Data)
	assert.Equal(t, []int64{7, 9}, results["z"].Data)
}

func TestInspectThenRun(t *testing.T) {
	// the inherited --engine flag must still apply on the second command
	_, err := execute(t, "inspect", "--engine", "mock", "testdata/model.yaml")
	require.NoError(t, err)

	out, err := execute(t, "run", "--engine", "mock", "--feed", "testdata/feed.json", "testdata/model.yaml")
	require.NoError(t, err)

	var results map[string]*engine.Tensor
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 2)
}

func TestRunSelectedOutput(t *testing.T) {
	out, err := execute(t, "run", "--engine", "mock", "--feed", "testdata/feed.json", "--output", "z", "testdata/model.yaml")
	require.NoError(t, err)

	var results map[string]*engine.Tensor
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	assert.Len(t, results, 1)
	assert.Equal(t, []int64{7, 9}, results["z"].Data)
}

func TestRunMissingFeed(t *testing.T) {
	_, err := execute(t, "run", "--engine", "mock", "--feed", "testdata/missing.json", "testdata/model.yaml")
	assert.ErrorContains(t, err, "failed to read feed")
}

func TestEngineFactory(t *testing.T) {
	_, err := engineFactory(&config.Config{Engine: "tensorrt"})
	assert.Error(t, err)

	f, err := engineFactory(&config.Config{Engine: config.EngineMock})
	require.NoError(t, err)
	e, err := f(nil)
	require.NoError(t, err)
	assert.NoError(t, e.Close())
}

func TestAdminRouter(t *testing.T) {
	s, err := session.New(session.Path("testdata/model.yaml"), nil, engine.MockFactory)
	require.NoError(t, err)
	h := handler.New(s, "model", nil, logger.NewNop())
	defer h.Close()

	srv := httptest.NewServer(newAdminRouter(health.NewServer(), h, logger.NewNop()))
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, err := http.Get(srv.URL + "/v1/model")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view modelView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, []string{"x", "mask"}, engine.Names(view.Inputs))
	assert.Equal(t, "tests", view.Metadata.Custom["owner"])
}

func TestAdminRouterNotReady(t *testing.T) {
	h := handler.New(nil, "", nil, logger.NewNop())
	srv := httptest.NewServer(newAdminRouter(health.NewServer(), h, logger.NewNop()))
	defer srv.Close()

	for _, path := range []string{"/readyz", "/v1/model"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestModelLoaderIdentifiesContent(t *testing.T) {
	base, err := os.ReadFile("testdata/model.yaml")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "model.yaml")
	load := modelLoader(nil, engine.MockFactory)

	require.NoError(t, os.WriteFile(path, base, 0o644))
	s1, id1, err := load(path)
	require.NoError(t, err)
	defer s1.Close()

	// same path, different model
	changed := strings.Replace(string(base), "version: 3", "version: 4", 1)
	require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
	s2, id2, err := load(path)
	require.NoError(t, err)
	defer s2.Close()

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, int64(4), s2.ModelMeta().Version)

	require.NoError(t, os.WriteFile(path, base, 0o644))
	s3, id3, err := load(path)
	require.NoError(t, err)
	defer s3.Close()
	assert.Equal(t, id1, id3)
}
