// internal/rpc/messages.go
package rpc

import "github.com/SyedDaiam9101/session-service/internal/engine"

// Empty is the request of the accessor methods.
type Empty struct{}

// ValueInfosResponse lists declared inputs or outputs in declared order.
type ValueInfosResponse struct {
	Values []engine.ValueInfo `json:"values"`
}

// ModelMetaResponse carries the model metadata.
type ModelMetaResponse struct {
	Meta engine.ModelMetadata `json:"meta"`
}

// RunRequest is one inference call. Empty OutputNames selects every declared
// output.
type RunRequest struct {
	OutputNames []string           `json:"output_names,omitempty"`
	Feed        engine.Feed        `json:"feed"`
	RunOptions  *engine.RunOptions `json:"run_options,omitempty"`
}

// RunResponse holds one tensor per requested output, in request order.
type RunResponse struct {
	Outputs []*engine.Tensor `json:"outputs"`
	Cached  bool             `json:"cached,omitempty"`
}

// EndProfilingResponse carries the profiling artifact location.
type EndProfilingResponse struct {
	Artifact string `json:"artifact"`
}
