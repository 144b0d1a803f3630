// internal/rpc/codec_test.go
package rpc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

func TestCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	require.NotNil(t, codec)
	assert.Equal(t, CodecName, codec.Name())
}

func TestCodecRunResponseNonFinite(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	in := &RunResponse{Outputs: []*engine.Tensor{
		engine.MustTensor([]int64{2}, []float32{float32(math.Inf(-1)), float32(math.NaN())}),
	}}

	data, err := codec.Marshal(in)
	require.NoError(t, err)

	var out RunResponse
	require.NoError(t, codec.Unmarshal(data, &out))
	require.Len(t, out.Outputs, 1)
	got := out.Outputs[0].Data.([]float32)
	assert.True(t, math.IsInf(float64(got[0]), -1))
	assert.True(t, math.IsNaN(float64(got[1])))
}
