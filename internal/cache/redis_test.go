// internal/cache/redis_test.go
package cache

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

func newTestCache(t *testing.T, opts ...Option) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewFromClient(client, opts...)
	t.Cleanup(func() { c.Close() })
	return c, mr
}

func TestCache_SetGet(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	results := []*engine.Tensor{
		engine.MustTensor([]int64{2}, []float32{0.25, 0.5}),
		engine.MustTensor([]int64{1}, []int64{7}),
	}
	require.NoError(t, c.Set(ctx, "k", results))

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, results, got)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	got, ok, err := c.Get(context.Background(), "absent")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestCache_TTL(t *testing.T) {
	c, mr := newTestCache(t, WithTTL(time.Second))
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []*engine.Tensor{engine.MustTensor([]int64{1}, []int32{1})}))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("k", "not json"))

	_, _, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
}

func TestCache_Key(t *testing.T) {
	c, _ := newTestCache(t, WithPrefix("test"))
	x := engine.MustTensor([]int64{1}, []float32{1})
	y := engine.MustTensor([]int64{1}, []float32{2})

	k1, err := c.Key("m", []string{"out"}, engine.Feed{"a": x, "b": y})
	require.NoError(t, err)
	k2, err := c.Key("m", []string{"out"}, engine.Feed{"b": y, "a": x})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "test:run:")

	k3, err := c.Key("m", []string{"out"}, engine.Feed{"a": y, "b": x})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)

	k4, err := c.Key("other", []string{"out"}, engine.Feed{"a": x, "b": y})
	require.NoError(t, err)
	assert.NotEqual(t, k1, k4)
}

func TestNew_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := New(ctx, "127.0.0.1:1")
	assert.Error(t, err)
}

func TestNew_Connects(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), mr.Addr(), WithTTL(0))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Set(context.Background(), "k", nil))
	assert.Equal(t, time.Duration(0), mr.TTL("k"))
}

func TestModelID(t *testing.T) {
	v1 := ModelID([]byte("graph_name: v1"))
	v2 := ModelID([]byte("graph_name: v2"))

	assert.NotEqual(t, v1, v2)
	assert.Equal(t, v1, ModelID([]byte("graph_name: v1")))
	assert.True(t, strings.HasPrefix(v1, "sha256:"))
}
