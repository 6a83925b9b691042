package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetInvalidate(t *testing.T) {
	c := New(true)

	etag := c.Set("users:list", []byte(`[]`), time.Minute)
	require.NotEmpty(t, etag)

	data, got, ok := c.Get("users:list")
	require.True(t, ok)
	assert.Equal(t, []byte(`[]`), data)
	assert.Equal(t, etag, got)

	c.Invalidate("users:list")
	_, _, ok = c.Get("users:list")
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(true)
	c.Set("k", []byte("v"), -time.Second) // already expired

	_, _, ok := c.Get("k")
	assert.False(t, ok)

	c.evict()
	stats := c.Stats()
	assert.Equal(t, 0, stats["total_keys"])
}

func TestDisabledCacheIsNoOp(t *testing.T) {
	c := New(false)

	etag := c.Set("k", []byte("v"), time.Minute)
	assert.NotEmpty(t, etag, "ETags are still computed when caching is off")

	_, _, ok := c.Get("k")
	assert.False(t, ok)
}

func TestETag(t *testing.T) {
	a := ComputeETag([]byte("payload"))
	b := ComputeETag([]byte("payload"))
	other := ComputeETag([]byte("different"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, other)
	assert.Contains(t, a, `W/"`)

	assert.True(t, CheckETagMatch(a, a))
	assert.True(t, CheckETagMatch("*", a))
	assert.False(t, CheckETagMatch("", a))
	assert.False(t, CheckETagMatch(other, a))
}
