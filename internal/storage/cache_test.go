package storage

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingBackend conta chamadas de Exists ao backend real.
type countingBackend struct {
	*Memory
	exists int
}

func (c *countingBackend) Exists(ctx context.Context, key string) (bool, error) {
	c.exists++
	return c.Memory.Exists(ctx, key)
}

func TestExistsCacheCachesOnlyPositives(t *testing.T) {
	ctx := context.Background()
	inner := &countingBackend{Memory: NewMemory("")}
	cache, err := NewLRUExistsCache(16)
	require.NoError(t, err)
	b := WithExistsCache(inner, cache)

	ok, err := b.Exists(ctx, "k.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, _ = b.Exists(ctx, "k.jpg")
	assert.False(t, ok)
	assert.Equal(t, 2, inner.exists, "negative answers are never cached")

	require.NoError(t, Put(ctx, inner.Memory, "k.jpg", []byte("x")))
	ok, _ = b.Exists(ctx, "k.jpg")
	assert.True(t, ok)
	ok, _ = b.Exists(ctx, "k.jpg")
	assert.True(t, ok)
	assert.Equal(t, 3, inner.exists)
}

func TestExistsCacheRemembersWrites(t *testing.T) {
	ctx := context.Background()
	inner := &countingBackend{Memory: NewMemory("")}
	cache, err := NewLRUExistsCache(16)
	require.NoError(t, err)
	b := WithExistsCache(inner, cache)

	require.NoError(t, Put(ctx, b, "w.jpg", []byte("x")))
	ok, err := b.Exists(ctx, "w.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, inner.exists)
}

func TestExistsCacheDegradesWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:0", MaxRetries: -1, DialTimeout: 50 * time.Millisecond})
	defer client.Close()

	inner := NewMemory("")
	require.NoError(t, Put(ctx, inner, "r.jpg", []byte("x")))
	b := WithExistsCache(inner, NewRedisExistsCache(client, "", time.Minute))

	ok, err := b.Exists(ctx, "r.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Exists(ctx, "missing.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLayeredPromotesHits(t *testing.T) {
	ctx := context.Background()
	top, err := NewLRUExistsCache(4)
	require.NoError(t, err)
	bottom, err := NewLRUExistsCache(4)
	require.NoError(t, err)
	require.NoError(t, bottom.Remember(ctx, "k"))

	layered := Layered(top, bottom)
	ok, err := layered.Seen(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = top.Seen(ctx, "k")
	assert.True(t, ok)

	assert.Nil(t, Layered())
	_, err = NewLRUExistsCache(0)
	assert.Error(t, err)
}
