package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int `json:"x"`
}

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &Cache{Rdb: rdb}, mr
}

func TestRemember_ComputesOnceUntilExpiry(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) (point, error) {
		calls++
		return point{X: calls}, nil
	}

	v, err := Remember(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v.X)

	v, err = Remember(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v.X, "served from cache")

	mr.FastForward(2 * time.Minute)
	v, err = Remember(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v.X)
}

func TestDelete_Invalidates(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, c.SetJSON(ctx, "k", point{X: 1}, time.Minute))
	assert.True(t, mr.Exists("k"))
	require.NoError(t, c.Delete(ctx, "k"))
	assert.False(t, mr.Exists("k"))

	var p point
	hit, err := c.GetJSON(ctx, "k", &p)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRemember_NilCacheStillComputes(t *testing.T) {
	v, err := Remember(context.Background(), nil, "k", time.Minute, func(context.Context) (point, error) {
		return point{X: 7}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v.X)
}
