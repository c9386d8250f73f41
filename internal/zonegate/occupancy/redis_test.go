package occupancy_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessdeck/zonegate/internal/zonegate/occupancy"
)

func newRedisTracker(t *testing.T) *occupancy.RedisTracker {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return occupancy.NewRedisTracker(client)
}

func TestRedisTracker_AdmitUpToLimit(t *testing.T) {
	tr := newRedisTracker(t)
	ctx := context.Background()

	ok, err := tr.TryAdmit(ctx, "zone-1", limit(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.TryAdmit(ctx, "zone-1", limit(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tr.TryAdmit(ctx, "zone-1", limit(2))
	require.NoError(t, err)
	assert.False(t, ok, "zone is full")

	n, err := tr.Count(ctx, "zone-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRedisTracker_NilLimitAlwaysAdmits(t *testing.T) {
	tr := newRedisTracker(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := tr.TryAdmit(ctx, "zone-1", nil)
		require.NoError(t, err)
		require.True(t, ok)
	}

	n, err := tr.Count(ctx, "zone-1")
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestRedisTracker_ReleaseFloorsAtZero(t *testing.T) {
	tr := newRedisTracker(t)
	ctx := context.Background()

	require.NoError(t, tr.Release(ctx, "zone-1"))

	n, err := tr.Count(ctx, "zone-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ok, err := tr.TryAdmit(ctx, "zone-1", limit(1))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tr.Release(ctx, "zone-1"))
	require.NoError(t, tr.Release(ctx, "zone-1"))

	n, err = tr.Count(ctx, "zone-1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRedisTracker_CountOnEmptyZone(t *testing.T) {
	tr := newRedisTracker(t)

	n, err := tr.Count(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
