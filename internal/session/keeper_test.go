package session

import (
	"context"
	"testing"
	"time"

	"github.com/abbasifarasat36-dev/globaldragon/internal/clock"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepers(t *testing.T) map[string]Keeper {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return map[string]Keeper{
		"memory": NewMemory(time.Hour, nil),
		"redis":  NewRedis(rdb, time.Hour),
	}
}

func TestKeeperLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, k := range keepers(t) {
		t.Run(name, func(t *testing.T) {
			a, err := k.Create(ctx, "u1")
			require.NoError(t, err)
			b, err := k.Create(ctx, "u1")
			require.NoError(t, err)
			other, err := k.Create(ctx, "u2")
			require.NoError(t, err)
			assert.NotEqual(t, a, b)

			got, err := k.Lookup(ctx, a)
			require.NoError(t, err)
			assert.Equal(t, "u1", got)

			require.NoError(t, k.Revoke(ctx, a))
			_, err = k.Lookup(ctx, a)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = k.Lookup(ctx, b)
			assert.NoError(t, err)

			require.NoError(t, k.RevokeUser(ctx, "u1"))
			_, err = k.Lookup(ctx, b)
			assert.ErrorIs(t, err, ErrNotFound)

			got, err = k.Lookup(ctx, other)
			require.NoError(t, err)
			assert.Equal(t, "u2", got)

			assert.NoError(t, k.Revoke(ctx, "missing"))
		})
	}
}

func TestMemoryKeeperExpires(t *testing.T) {
	clk := clock.NewMock(time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC))
	k := NewMemory(time.Minute, clk)
	ctx := context.Background()

	sid, err := k.Create(ctx, "u1")
	require.NoError(t, err)
	clk.Advance(59 * time.Second)
	_, err = k.Lookup(ctx, sid)
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = k.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisKeeperExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	k := NewRedis(rdb, time.Minute)
	ctx := context.Background()

	sid, err := k.Create(ctx, "u1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = k.Lookup(ctx, sid)
	assert.ErrorIs(t, err, ErrNotFound)
}
