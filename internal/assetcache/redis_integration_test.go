//go:build integration

package assetcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx,
		"redis:7.4-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisStore_Integration(t *testing.T) {
	addr := startRedis(t)
	ctx := context.Background()

	store, err := NewRedisStore(RedisConfig{Addr: addr, Prefix: "test:assets:"})
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	origin := NewFSOrigin(webFS())
	old := New("snap2pdf-cache-v0", store, origin)
	require.NoError(t, old.Install(ctx))

	current := New("snap2pdf-cache-v1", store, origin)
	require.NoError(t, current.Install(ctx))

	removed, err := current.Activate(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultAssets), removed)

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, len(DefaultAssets))

	a, err := current.Fetch(ctx, "/style.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(a.Data))
	assert.Contains(t, a.ContentType, "text/css")
}
