package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/ecs-app/config"
	"github.com/upb/ecs-app/internal/cache"
	"github.com/upb/ecs-app/internal/jobs"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T, env config.Env) config.AppConfig {
	t.Helper()
	cfg, err := config.Load(env)
	require.NoError(t, err)
	return cfg
}

func TestNewDependencies(t *testing.T) {
	t.Run("redis cache and queue", func(t *testing.T) {
		ctx := context.Background()
		mr := miniredis.RunT(t)
		url := "redis://" + mr.Addr() + "/0"
		cfg := testConfig(t, config.Env{"CACHE_URL": url, "JOB_QUEUE_URL": url})

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.Equal(t, "redis", deps.Cache.Name())
		assert.Equal(t, "redis", deps.Jobs.Name())
		assert.Equal(t, []string{ClearCacheJob}, deps.Registry.Classes())

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("no backend is dialed", func(t *testing.T) {
		// Nothing listens on port 1
		cfg := testConfig(t, config.Env{
			"CACHE_URL":     "redis://127.0.0.1:1/0",
			"JOB_QUEUE_URL": "redis://127.0.0.1:1/1",
		})

		deps, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.NoError(t, deps.Close(context.Background()))
	})
}

func TestNewDependencies_CancelledContext(t *testing.T) {
	cfg := testConfig(t, config.Env{"CACHE_STORE": "memory", "JOB_QUEUE_ADAPTER": "inline"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	assert.Nil(t, deps)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "dependency initialization cancelled")
}

func TestDependencies_ClearCacheJob(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.Env{"CACHE_STORE": "memory", "JOB_QUEUE_ADAPTER": "inline"})

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close(ctx)

	require.NoError(t, deps.Cache.Set(ctx, "k", []byte("v"), 0))

	_, err = deps.Jobs.Enqueue(ctx, ClearCacheJob, nil)
	require.NoError(t, err)

	_, found, err := deps.Cache.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDependencies_StartRunsWorkers(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr() + "/0"
	cfg := testConfig(t, config.Env{"CACHE_URL": url, "JOB_QUEUE_URL": url})

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, deps.Start(ctx))

	require.NoError(t, deps.Cache.Set(ctx, "k", []byte("v"), 0))
	require.True(t, mr.Exists("rails::cache:k"))

	_, err = deps.Jobs.Enqueue(ctx, ClearCacheJob, nil)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !mr.Exists("rails::cache:k")
	}, 5*time.Second, 20*time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	assert.NoError(t, deps.Close(shutdownCtx))
}

func TestDependencies_DisabledQueue(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.Env{"CACHE_STORE": "none", "JOB_QUEUE_ADAPTER": "none"})

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, deps.Start(ctx))
	defer deps.Close(ctx)

	assert.IsType(t, cache.NullStore{}, deps.Cache)
	_, err = deps.Jobs.Enqueue(ctx, ClearCacheJob, nil)
	assert.ErrorIs(t, err, jobs.ErrDisabled)
}

func TestShutdownBudget(t *testing.T) {
	assert.Equal(t, 7*time.Second, shutdownBudget(context.Background(), 7*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()
	budget := shutdownBudget(ctx, time.Second)
	assert.Greater(t, budget, 59*time.Minute)

	expired, cancelExpired := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancelExpired()
	assert.Equal(t, time.Duration(0), shutdownBudget(expired, time.Second))
}
