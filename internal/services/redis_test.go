package services

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := NewRedisService("redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, mr
}

func TestNewRedisService_BadURL(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	_, err := NewRedisService("http://localhost:6379", logger)
	assert.Error(t, err)
}

func TestRedisService_Basic(t *testing.T) {
	svc, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, svc.Ping(ctx))

	key := "test:key:123"
	require.NoError(t, svc.Set(ctx, key, "test value", time.Minute))

	got, err := svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "test value", got)

	exists, err := svc.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, svc.Del(ctx, key))

	got, err = svc.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got, "missing key should read as empty string")

	exists, err = svc.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedisService_BareAddress(t *testing.T) {
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := NewRedisService(mr.Addr(), logger)
	require.NoError(t, err)
	defer svc.Close()

	assert.NoError(t, svc.Ping(context.Background()))
}

func TestRedisService_Locks(t *testing.T) {
	svc, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := svc.AcquireLock(ctx, "story-cycle-lock", "worker-a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.AcquireLock(ctx, "story-cycle-lock", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not take a held lock")

	// Releasing with the wrong owner leaves the lock in place
	require.NoError(t, svc.ReleaseLock(ctx, "story-cycle-lock", "worker-b"))
	assert.True(t, mr.Exists("story-cycle-lock"))

	require.NoError(t, svc.ReleaseLock(ctx, "story-cycle-lock", "worker-a"))
	assert.False(t, mr.Exists("story-cycle-lock"))

	ok, err = svc.AcquireLock(ctx, "story-cycle-lock", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisService_LockExpires(t *testing.T) {
	svc, mr := setupTestRedis(t)
	ctx := context.Background()

	ok, err := svc.AcquireLock(ctx, "story-cycle-lock", "worker-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(31 * time.Second)

	ok, err = svc.AcquireLock(ctx, "story-cycle-lock", "worker-b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisService_PingFailsWhenDown(t *testing.T) {
	svc, mr := setupTestRedis(t)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.Error(t, svc.Ping(ctx))
}
