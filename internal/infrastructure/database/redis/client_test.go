package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

func TestNewClientStandalone(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := &Config{Mode: "standalone", Addr: mr.Addr()}
	client, err := NewClient(cfg, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
	assert.NoError(t, client.Underlying().Ping(context.Background()).Err())
}

func TestNewClientConnectionFailed(t *testing.T) {
	cfg := &Config{Mode: "standalone", Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond}

	client, err := NewClient(cfg, logging.NewNopLogger())
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClientOperations(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(&Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "foo", "bar", 0).Err())
	val, err := client.Get(ctx, "foo").Result()
	assert.NoError(t, err)
	assert.Equal(t, "bar", val)

	ok, err := client.SetNX(ctx, "foo", "other", time.Minute).Result()
	assert.NoError(t, err)
	assert.False(t, ok, "SetNX must not overwrite an existing key")

	deleted, err := client.Del(ctx, "foo").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	n, err := client.Exists(ctx, "foo").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)

	count, err := client.Incr(ctx, "hits").Result()
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestClientClosedCommandsError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := NewClient(&Config{Addr: mr.Addr()}, logging.NewNopLogger())
	require.NoError(t, err)

	assert.NoError(t, client.Close())
	assert.NoError(t, client.Close(), "second close is a no-op")

	ctx := context.Background()
	assert.ErrorIs(t, client.Get(ctx, "foo").Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Set(ctx, "foo", "bar", 0).Err(), ErrClientClosed)
	assert.ErrorIs(t, client.Ping(ctx), ErrClientClosed)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	assert.NotZero(t, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestBuildTLSConfigDisabled(t *testing.T) {
	tlsCfg, err := buildTLSConfig(&Config{})
	assert.NoError(t, err)
	assert.Nil(t, tlsCfg)
}
