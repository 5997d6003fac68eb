//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"sheetport/internal/platform/config"
	platformredis "sheetport/internal/platform/redis"
	"sheetport/pkg/testutil/containers"
)

func TestNewPingsServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	cfg := config.Default().Redis
	cfg.URL = rc.URL

	client, err := platformredis.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(context.Background()))
}

func TestNewDisabledWithoutURL(t *testing.T) {
	client, err := platformredis.New(context.Background(), config.RedisConfig{})
	require.NoError(t, err)
	require.Nil(t, client)
}
