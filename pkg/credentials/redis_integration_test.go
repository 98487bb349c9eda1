//go:build integration

package credentials

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedisContainer starts a throwaway Redis for the test.
func setupRedisContainer(t *testing.T) *redis.Client {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get container endpoint: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: endpoint})

	t.Cleanup(func() {
		redisClient.Close()
		container.Terminate(ctx)
	})

	return redisClient
}

func TestRedisStore_SharedLogin(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()

	first, err := NewRedisStore(client, "")
	require.NoError(t, err)
	second, err := NewRedisStore(client, "")
	require.NoError(t, err)

	require.NoError(t, first.Save(ctx, Credential{
		ClientID:     "id",
		ClientSecret: "secret",
		AccessToken:  "a1",
		RefreshToken: "r1",
	}))

	got, err := second.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.LoggedIn())
	assert.Equal(t, "a1", got.AccessToken)

	got.AccessToken = "a2"
	require.NoError(t, second.Save(ctx, got))

	reloaded, err := first.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a2", reloaded.AccessToken)

	ttl, err := client.TTL(ctx, DefaultRedisKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), int64(ttl), "credential must not expire")
}
