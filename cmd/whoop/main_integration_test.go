//go:build integration

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	mock "github.com/Sternrassler/whoop-cli/internal/testutil"
	"github.com/Sternrassler/whoop-cli/pkg/credentials"
)

// setupRedis starts a Redis container and returns its redis:// URL.
func setupRedis(t *testing.T) (string, func()) {
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

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cleanup := func() {
		container.Terminate(ctx)
	}

	return "redis://" + host + ":" + port.Port() + "/0", cleanup
}

// TestIntegration_RedisStoreLifecycle runs login, a data command, status and
// logout against one Redis-backed credential.
func TestIntegration_RedisStoreLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	storeURL, cleanup := setupRedis(t)
	defer cleanup()

	server := mock.NewMockWhoop()
	defer server.Close()
	server.QueueToken("access-1", "refresh-1")
	server.QueueToken("access-2", "")
	server.SetCollection("/developer/v2/activity/sleep", []map[string]any{
		{"id": "sleep-1", "nap": false, "score_state": "SCORED"},
	})

	newCLI := func() *testCLI {
		tc := newTestCLI(t, server)
		tc.env["WHOOP_STORE_URL"] = storeURL
		tc.openBrowser = func(raw string) error {
			u, err := url.Parse(raw)
			if err != nil {
				return err
			}
			q := u.Query()
			resp, err := http.Get(q.Get("redirect_uri") + "?code=code-1&state=" + q.Get("state"))
			if err != nil {
				return err
			}
			return resp.Body.Close()
		}
		return tc
	}

	// Step 1: Login stores the credential in Redis
	tc := newCLI()
	if code := tc.run(context.Background(), []string{"login", "--client-id", "client", "--client-secret", "secret"}); code != 0 {
		t.Fatalf("login exit code = %d, stderr: %s", code, tc.stderr.String())
	}

	// Step 2: A second invocation sees the login
	tc = newCLI()
	if code := tc.run(context.Background(), []string{"status"}); code != 0 {
		t.Fatalf("status exit code = %d, stderr: %s", code, tc.stderr.String())
	}
	if !strings.Contains(tc.stdout.String(), "Logged in: yes") {
		t.Errorf("Expected logged in status, got %q", tc.stdout.String())
	}
	if !strings.Contains(tc.stdout.String(), "Config path: redis://") {
		t.Errorf("Expected redis location, got %q", tc.stdout.String())
	}

	// Step 3: A rejected token is refreshed and the refresh lands in Redis
	server.SetAcceptedToken("access-2")
	tc = newCLI()
	if code := tc.run(context.Background(), []string{"sleep", "--json"}); code != 0 {
		t.Fatalf("sleep exit code = %d, stderr: %s", code, tc.stderr.String())
	}

	opts, err := redis.ParseURL(storeURL)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()

	raw, err := redisClient.Get(context.Background(), "whoop-cli:credential").Result()
	if err != nil {
		t.Fatalf("Failed to read credential from Redis: %v", err)
	}
	var doc struct {
		OAuth credentials.Credential `json:"oauth"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("Failed to parse stored credential: %v", err)
	}
	if doc.OAuth.AccessToken != "access-2" || doc.OAuth.RefreshToken != "refresh-1" {
		t.Errorf("Expected refreshed access token and retained refresh token, got %+v", doc.OAuth)
	}

	// Step 4: Logout removes the key
	tc = newCLI()
	if code := tc.run(context.Background(), []string{"logout"}); code != 0 {
		t.Fatalf("logout exit code = %d, stderr: %s", code, tc.stderr.String())
	}
	if n, _ := redisClient.Exists(context.Background(), "whoop-cli:credential").Result(); n != 0 {
		t.Error("Expected credential key to be deleted")
	}
}
