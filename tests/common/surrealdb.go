package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	surrealOnce sync.Once
	surrealAddr string
	surrealErr  error
)

// SurrealAddr starts a SurrealDB container on first use and returns its
// WebSocket RPC address. The container is shared across the whole test
// binary; tests isolate themselves with per-test database names. The
// testcontainers reaper removes the container when the process exits.
func SurrealAddr(t *testing.T) string {
	t.Helper()
	surrealOnce.Do(func() {
		surrealAddr, surrealErr = startSurreal()
	})
	if surrealErr != nil {
		t.Fatalf("surrealdb test container: %v", surrealErr)
	}
	return surrealAddr
}

func startSurreal() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			),
		},
		Started: true,
	})
	if err != nil {
		return "", fmt.Errorf("start container: %w", err)
	}

	endpoint, err := c.PortEndpoint(ctx, "8000/tcp", "")
	if err != nil {
		_ = c.Terminate(ctx)
		return "", fmt.Errorf("resolve endpoint: %w", err)
	}
	return "ws://" + endpoint + "/rpc", nil
}
