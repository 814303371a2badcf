//go:build integration

// Package testhelpers starts disposable PostgreSQL and Redis containers for
// integration tests. Docker must be reachable; tests skip in -short mode.
package testhelpers

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/saralaufeyson/leetcode-team-dashboard/internal/app/migrate"
)

const (
	postgresPort = nat.Port("5432/tcp")
	redisPort    = nat.Port("6379/tcp")
)

func start(t *testing.T, req testcontainers.ContainerRequest, port nat.Port) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate %s container: %v", req.Image, err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

// Postgres returns a pool on a fresh database with every migration applied.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	addr := start(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_USER":     "teamboard",
			"POSTGRES_PASSWORD": "teamboard",
			"POSTGRES_DB":       "teamboard",
		},
		// the entrypoint restarts postgres once after init
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, postgresPort)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, fmt.Sprintf("postgres://teamboard:teamboard@%s/teamboard?sslmode=disable", addr))
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	runner, err := migrate.New(pool, "", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("migrate runner: %v", err)
	}
	if err := runner.Ensure(ctx); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return pool
}

// Redis returns a client connected to a fresh server.
func Redis(t *testing.T) *goredis.Client {
	t.Helper()
	addr := start(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{string(redisPort)},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, redisPort)

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("ping redis: %v", err)
	}
	return client
}
