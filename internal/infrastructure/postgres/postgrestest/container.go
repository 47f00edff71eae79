// Package postgrestest starts a disposable PostgreSQL container for
// integration tests.
package postgrestest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/moonseer/church-planner-core/internal/infrastructure/postgres"
	_ "github.com/moonseer/church-planner-core/migrations" // registers schema migrations
)

// Open starts postgres:16-alpine, applies migrations and returns a pool
// that is closed when the test ends. The test is skipped when
// SKIP_INTEGRATION=true or no container runtime is reachable.
func Open(t *testing.T) *postgres.Pool {
	t.Helper()

	if os.Getenv("SKIP_INTEGRATION") == "true" {
		t.Skip("SKIP_INTEGRATION=true, skipping PostgreSQL integration tests")
	}

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("churchplanner_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skipf("skipping: could not start PostgreSQL container: %v", err)
	}

	t.Cleanup(func() {
		container.Terminate(context.Background()) //nolint:errcheck // best effort teardown
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("getting connection string: %v", err)
	}

	pool, err := postgres.Open(ctx, postgres.Config{
		DSN:            connStr,
		MaxConns:       5,
		MigrateOnStart: true,
	})
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}
