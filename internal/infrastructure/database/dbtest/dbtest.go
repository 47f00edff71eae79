// Package dbtest opens migrated SQLite databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
	_ "github.com/moonseer/church-planner-core/migrations" // registers schema migrations
)

// Open creates a temporary SQLite database with the full schema applied.
// The database is closed and removed when the test completes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// A file rather than :memory: so WAL mode behaves as in production.
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}
	return db
}
