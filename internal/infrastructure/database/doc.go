// Package database provides SQL connectivity for Church Planner.
//
// This package manages:
//   - SQLite connections with WAL mode and immediate write transactions
//   - Adoption of a Postgres pool through database/sql (Wrap)
//   - Dialect helpers so repositories write one set of queries
//   - Schema migrations per dialect (additive-only)
//
// Security Considerations:
//   - All queries use parameterised statements (no SQL injection)
//   - Database file permissions are set to 0600 (owner read/write only)
//   - Password hashes are stored, never plaintext
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migration Strategy:
//
// Files are named YYYYMMDD_HHMMSS_description.up.sql with a matching
// .down.sql. Each dialect has its own directory; both must describe the
// same logical schema.
package database
