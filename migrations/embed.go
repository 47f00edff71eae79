// Package migrations embeds SQL migration files into the binary.
//
// Each dialect keeps its own directory; both describe the same schema.
// Importing this package for side effects registers them with the
// database package.
package migrations

import (
	"embed"

	"github.com/moonseer/church-planner-core/internal/infrastructure/database"
)

//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func init() {
	database.RegisterMigrations(database.DialectSQLite, migrationsFS, "sqlite")
	database.RegisterMigrations(database.DialectPostgres, migrationsFS, "postgres")
}
