package order

import (
	"database/sql"
	"embed"

	"github.com/nao1215/shopgate/pkg/migration"
)

// migrationsFS はembedされたマイグレーションファイル群。
//
//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// initSchema はマイグレーションを適用してスキーマを最新化する。
func initSchema(db *sql.DB) error {
	return migration.Run(db, migrationsFS, "migrations")
}
