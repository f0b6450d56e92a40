package database

import "embed"

// MigrationsFS - SQL-миграции архива историй.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsDir - каталог миграций внутри MigrationsFS.
const MigrationsDir = "migrations"
